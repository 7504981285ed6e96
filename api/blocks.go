package api

import (
	"fmt"
	"net/http"

	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/go-chi/chi/v5"
)

// period resolves the {month} URL parameter. It writes the error response
// itself and reports false when the period cannot be used.
func (h *handler) period(w http.ResponseWriter, r *http.Request) (*ledger.Period, bool) {
	month := chi.URLParam(r, "month")
	if !ledger.ValidPeriodID(month) {
		writeError(w, r, fmt.Errorf("%w: %q", ledger.ErrInvalidPeriod, month))
		return nil, false
	}
	p, err := h.Registry.Get(month)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return p, true
}

func (h *handler) listBlocks(w http.ResponseWriter, r *http.Request) {
	summaries := h.Registry.List()
	out := make([]blockSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, h.present.summary(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createBlock(w http.ResponseWriter, r *http.Request) {
	var req createBlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	names := make([]string, 0, len(req.Members))
	for _, m := range req.Members {
		names = append(names, m.Name)
	}

	p, err := h.Registry.Create(r.Context(), req.Month, names)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := p.View()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.block(view))
}

func (h *handler) getBlock(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	view, err := p.View()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.block(view))
}

func (h *handler) deleteBlock(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	if err := h.Registry.Delete(r.Context(), p.ID()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) lockBlock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

func (h *handler) unlockBlock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *handler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	lock := p.Unlock
	if locked {
		lock = p.Lock
	}
	view, err := lock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.block(view))
}

func (h *handler) blockSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	view, err := p.View()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Month:       view.Period.ID,
		Locked:      view.Period.Locked,
		Balances:    h.present.balances(view.Balances),
		Settlements: h.present.transfers(ledger.Settle(view.Balances)),
	})
}

func (h *handler) blockSettlements(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	transfers, err := p.Settlements()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.transfers(transfers))
}

func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.present.members(p.Members()))
}

func (h *handler) addMember(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, view, err := p.AddMember(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, memberChangeResponse{Member: h.present.member(m), Block: h.present.block(view)})
}

func (h *handler) renameMember(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, view, err := p.RenameMember(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberChangeResponse{Member: h.present.member(m), Block: h.present.block(view)})
}

func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	view, err := p.RemoveMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.block(view))
}

func (h *handler) allMembers(w http.ResponseWriter, r *http.Request) {
	refs := h.Registry.Members()
	out := make([]memberResponse, 0, len(refs))
	for _, ref := range refs {
		m := h.present.member(ref.Member)
		m.Month = ref.PeriodID
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, out)
}
