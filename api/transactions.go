package api

import (
	"net/http"

	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/go-chi/chi/v5"
)

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	txs, err := p.Transactions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.transactions(txs))
}

func (h *handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	in, ok := h.transactionInput(w, r)
	if !ok {
		return
	}

	tx, view, err := p.AddTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionChangeResponse{
		Transaction: h.present.transaction(tx),
		Block:       h.present.block(view),
	})
}

func (h *handler) updateBlockTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	h.applyUpdate(w, r, p)
}

func (h *handler) deleteBlockTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := h.period(w, r)
	if !ok {
		return
	}
	h.applyDelete(w, r, p)
}

// updateTransaction and deleteTransaction address a transaction by id alone.
func (h *handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := h.Registry.FindTransaction(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.applyUpdate(w, r, p)
}

func (h *handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := h.Registry.FindTransaction(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.applyDelete(w, r, p)
}

func (h *handler) applyUpdate(w http.ResponseWriter, r *http.Request, p *ledger.Period) {
	in, ok := h.transactionInput(w, r)
	if !ok {
		return
	}

	tx, view, err := p.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionChangeResponse{
		Transaction: h.present.transaction(tx),
		Block:       h.present.block(view),
	})
}

func (h *handler) applyDelete(w http.ResponseWriter, r *http.Request, p *ledger.Period) {
	view, err := p.DeleteTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.block(view))
}

func (h *handler) transactionInput(w http.ResponseWriter, r *http.Request) (ledger.TransactionInput, bool) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return ledger.TransactionInput{}, false
	}
	in, err := req.input(h.AmountScale)
	if err != nil {
		writeError(w, r, err)
		return ledger.TransactionInput{}, false
	}
	return in, true
}
