package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/billbatista/acasinha-ledger/eventlogger"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// listEvents returns the audit trail, newest first, optionally filtered by
// ?type= and capped by ?limit=.
func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			writeError(w, r, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxEventLimit))
			return
		}
		limit = n
	}

	var (
		events []eventlogger.Event
		err    error
	)
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		events, err = h.Events.GetByType(r.Context(), eventType, limit)
	} else {
		events, err = h.Events.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
