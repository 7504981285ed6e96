package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/billbatista/acasinha-ledger/session"
	"github.com/billbatista/acasinha-ledger/user"
)

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("invalid username or password")
)

// maxBodyBytes caps request bodies; ledger payloads are small.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidRatio),
		errors.Is(err, ledger.ErrUnknownMember),
		errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrInvalidPeriod),
		errors.Is(err, user.ErrInvalidUsername),
		errors.Is(err, user.ErrBlankPassword):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized),
		errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, session.ErrExpiredSession):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateMember),
		errors.Is(err, ledger.ErrDuplicatePeriod),
		errors.Is(err, ledger.ErrMemberInUse),
		errors.Is(err, user.ErrUsernameExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrLedgerLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
