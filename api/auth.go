package api

import (
	"log/slog"
	"net/http"

	"github.com/billbatista/acasinha-ledger/eventlogger"
	"github.com/billbatista/acasinha-ledger/middleware"
	"github.com/billbatista/acasinha-ledger/session"
)

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userdb, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if userdb == nil || h.Users.VerifyPassword(userdb.PasswordHash, req.Password) != nil {
		writeError(w, r, errUnauthorized)
		return
	}

	sess, err := h.Sessions.Create(ctx, userdb.ID, userdb.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, sess)

	h.logEvent("user.logged_in", map[string]string{
		"user_id":    userdb.ID.String(),
		"username":   userdb.Username,
		"session_id": sess.ID.String(),
	})

	writeJSON(w, http.StatusOK, authResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Username: userdb.Username})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	registeredUser, err := h.Users.Register(ctx, req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.Sessions.Create(ctx, registeredUser.ID, registeredUser.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, sess)

	h.logEvent("user.registered", map[string]string{
		"user_id":    registeredUser.ID.String(),
		"username":   registeredUser.Username,
		"session_id": sess.ID.String(),
	})

	writeJSON(w, http.StatusCreated, authResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Username: registeredUser.Username})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if err := h.Sessions.Delete(r.Context(), token); err != nil {
			slog.Warn("failed to revoke session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	h.logEvent("user.logged_out", map[string]string{"username": middleware.GetUsername(r.Context())})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) logEvent(eventType string, data map[string]string) {
	if h.EventLog == nil {
		return
	}
	h.EventLog.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithData(data),
	))
}
