package api

import (
	"net/http"

	"github.com/billbatista/acasinha-ledger/eventlogger"
	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/billbatista/acasinha-ledger/middleware"
	"github.com/billbatista/acasinha-ledger/session"
	"github.com/billbatista/acasinha-ledger/user"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the HTTP layer works with.
type Deps struct {
	Registry *ledger.Registry
	Users    user.Repository
	Sessions session.Repository
	// Events is queried by GET /events; nil disables the route.
	Events eventlogger.Store
	// EventLog receives authentication events.
	EventLog    ledger.EventLog
	AmountScale int32
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type handler struct {
	Deps
	present presenter
}

// NewRouter wires every route. Extra middlewares run before the built-in ones.
func NewRouter(deps Deps, middlewares ...func(http.Handler) http.Handler) http.Handler {
	h := &handler{Deps: deps, present: presenter{scale: deps.AmountScale}}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewares...)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.AuthMiddleware(deps.Sessions))

	// Public routes
	router.Get("/health", h.health)
	router.Post("/login", h.login)
	router.Post("/register", h.register)

	// Protected routes - require authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Post("/logout", h.logout)

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", h.listBlocks)
			r.Post("/", h.createBlock)

			r.Route("/{month}", func(r chi.Router) {
				r.Get("/", h.getBlock)
				r.Delete("/", h.deleteBlock)
				r.Post("/lock", h.lockBlock)
				r.Post("/unlock", h.unlockBlock)
				r.Get("/summary", h.blockSummary)
				r.Get("/settlements", h.blockSettlements)

				r.Get("/members", h.listMembers)
				r.Post("/members", h.addMember)
				r.Patch("/members/{id}", h.renameMember)
				r.Delete("/members/{id}", h.removeMember)

				r.Get("/transactions", h.listTransactions)
				r.Post("/transactions", h.addTransaction)
				r.Put("/transactions/{id}", h.updateBlockTransaction)
				r.Delete("/transactions/{id}", h.deleteBlockTransaction)
			})
		})

		r.Get("/members", h.allMembers)
		r.Put("/transactions/{id}", h.updateTransaction)
		r.Delete("/transactions/{id}", h.deleteTransaction)

		if deps.Events != nil {
			r.Get("/events", h.listEvents)
		}
	})

	return router
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
