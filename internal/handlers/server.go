// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/sirupsen/logrus"
)

// Deps is everything the HTTP adapter needs.
type Deps struct {
	Gateway *gateway.Gateway
	Hub     *Hub
	Ledger  ledger.Ledger
	Logger  logrus.FieldLogger

	// Stats serves /players/me/stats; nil without a database.
	Stats StatsReader

	// Checks are probed by /healthz, keyed by name.
	Checks map[string]Checker
}

// NewRouter wires every route onto a chi router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(d.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", HealthHandler(d.Logger, d.Checks))

	r.Group(func(r chi.Router) {
		r.Use(RequirePlayer)

		r.Get("/players/me", BalanceHandler(d.Ledger))
		r.Get("/players/me/stats", StatsHandler(d.Stats))

		r.Post("/lobbies", CreateLobbyHandler(d.Gateway))
		r.Route("/lobbies/{id}", func(r chi.Router) {
			r.Get("/", GetLobbyHandler(d.Gateway))
			r.Post("/join", JoinLobbyHandler(d.Gateway))
			r.Post("/start", StartLobbyHandler(d.Gateway))
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", GetSessionHandler(d.Gateway))
			r.Post("/play", PlayHandler(d.Gateway))
			r.Post("/draw", DrawHandler(d.Gateway))
			r.Post("/surrender", SurrenderHandler(d.Gateway))
			r.Post("/select", SelectHandler(d.Gateway))
			r.Post("/color", ColorHandler(d.Gateway))
			r.Get("/ws", SessionWSHandler(d.Logger, d.Gateway, d.Hub))
		})
	})
	return r
}

type ctxKey int

const ctxKeyPlayer ctxKey = iota

// RequirePlayer authenticates the request and stores the player id in its context. Browsers cannot
// set headers on a WebSocket upgrade, so a token query parameter is accepted too.
func RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			id  string
			err error
		)
		if token := r.URL.Query().Get("token"); token != "" {
			id, err = auth.AuthenticateJWT(token)
		} else {
			id, err = auth.PlayerFromRequest(r)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyPlayer, uno.PlayerID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// playerFrom returns the authenticated player of the request.
func playerFrom(r *http.Request) uno.PlayerID {
	p, _ := r.Context().Value(ctxKeyPlayer).(uno.PlayerID)
	return p
}

// idParam parses the {id} route parameter, writing a 400 when it is not a uuid.
func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}
