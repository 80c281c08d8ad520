// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/ledger"
)

type createLobbyRequest struct {
	Stake int64 `json:"stake"`
}

// CreateLobbyHandler opens a lobby hosted by the caller.
func CreateLobbyHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "bad lobby request payload")
			return
		}
		id, err := gw.CreateLobby(r.Context(), playerFrom(r), req.Stake)
		if err != nil {
			writeErr(w, err)
			return
		}
		view, err := gw.Lobby(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func GetLobbyHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		view, err := gw.Lobby(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// JoinLobbyHandler seats the caller in the lobby.
func JoinLobbyHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		if err := gw.JoinLobby(r.Context(), id, playerFrom(r)); err != nil {
			writeErr(w, err)
			return
		}
		view, err := gw.Lobby(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// StartLobbyHandler commits every stake and returns the host's first snapshot.
func StartLobbyHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		snap, err := gw.StartLobby(r.Context(), id, playerFrom(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	}
}

// BalanceHandler returns the caller's coin balance.
func BalanceHandler(led ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := playerFrom(r)
		coins, err := led.Balance(r.Context(), player)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"player_id": player, "coins": coins})
	}
}
