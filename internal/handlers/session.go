// internal/handlers/session.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/uno"
)

// intentRequest is the body of every session action. Turn is optional; when present the action is
// rejected if the session has moved on.
type intentRequest struct {
	CardIndex int       `json:"cardIndex"`
	Color     uno.Color `json:"color,omitempty"`
	Turn      *int      `json:"turn,omitempty"`
}

func GetSessionHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		snap, err := gw.Snapshot(r.Context(), id, playerFrom(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// intentHandler decodes the body and submits an intent of kind for the caller.
func intentHandler(gw *gateway.Gateway, kind gateway.IntentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req intentRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "bad intent payload")
			return
		}
		snap, err := gw.Submit(r.Context(), gateway.Intent{
			Kind:      kind,
			SessionID: id,
			PlayerID:  playerFrom(r),
			CardIndex: req.CardIndex,
			Color:     req.Color,
			Turn:      req.Turn,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func PlayHandler(gw *gateway.Gateway) http.HandlerFunc {
	return intentHandler(gw, gateway.IntentPlay)
}

func DrawHandler(gw *gateway.Gateway) http.HandlerFunc {
	return intentHandler(gw, gateway.IntentDraw)
}

func SurrenderHandler(gw *gateway.Gateway) http.HandlerFunc {
	return intentHandler(gw, gateway.IntentSurrender)
}

// SelectHandler highlights a card; wild cards wait for ColorHandler.
func SelectHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req intentRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "bad select payload")
			return
		}
		snap, err := gw.SelectCard(r.Context(), id, playerFrom(r), req.CardIndex)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func ColorHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req intentRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "bad color payload")
			return
		}
		snap, err := gw.ChooseColor(r.Context(), id, playerFrom(r), req.Color)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
