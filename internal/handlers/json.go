package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/lobby"
	"github.com/jason-s-yu/uno/internal/uno"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order; wrapped causes come after the errors that wrap them.
var errorTable = []errorMapping{
	{auth.ErrMissingToken, http.StatusUnauthorized, "missing_token"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},

	{lobby.ErrReservationFailed, http.StatusBadGateway, "reservation_failed"},
	{gateway.ErrSettlementPending, http.StatusBadGateway, "settlement_pending"},
	{ledger.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},

	{gateway.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{lobby.ErrLobbyNotFound, http.StatusNotFound, "lobby_not_found"},

	{uno.ErrNotYourTurn, http.StatusForbidden, "not_your_turn"},
	{uno.ErrPlayerNotSeated, http.StatusForbidden, "not_seated"},
	{lobby.ErrNotHost, http.StatusForbidden, "not_host"},

	{uno.ErrIllegalCard, http.StatusConflict, "illegal_card"},
	{uno.ErrGameNotActive, http.StatusConflict, "game_not_active"},
	{uno.ErrInvalidColorChoice, http.StatusConflict, "invalid_color"},
	{uno.ErrTooFewPlayers, http.StatusConflict, "too_few_players"},
	{lobby.ErrTooFewPlayers, http.StatusConflict, "too_few_players"},
	{lobby.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{lobby.ErrLobbyFull, http.StatusConflict, "lobby_full"},
	{lobby.ErrLobbyStarted, http.StatusConflict, "lobby_started"},
	{gateway.ErrStaleAction, http.StatusConflict, "stale_action"},
	{gateway.ErrNoSelection, http.StatusConflict, "no_selection"},

	{lobby.ErrInvalidStake, http.StatusBadRequest, "invalid_stake"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{gateway.ErrUnknownIntent, http.StatusBadRequest, "unknown_intent"},
}

// statusFor maps err to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v. An empty body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorBody{Error: code, Message: msg})
}

// writeErr writes err with the status its kind maps to.
func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
