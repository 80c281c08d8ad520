// Package ledger holds player coin balances. Stakes are reserved when a session starts and credited
// back through token-keyed payouts when it finishes.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/uno"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// DefaultStartingCoins is the balance a player is provisioned with on first contact.
const DefaultStartingCoins int64 = 100

// Ledger is the currency store consumed by the lobby coordinator and the gateway.
type Ledger interface {
	// Balance returns the player's coins, provisioning the starting balance for unknown players.
	Balance(ctx context.Context, player uno.PlayerID) (int64, error)
	// Reserve debits amount or fails with ErrInsufficientFunds without touching the balance.
	Reserve(ctx context.Context, player uno.PlayerID, amount int64) error
	// Refund credits back a previous reservation.
	Refund(ctx context.Context, player uno.PlayerID, amount int64) error
	// Payout credits amount once per token. Repeating a token is a no-op that returns nil.
	Payout(ctx context.Context, player uno.PlayerID, amount int64, token uuid.UUID) error
}
