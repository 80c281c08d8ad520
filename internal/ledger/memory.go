package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/uno"
)

// Memory is an in-process Ledger for tests and local runs.
type Memory struct {
	mu       sync.Mutex
	starting int64
	balances map[uno.PlayerID]int64
	paid     map[uuid.UUID]bool
}

func NewMemory(startingCoins int64) *Memory {
	return &Memory{
		starting: startingCoins,
		balances: make(map[uno.PlayerID]int64),
		paid:     make(map[uuid.UUID]bool),
	}
}

// Set overwrites a player's balance.
func (m *Memory) Set(player uno.PlayerID, coins int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[player] = coins
}

func (m *Memory) Balance(_ context.Context, player uno.PlayerID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(player), nil
}

func (m *Memory) Reserve(_ context.Context, player uno.PlayerID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceLocked(player) < amount {
		return ErrInsufficientFunds
	}
	m.balances[player] -= amount
	return nil
}

func (m *Memory) Refund(_ context.Context, player uno.PlayerID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[player] = m.balanceLocked(player) + amount
	return nil
}

func (m *Memory) Payout(_ context.Context, player uno.PlayerID, amount int64, token uuid.UUID) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paid[token] {
		return nil
	}
	m.paid[token] = true
	m.balances[player] = m.balanceLocked(player) + amount
	return nil
}

// Total sums every known balance. Used to check that coins are neither created nor destroyed.
func (m *Memory) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, c := range m.balances {
		total += c
	}
	return total
}

func (m *Memory) balanceLocked(player uno.PlayerID) int64 {
	coins, ok := m.balances[player]
	if !ok {
		coins = m.starting
		m.balances[player] = coins
	}
	return coins
}
