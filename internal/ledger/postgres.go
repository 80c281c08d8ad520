// internal/ledger/postgres.go
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/uno/internal/uno"
)

// Postgres keeps balances in the economy table and payout tokens in the settlements table.
// The tables are created by database.EnsureSchema.
type Postgres struct {
	pool     *pgxpool.Pool
	starting int64
}

func NewPostgres(pool *pgxpool.Pool, startingCoins int64) *Postgres {
	return &Postgres{pool: pool, starting: startingCoins}
}

// provision inserts the player row with the starting balance if it does not exist yet.
func (p *Postgres) provision(ctx context.Context, tx pgx.Tx, player uno.PlayerID) error {
	q := `
		INSERT INTO economy (user_id, coins)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := tx.Exec(ctx, q, string(player), p.starting)
	return err
}

func (p *Postgres) Balance(ctx context.Context, player uno.PlayerID) (int64, error) {
	var coins int64
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := p.provision(ctx, tx, player); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT coins FROM economy WHERE user_id = $1`, string(player)).Scan(&coins)
	})
	if err != nil {
		return 0, fmt.Errorf("read balance for %s: %w", player, err)
	}
	return coins, nil
}

func (p *Postgres) Reserve(ctx context.Context, player uno.PlayerID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := p.provision(ctx, tx, player); err != nil {
			return fmt.Errorf("provision %s: %w", player, err)
		}
		q := `
			UPDATE economy
			SET coins = coins - $1
			WHERE user_id = $2 AND coins >= $1
		`
		tag, err := tx.Exec(ctx, q, amount, string(player))
		if err != nil {
			return fmt.Errorf("reserve %d from %s: %w", amount, player, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInsufficientFunds
		}
		return nil
	})
}

func (p *Postgres) Refund(ctx context.Context, player uno.PlayerID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return p.credit(ctx, tx, player, amount)
	})
}

// Payout records the token first; the credit is applied only when the token is new, inside the
// same transaction.
func (p *Postgres) Payout(ctx context.Context, player uno.PlayerID, amount int64, token uuid.UUID) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO settlements (token, user_id, amount)
			VALUES ($1, $2, $3)
			ON CONFLICT (token) DO NOTHING
		`
		tag, err := tx.Exec(ctx, q, token, string(player), amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return p.credit(ctx, tx, player, amount)
	})
	if err != nil {
		return fmt.Errorf("payout %s to %s: %w", token, player, err)
	}
	return nil
}

func (p *Postgres) credit(ctx context.Context, tx pgx.Tx, player uno.PlayerID, amount int64) error {
	if err := p.provision(ctx, tx, player); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE economy SET coins = coins + $1 WHERE user_id = $2`, amount, string(player))
	return err
}
