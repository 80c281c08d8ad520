package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS economy (
		user_id TEXT PRIMARY KEY,
		coins BIGINT NOT NULL DEFAULT 100 CHECK (coins >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS settlements (
		token UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id UUID PRIMARY KEY,
		lobby_id UUID,
		status TEXT NOT NULL DEFAULT 'in_progress',
		outcome TEXT,
		winner TEXT,
		pot BIGINT NOT NULL DEFAULT 0,
		initial_game_state JSONB,
		final_game_state JSONB,
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		stats_recorded BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`ALTER TABLE games ADD COLUMN IF NOT EXISTS stats_recorded BOOLEAN NOT NULL DEFAULT FALSE`,
	`CREATE TABLE IF NOT EXISTS game_actions (
		id BIGSERIAL PRIMARY KEY,
		game_id UUID NOT NULL,
		action_index INT NOT NULL,
		actor_user_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_payload JSONB,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (game_id, action_index)
	)`,
	`CREATE TABLE IF NOT EXISTS game_stats (
		user_id TEXT NOT NULL,
		game_name TEXT NOT NULL,
		total_plays INT NOT NULL DEFAULT 0,
		weekly_plays INT NOT NULL DEFAULT 0,
		last_played TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, game_name)
	)`,
}

// EnsureSchema creates the tables used by the ledger, the recorder and the historian.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
