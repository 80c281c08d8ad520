// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/uno/internal/uno"
)

// GameName is the game_stats key under which sessions are counted.
const GameName = "uno"

// Recorder persists session start and end records and per-player play statistics.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// RecordSessionStart upserts the games row with the seat order, stake and pot of a fresh session.
// A row that already completed or was abandoned keeps its status.
func (r *Recorder) RecordSessionStart(ctx context.Context, rec uno.Record) error {
	initial, err := json.Marshal(map[string]interface{}{
		"players":   rec.Starters,
		"stake":     rec.Stake,
		"pot":       rec.Pot,
		"deck_size": rec.DeckSize,
	})
	if err != nil {
		return fmt.Errorf("marshal initial state: %w", err)
	}
	q := `
		INSERT INTO games (id, lobby_id, status, pot, initial_game_state, start_time)
		VALUES ($1, $2, 'in_progress', $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET initial_game_state = EXCLUDED.initial_game_state
		WHERE games.status = 'in_progress'
	`
	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, rec.SessionID, rec.LobbyID, rec.Pot, initial, rec.StartedAt)
		return e
	})
	if err != nil {
		return fmt.Errorf("storing session start: %w", err)
	}
	return nil
}

// RecordSessionEnd marks the games row completed with the final state and counts a play for every
// player who started the session. Safe to call more than once for the same session.
func (r *Recorder) RecordSessionEnd(ctx context.Context, rec uno.Record) error {
	final, err := json.Marshal(map[string]interface{}{
		"remaining": rec.Remaining,
		"transfers": rec.Transfers,
		"turns":     rec.Turns,
		"recycled":  rec.Recycled,
	})
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}
	var winner *string
	if rec.Winner != "" {
		w := string(rec.Winner)
		winner = &w
	}
	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, lobby_id, status, outcome, winner, pot, final_game_state, start_time, end_time)
			VALUES ($1, $2, 'completed', $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id)
			DO UPDATE SET status = 'completed', outcome = EXCLUDED.outcome, winner = EXCLUDED.winner,
				final_game_state = EXCLUDED.final_game_state, end_time = EXCLUDED.end_time
		`
		if _, e := tx.Exec(ctx, q, rec.SessionID, rec.LobbyID, string(rec.Outcome), winner, rec.Pot, final, rec.StartedAt, rec.FinishedAt); e != nil {
			return e
		}
		// The historian may complete the row first, so plays are counted against their own flag.
		tag, e := tx.Exec(ctx, `UPDATE games SET stats_recorded = TRUE WHERE id = $1 AND NOT stats_recorded`, rec.SessionID)
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		for _, p := range rec.Starters {
			if e := recordGamePlayTx(ctx, tx, p, GameName, rec.FinishedAt); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing session end: %w", err)
	}
	return nil
}

// MarkAbandoned flags an in-progress games row as abandoned.
func MarkAbandoned(ctx context.Context, pool *pgxpool.Pool, sessionID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, sessionID)
		return e
	})
}

// GameStats is one row of game_stats.
type GameStats struct {
	UserID      string    `json:"user_id"`
	GameName    string    `json:"game_name"`
	TotalPlays  int       `json:"total_plays"`
	WeeklyPlays int       `json:"weekly_plays"`
	LastPlayed  time.Time `json:"last_played"`
}

// recordGamePlayTx counts one play of game for player. The weekly counter restarts when the
// previous play falls in an earlier ISO week.
func recordGamePlayTx(ctx context.Context, tx pgx.Tx, player uno.PlayerID, game string, at time.Time) error {
	q := `
		INSERT INTO game_stats (user_id, game_name, total_plays, weekly_plays, last_played)
		VALUES ($1, $2, 1, 1, $3)
		ON CONFLICT (user_id, game_name)
		DO UPDATE SET
			total_plays = game_stats.total_plays + 1,
			weekly_plays = CASE
				WHEN date_trunc('week', game_stats.last_played) = date_trunc('week', EXCLUDED.last_played)
				THEN game_stats.weekly_plays + 1
				ELSE 1
			END,
			last_played = EXCLUDED.last_played
	`
	_, err := tx.Exec(ctx, q, string(player), game, at)
	return err
}

// GetGameStats returns the stats row for player and game, or pgx.ErrNoRows.
func (r *Recorder) GetGameStats(ctx context.Context, player uno.PlayerID, game string) (*GameStats, error) {
	var s GameStats
	q := `
		SELECT user_id, game_name, total_plays, weekly_plays, last_played
		FROM game_stats
		WHERE user_id = $1 AND game_name = $2
	`
	err := r.pool.QueryRow(ctx, q, string(player), game).Scan(&s.UserID, &s.GameName, &s.TotalPlays, &s.WeeklyPlays, &s.LastPlayed)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
