// internal/handlers/stats.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/uno"
)

// StatsReader loads the play counts of one player.
type StatsReader interface {
	GetGameStats(ctx context.Context, player uno.PlayerID, game string) (*database.GameStats, error)
}

// StatsHandler returns the caller's total and weekly play counts. A player who never finished a
// session gets zeros.
func StatsHandler(stats StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stats == nil {
			writeError(w, http.StatusServiceUnavailable, "stats_unavailable", "play stats need a database")
			return
		}
		player := playerFrom(r)
		st, err := stats.GetGameStats(r.Context(), player, database.GameName)
		if errors.Is(err, pgx.ErrNoRows) {
			st, err = &database.GameStats{UserID: string(player), GameName: database.GameName}, nil
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
