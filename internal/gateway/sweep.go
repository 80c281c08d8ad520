package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/sirupsen/logrus"
)

// SweepReport counts what one Sweep pass did.
type SweepReport struct {
	TimedOut         int `json:"timedOut"`
	SettlementsOwed  int `json:"settlementsOwed"`
	Evicted          int `json:"evicted"`
	LobbiesExpired   int `json:"lobbiesExpired"`
	SelectionsPurged int `json:"selectionsPurged"`
}

// Sweep ticks every session, retries pending settlements, discards idle lobbies and evicts
// finished and fully settled sessions once the retention window has passed.
func (g *Gateway) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	for _, s := range g.sessions.List() {
		if ctx.Err() != nil {
			break
		}
		s.Mu.Lock()
		wasActive := s.Status == uno.StatusActive
		s.Mu.Unlock()

		snap, err := g.Tick(ctx, s.ID)
		switch {
		case errors.Is(err, ErrSettlementPending):
			report.SettlementsOwed++
		case err != nil:
			g.logger.WithField("session", s.ID).WithError(err).Warn("sweep tick failed")
		}
		if wasActive && snap.Status == uno.StatusFinished {
			report.TimedOut++
		}
		if g.evict(s) {
			report.Evicted++
		}
	}

	now := g.now()
	report.LobbiesExpired = len(g.lobbies.ExpireIdle(now, g.lobbyIdleTimeout))
	report.SelectionsPurged = g.Selections.Purge(now)

	if report != (SweepReport{}) {
		g.logger.WithFields(logrus.Fields{
			"timed_out":         report.TimedOut,
			"settlements_owed":  report.SettlementsOwed,
			"evicted":           report.Evicted,
			"lobbies_expired":   report.LobbiesExpired,
			"selections_purged": report.SelectionsPurged,
			"sessions":          g.sessions.Len(),
		}).Info("sweep")
	}
	return report
}

// Run sweeps every interval until ctx is done.
func (g *Gateway) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.Sweep(ctx)
		}
	}
}

// evict removes a finished, settled session past retention together with its lobby.
func (g *Gateway) evict(s *uno.Session) bool {
	s.Mu.Lock()
	done := s.Status == uno.StatusFinished &&
		s.Settlement.Complete() &&
		g.now().Sub(s.FinishedAt) >= g.finishedRetention
	s.Mu.Unlock()
	if !done {
		return false
	}
	g.sessions.Delete(s.ID)
	g.lobbies.Store().Delete(s.LobbyID)
	g.Selections.DropSession(s.ID)
	g.logger.WithField("session", s.ID).Debug("session evicted")
	return true
}
