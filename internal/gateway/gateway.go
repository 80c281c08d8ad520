// Package gateway is the single entry point that mutates sessions. Every operation takes the
// session lock, applies one transition, settles finished sessions against the ledger and hands the
// resulting snapshots to the registered notifiers after the lock is released.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/lobby"
	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrStaleAction       = errors.New("stale action")
	ErrSettlementPending = errors.New("settlement pending")
	ErrNoSelection       = errors.New("no pending selection")
	ErrUnknownIntent     = errors.New("unknown intent")
)

// ActionLog receives one record per accepted transition.
type ActionLog interface {
	Publish(ctx context.Context, record cache.ActionRecord) error
}

// Recorder persists session start and end records.
type Recorder interface {
	RecordSessionStart(ctx context.Context, rec uno.Record) error
	RecordSessionEnd(ctx context.Context, rec uno.Record) error
}

// Notifier is told about every accepted change. It is called outside the session lock and must not
// block.
type Notifier interface {
	Notify(ctx context.Context, update Update)
}

// Update carries the public snapshot and one private snapshot per seated player.
type Update struct {
	SessionID uuid.UUID                     `json:"session_id"`
	Public    uno.Snapshot                  `json:"public"`
	Views     map[uno.PlayerID]uno.Snapshot `json:"-"`
}

// View returns the snapshot for viewer, falling back to the public one.
func (u Update) View(viewer uno.PlayerID) uno.Snapshot {
	if v, ok := u.Views[viewer]; ok {
		return v
	}
	return u.Public
}

type Gateway struct {
	sessions *uno.Store
	lobbies  *lobby.Manager
	ledger   ledger.Ledger
	logger   logrus.FieldLogger

	Selections *Selections

	actions   ActionLog
	recorder  Recorder
	notifiers []Notifier

	now               func() time.Time
	lobbyIdleTimeout  time.Duration
	finishedRetention time.Duration

	bg sync.WaitGroup

	// tails holds, per session, the completion channel of the latest background write so the
	// next one starts after it.
	tailsMu sync.Mutex
	tails   map[uuid.UUID]chan struct{}
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithActionLog(a ActionLog) Option {
	return func(g *Gateway) { g.actions = a }
}

func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

func WithNotifier(n Notifier) Option {
	return func(g *Gateway) { g.notifiers = append(g.notifiers, n) }
}

func WithSelectionTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.Selections = NewSelections(ttl) }
}

func WithLobbyIdleTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.lobbyIdleTimeout = d }
}

func WithFinishedRetention(d time.Duration) Option {
	return func(g *Gateway) { g.finishedRetention = d }
}

func New(sessions *uno.Store, lobbies *lobby.Manager, led ledger.Ledger, logger logrus.FieldLogger, opts ...Option) *Gateway {
	g := &Gateway{
		sessions:          sessions,
		lobbies:           lobbies,
		ledger:            led,
		logger:            logger,
		Selections:        NewSelections(DefaultSelectionTTL),
		now:               time.Now,
		lobbyIdleTimeout:  15 * time.Minute,
		finishedRetention: 10 * time.Minute,
		tails:             make(map[uuid.UUID]chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNotifier registers n after construction, e.g. a hub that itself needs the gateway.
func (g *Gateway) AddNotifier(n Notifier) {
	g.notifiers = append(g.notifiers, n)
}

// Wait blocks until background action-log and recorder writes have finished.
func (g *Gateway) Wait() {
	g.bg.Wait()
}

func (g *Gateway) CreateLobby(ctx context.Context, host uno.PlayerID, stake int64) (uuid.UUID, error) {
	l, err := g.lobbies.Create(ctx, host, stake, g.now())
	if err != nil {
		return uuid.Nil, err
	}
	return l.ID, nil
}

func (g *Gateway) JoinLobby(ctx context.Context, lobbyID uuid.UUID, player uno.PlayerID) error {
	return g.lobbies.Join(ctx, lobbyID, player, g.now())
}

// Lobby returns the current view of a lobby.
func (g *Gateway) Lobby(lobbyID uuid.UUID) (lobby.View, error) {
	l, ok := g.lobbies.Store().Get(lobbyID)
	if !ok {
		return lobby.View{}, lobby.ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.View(), nil
}

// StartLobby commits every stake, starts the session and returns the requester's snapshot.
func (g *Gateway) StartLobby(ctx context.Context, lobbyID uuid.UUID, requester uno.PlayerID) (uno.Snapshot, error) {
	s, err := g.lobbies.Start(ctx, lobbyID, requester, g.now())
	if err != nil {
		return uno.Snapshot{}, err
	}
	g.sessions.Add(s)

	s.Mu.Lock()
	c := g.commit(s, requester, cache.ActionStart, map[string]interface{}{
		"players": append([]uno.PlayerID(nil), s.Players...),
		"stake":   s.Stake,
		"pot":     s.Pot,
	})
	start := s.Record()
	c.start = &start
	snap := g.snapshotLocked(s, requester)
	s.Mu.Unlock()

	g.dispatch(ctx, c)
	return snap, nil
}

// Snapshot returns the current view of a session for viewer.
func (g *Gateway) Snapshot(ctx context.Context, sessionID uuid.UUID, viewer uno.PlayerID) (uno.Snapshot, error) {
	s, ok := g.sessions.Get(sessionID)
	if !ok {
		return uno.Snapshot{}, ErrSessionNotFound
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return g.snapshotLocked(s, viewer), nil
}

// IntentKind names what a player asks to do.
type IntentKind string

const (
	IntentPlay      IntentKind = "play"
	IntentDraw      IntentKind = "draw"
	IntentSurrender IntentKind = "surrender"
)

// Intent is a player request. Turn, when set, must equal the session turn counter; a mismatch
// means the intent was issued against an older state and is rejected with ErrStaleAction.
type Intent struct {
	Kind      IntentKind   `json:"kind"`
	SessionID uuid.UUID    `json:"sessionId"`
	PlayerID  uno.PlayerID `json:"playerId"`
	CardIndex int          `json:"cardIndex"`
	Color     uno.Color    `json:"color,omitempty"`
	Turn      *int         `json:"turn,omitempty"`
}

func (g *Gateway) SubmitPlay(ctx context.Context, sessionID uuid.UUID, player uno.PlayerID, cardIndex int, color uno.Color) (uno.Snapshot, error) {
	return g.Submit(ctx, Intent{Kind: IntentPlay, SessionID: sessionID, PlayerID: player, CardIndex: cardIndex, Color: color})
}

func (g *Gateway) SubmitDraw(ctx context.Context, sessionID uuid.UUID, player uno.PlayerID) (uno.Snapshot, error) {
	return g.Submit(ctx, Intent{Kind: IntentDraw, SessionID: sessionID, PlayerID: player})
}

func (g *Gateway) SubmitSurrender(ctx context.Context, sessionID uuid.UUID, player uno.PlayerID) (uno.Snapshot, error) {
	return g.Submit(ctx, Intent{Kind: IntentSurrender, SessionID: sessionID, PlayerID: player})
}

// Submit validates and applies one intent under the session lock.
func (g *Gateway) Submit(ctx context.Context, in Intent) (uno.Snapshot, error) {
	var apply func(s *uno.Session, now time.Time) (string, map[string]interface{}, error)
	switch in.Kind {
	case IntentPlay:
		apply = func(s *uno.Session, now time.Time) (string, map[string]interface{}, error) {
			payload := map[string]interface{}{"index": in.CardIndex}
			if hand := s.Hands[in.PlayerID]; in.CardIndex >= 0 && in.CardIndex < len(hand) {
				payload["card"] = hand[in.CardIndex].Face()
				payload["card_id"] = hand[in.CardIndex].ID
			}
			if in.Color != "" {
				payload["color"] = in.Color
			}
			return cache.ActionPlay, payload, s.PlayCard(in.PlayerID, in.CardIndex, in.Color, now)
		}
	case IntentDraw:
		apply = func(s *uno.Session, now time.Time) (string, map[string]interface{}, error) {
			drawn, err := s.DrawCard(in.PlayerID, now)
			return cache.ActionDraw, map[string]interface{}{"drawn": len(drawn)}, err
		}
	case IntentSurrender:
		apply = func(s *uno.Session, now time.Time) (string, map[string]interface{}, error) {
			retired := len(s.Hands[in.PlayerID])
			return cache.ActionSurrender, map[string]interface{}{"retired": retired}, s.Surrender(in.PlayerID, now)
		}
	default:
		return uno.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownIntent, in.Kind)
	}

	s, ok := g.sessions.Get(in.SessionID)
	if !ok {
		return uno.Snapshot{}, ErrSessionNotFound
	}
	log := g.logger.WithFields(logrus.Fields{"session": s.ID, "player": in.PlayerID, "intent": in.Kind})

	s.Mu.Lock()
	if in.Turn != nil && *in.Turn != s.Turn {
		turn := s.Turn
		s.Mu.Unlock()
		log.WithField("turn", turn).Debug("stale intent rejected")
		return uno.Snapshot{}, fmt.Errorf("%w: issued on turn %d, session is on turn %d", ErrStaleAction, *in.Turn, turn)
	}
	wasFinished := s.Status == uno.StatusFinished
	typ, payload, err := apply(s, g.now())
	if err != nil {
		s.Mu.Unlock()
		log.WithError(err).Debug("intent rejected")
		return uno.Snapshot{}, err
	}
	c := g.commit(s, in.PlayerID, typ, payload)
	settleErr := g.finishLocked(ctx, s, wasFinished, &c)
	snap := g.snapshotLocked(s, in.PlayerID)
	s.Mu.Unlock()

	log.WithField("turn", snap.Turn).Info("intent applied")
	g.dispatch(ctx, c)
	return snap, settleErr
}

// Tick forces the idle timeout of an expired session and retries any pending settlement. It returns
// the public snapshot.
func (g *Gateway) Tick(ctx context.Context, sessionID uuid.UUID) (uno.Snapshot, error) {
	s, ok := g.sessions.Get(sessionID)
	if !ok {
		return uno.Snapshot{}, ErrSessionNotFound
	}
	s.Mu.Lock()
	now := g.now()
	var settleErr error
	var c commitment
	changed := false
	switch {
	case s.Expired(now):
		if err := s.Timeout(now); err != nil {
			s.Mu.Unlock()
			return uno.Snapshot{}, err
		}
		g.logger.WithFields(logrus.Fields{"session": s.ID, "turn": s.Turn}).Info("session timed out")
		c = g.commit(s, "", cache.ActionTimeout, map[string]interface{}{"remaining": append([]uno.PlayerID(nil), s.Players...)})
		settleErr = g.finishLocked(ctx, s, false, &c)
		changed = true
	case s.Status == uno.StatusFinished && !s.Settlement.Complete():
		settleErr = g.settleLocked(ctx, s)
		c = commitment{update: g.updateLocked(s)}
		changed = s.Settlement.Complete()
	}
	snap := g.snapshotLocked(s, "")
	s.Mu.Unlock()

	if changed {
		g.dispatch(ctx, c)
	}
	return snap, settleErr
}

// RetrySettlement pays any transfers of a finished session the ledger has not yet accepted.
func (g *Gateway) RetrySettlement(ctx context.Context, sessionID uuid.UUID) error {
	s, ok := g.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Status != uno.StatusFinished {
		return uno.ErrGameNotActive
	}
	return g.settleLocked(ctx, s)
}

// commitment gathers everything an accepted transition publishes once the lock is released.
type commitment struct {
	records []cache.ActionRecord
	update  Update
	start   *uno.Record
	end     *uno.Record

	// after is closed once the previous background write of the session has finished; done is
	// closed when this one has.
	after <-chan struct{}
	done  chan struct{}
}

// commit builds the action record and the notifier update for the transition just applied and
// queues its background write behind the previous one of the session. The caller must dispatch
// the result. Assumes the lock is held.
func (g *Gateway) commit(s *uno.Session, actor uno.PlayerID, typ string, payload map[string]interface{}) commitment {
	c := commitment{
		records: []cache.ActionRecord{g.actionRecordLocked(s, actor, typ, payload)},
		update:  g.updateLocked(s),
	}
	if g.actions != nil || g.recorder != nil {
		c.after, c.done = g.link(s.ID)
	}
	return c
}

// link appends a write to the session's chain.
func (g *Gateway) link(sessionID uuid.UUID) (<-chan struct{}, chan struct{}) {
	g.tailsMu.Lock()
	defer g.tailsMu.Unlock()
	prev := g.tails[sessionID]
	done := make(chan struct{})
	g.tails[sessionID] = done
	return prev, done
}

// unlink marks done finished and forgets the chain when nothing was queued behind it.
func (g *Gateway) unlink(sessionID uuid.UUID, done chan struct{}) {
	g.tailsMu.Lock()
	defer g.tailsMu.Unlock()
	close(done)
	if g.tails[sessionID] == done {
		delete(g.tails, sessionID)
	}
}

// finishLocked adds the end record and settles when the transition finished the session.
// Assumes the lock is held.
func (g *Gateway) finishLocked(ctx context.Context, s *uno.Session, wasFinished bool, c *commitment) error {
	if wasFinished || s.Status != uno.StatusFinished {
		return nil
	}
	g.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"outcome": s.Outcome,
		"winner":  s.Winner,
		"pot":     s.Pot,
	}).Info("session finished")

	err := g.settleLocked(ctx, s)
	c.records = append(c.records, g.actionRecordLocked(s, s.Winner, cache.ActionEnd, map[string]interface{}{
		"outcome":   s.Outcome,
		"winner":    s.Winner,
		"transfers": append([]uno.Transfer(nil), s.Settlement.Transfers...),
	}))
	end := s.Record()
	c.end = &end
	c.update = g.updateLocked(s)
	return err
}

// settleLocked presents every pending transfer to the ledger with its stable token.
// Assumes the lock is held.
func (g *Gateway) settleLocked(ctx context.Context, s *uno.Session) error {
	var errs []error
	for _, t := range s.Settlement.Pending() {
		err := g.ledger.Payout(ctx, t.Player, t.Amount, t.Token)
		if err != nil {
			g.logger.WithFields(logrus.Fields{
				"session": s.ID,
				"player":  t.Player,
				"amount":  t.Amount,
				"token":   t.Token,
			}).WithError(err).Warn("payout failed, will retry")
			errs = append(errs, err)
			continue
		}
		s.Settlement.MarkPaid(t.Token)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSettlementPending, errors.Join(errs...))
	}
	return nil
}

func (g *Gateway) actionRecordLocked(s *uno.Session, actor uno.PlayerID, typ string, payload map[string]interface{}) cache.ActionRecord {
	return cache.ActionRecord{
		SessionID:     s.ID,
		ActionIndex:   s.NextLogIndex(),
		ActorID:       string(actor),
		ActionType:    typ,
		ActionPayload: payload,
		Timestamp:     g.now().UnixMilli(),
	}
}

func (g *Gateway) updateLocked(s *uno.Session) Update {
	u := Update{
		SessionID: s.ID,
		Public:    g.snapshotLocked(s, ""),
		Views:     make(map[uno.PlayerID]uno.Snapshot, len(s.Players)),
	}
	for _, p := range s.Players {
		u.Views[p] = g.snapshotLocked(s, p)
	}
	return u
}

// snapshotLocked adds the side-channel selection to the session snapshot.
func (g *Gateway) snapshotLocked(s *uno.Session, viewer uno.PlayerID) uno.Snapshot {
	snap := s.Snapshot(viewer)
	if viewer == "" || snap.Status != uno.StatusActive {
		return snap
	}
	if sel, ok := g.Selections.Peek(s.ID, viewer, g.now()); ok && sel.Turn == s.Turn {
		idx := sel.CardIndex
		snap.PendingColorChoice = &idx
	}
	return snap
}

// dispatch notifies synchronously and writes the action log and records in the background, in
// commit order per session.
func (g *Gateway) dispatch(ctx context.Context, c commitment) {
	for _, n := range g.notifiers {
		n.Notify(ctx, c.update)
	}
	if c.done == nil {
		return
	}

	bgCtx := context.WithoutCancel(ctx)
	g.bg.Add(1)
	go func() {
		defer g.bg.Done()
		defer g.unlink(c.update.SessionID, c.done)
		if c.after != nil {
			<-c.after
		}
		log := g.logger.WithField("session", c.update.SessionID)
		if g.actions != nil {
			for _, rec := range c.records {
				if err := g.actions.Publish(bgCtx, rec); err != nil {
					log.WithError(err).Warn("failed to publish action record")
				}
			}
		}
		if g.recorder == nil {
			return
		}
		if c.start != nil {
			if err := g.recorder.RecordSessionStart(bgCtx, *c.start); err != nil {
				log.WithError(err).Error("failed to record session start")
			}
		}
		if c.end != nil {
			if err := g.recorder.RecordSessionEnd(bgCtx, *c.end); err != nil {
				log.WithError(err).Error("failed to record session end")
			}
		}
	}()
}
