// Package historian drains the action queue into the database in batches and marks sessions that
// stop producing actions as abandoned.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields queued action records. Pop returns (nil, nil) when nothing arrived in timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.ActionRecord, error)
}

// Sink persists action batches and session state.
type Sink interface {
	InsertActions(ctx context.Context, batch []cache.ActionRecord) error
	MarkAbandoned(ctx context.Context, sessionID uuid.UUID) error
}

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	// Inactivity is how long a session may stay silent before it is marked abandoned.
	Inactivity time.Duration
	// PopTimeout bounds each blocking read so cancellation is noticed.
	PopTimeout time.Duration
}

// Service encapsulates the queue and database logic for capturing session actions.
type Service struct {
	source Source
	sink   Sink
	logger logrus.FieldLogger
	opts   Options
	now    func() time.Time

	mu           sync.Mutex
	batch        []cache.ActionRecord
	lastActivity map[uuid.UUID]time.Time
}

func New(source Source, sink Sink, logger logrus.FieldLogger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	return &Service{
		source:       source,
		sink:         sink,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
		batch:        make([]cache.ActionRecord, 0, opts.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run reads, flushes and checks inactivity until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error {
		s.every(gctx, s.opts.FlushInterval, func() { s.Flush(gctx) })
		return nil
	})
	g.Go(func() error {
		s.every(gctx, time.Minute, func() { s.ExpireInactive(gctx) })
		return nil
	})
	s.logger.Info("historian started")
	err := g.Wait()

	if ferr := s.Flush(context.WithoutCancel(ctx)); ferr != nil {
		s.logger.WithError(ferr).Error("final flush failed")
	}
	s.logger.Info("historian stopped")
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		rec, err := s.source.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WithError(err).Error("pop failed")
			continue
		}
		if rec == nil {
			continue
		}
		s.Add(ctx, *rec)
	}
	return nil
}

func (s *Service) every(ctx context.Context, d time.Duration, f func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f()
		}
	}
}

// Add queues rec for the next flush and flushes when the batch is full.
func (s *Service) Add(ctx context.Context, rec cache.ActionRecord) {
	s.mu.Lock()
	s.batch = append(s.batch, rec)
	if rec.ActionType == cache.ActionEnd {
		delete(s.lastActivity, rec.SessionID)
	} else {
		s.lastActivity[rec.SessionID] = s.now()
	}
	full := len(s.batch) >= s.opts.BatchSize
	s.mu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. A failed batch is kept for the next attempt.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.batch
	s.batch = make([]cache.ActionRecord, 0, s.opts.BatchSize)
	s.mu.Unlock()

	if err := s.sink.InsertActions(ctx, pending); err != nil {
		s.logger.WithField("actions", len(pending)).WithError(err).Error("flush failed")
		s.mu.Lock()
		s.batch = append(pending, s.batch...)
		s.mu.Unlock()
		return err
	}
	s.logger.WithField("actions", len(pending)).Debug("flushed actions")
	return nil
}

// Pending returns how many records wait for a flush.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}

// ExpireInactive marks every session silent for longer than the inactivity window as abandoned
// and returns how many were marked.
func (s *Service) ExpireInactive(ctx context.Context) int {
	now := s.now()
	stale := make(map[uuid.UUID]time.Time)
	s.mu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			stale[id] = last
		}
	}
	s.mu.Unlock()
	if len(stale) == 0 {
		return 0
	}

	// Actions of a stale session still in the batch must land before it is marked. Sessions stay
	// tracked until they are marked, so a failed flush or mark is retried on the next pass.
	if err := s.Flush(ctx); err != nil {
		s.logger.WithField("sessions", len(stale)).Warn("skipping abandonment until pending actions are stored")
		return 0
	}
	marked := 0
	for id, last := range stale {
		if err := s.sink.MarkAbandoned(ctx, id); err != nil {
			s.logger.WithField("session", id).WithError(err).Error("failed to mark session abandoned")
			continue
		}
		s.mu.Lock()
		if s.lastActivity[id].Equal(last) {
			delete(s.lastActivity, id)
		}
		s.mu.Unlock()
		marked++
		s.logger.WithField("session", id).Info("marked session abandoned due to inactivity")
	}
	return marked
}
