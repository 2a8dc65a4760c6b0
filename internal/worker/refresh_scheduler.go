// Package worker provides the refresh scheduler that keeps cached pacing
// reports warm without hammering the warehouse.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pacing-engine/internal/logging"
)

// RefreshFunc recomputes pacing for one campaign
type RefreshFunc func(ctx context.Context, campaignID string) error

// runHandle identifies one in-flight refresh so a superseded run cannot
// clear the slot of its replacement.
type runHandle struct {
	id     string
	cancel context.CancelFunc
}

// RefreshScheduler coalesces repeated refresh triggers for a campaign within
// a fixed window and invokes the refresh function once per burst of triggers.
// A trigger arriving while a refresh is already running cancels the
// superseded run and schedules a fresh one, so the last trigger always wins.
type RefreshScheduler struct {
	window time.Duration
	fn     RefreshFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	running map[string]*runHandle
	closed  bool
	wg      sync.WaitGroup
}

// NewRefreshScheduler creates a scheduler with the given coalescing window
func NewRefreshScheduler(window time.Duration, fn RefreshFunc) *RefreshScheduler {
	return &RefreshScheduler{
		window:  window,
		fn:      fn,
		pending: make(map[string]*time.Timer),
		running: make(map[string]*runHandle),
	}
}

// Trigger requests a refresh for a campaign. Triggers within the coalescing
// window collapse into a single run.
func (s *RefreshScheduler) Trigger(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	// Already queued: the pending run will cover this trigger too.
	if _, ok := s.pending[campaignID]; ok {
		return
	}

	// A run in flight is now stale; cancel it and queue a replacement.
	if handle, ok := s.running[campaignID]; ok {
		handle.cancel()
		delete(s.running, campaignID)
	}

	s.pending[campaignID] = time.AfterFunc(s.window, func() {
		s.run(campaignID)
	})
}

// run executes one refresh after the coalescing window elapses
func (s *RefreshScheduler) run(campaignID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, campaignID)

	ctx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{id: uuid.NewString(), cancel: cancel}
	s.running[campaignID] = handle
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if current, ok := s.running[campaignID]; ok && current.id == handle.id {
				delete(s.running, campaignID)
			}
			s.mu.Unlock()
			cancel()
		}()

		logger := logging.WithFields(map[string]interface{}{
			"campaignId": campaignID,
			"refreshRun": handle.id,
		})

		if err := s.fn(ctx, campaignID); err != nil {
			if ctx.Err() == context.Canceled {
				logger.Debug("Refresh run superseded")
				return
			}
			logger.WithError(err).Warn("Refresh run failed")
			return
		}

		logger.Debug("Refresh run completed")
	}()
}

// Close stops accepting triggers, cancels queued timers, and waits for
// in-flight runs to finish.
func (s *RefreshScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
	for id, handle := range s.running {
		handle.cancel()
		delete(s.running, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
