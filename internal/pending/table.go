// Package pending tracks in-flight requests awaiting a correlated response.
// Each entry owns a deadline timer and a last-activity timestamp; a periodic
// sweep rejects entries that stopped making progress. An entry settles
// exactly once: the first Resolve or Reject wins and removes it.
package pending

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

const (
	// DefaultRequestTimeout is the deadline applied to a fresh request.
	DefaultRequestTimeout = 30 * time.Second

	// ProgressExtension is how far a progress_update pushes the deadline.
	ProgressExtension = 60 * time.Second

	// DefaultStuckAfter marks entries with no activity as stuck.
	DefaultStuckAfter = 5 * time.Minute

	defaultSweepInterval = time.Minute
)

// Outcome is what a waiter receives. Exactly one of Value or Err is set.
type Outcome struct {
	Value json.RawMessage
	Err   *protocol.CommandError
}

// Waiter is the receiving half of a registered request.
type Waiter struct {
	ch chan Outcome
}

// Done yields the single settled outcome.
func (w *Waiter) Done() <-chan Outcome { return w.ch }

type entry struct {
	command      string
	ch           chan Outcome
	timer        *time.Timer
	deadline     time.Time
	lastActivity time.Time
}

// Table maps request id to waiter. Safe for concurrent use; deadline timers
// may only reject, never resolve.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry

	stuckAfter time.Duration
	logger     zerolog.Logger

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	stopOnce    sync.Once
}

// NewTable starts a table with its liveness sweep. Zero durations take the
// package defaults.
func NewTable(stuckAfter, sweepInterval time.Duration, logger zerolog.Logger) *Table {
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckAfter
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	t := &Table{
		entries:    make(map[string]*entry),
		stuckAfter: stuckAfter,
		logger:     logger.With().Str("component", "pending").Logger(),
		stopSweep:  make(chan struct{}),
	}
	t.sweepTicker = time.NewTicker(sweepInterval)
	go t.sweepLoop()
	return t
}

// Register creates a waiter for id. Fails when the id is already pending;
// request ids must be unique per sender for the lifetime of the entry.
func (t *Table) Register(id string, deadline time.Time, command string) (*Waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[id]; exists {
		return nil, fmt.Errorf("request id %q already pending", id)
	}

	e := &entry{
		command:      command,
		ch:           make(chan Outcome, 1),
		deadline:     deadline,
		lastActivity: time.Now(),
	}
	e.timer = time.AfterFunc(time.Until(deadline), func() {
		t.Reject(id, protocol.Errorf(protocol.KindTimeout, "request %s timed out", id))
	})
	t.entries[id] = e
	return &Waiter{ch: e.ch}, nil
}

// Resolve settles id with a value. Returns false when the id is unknown or
// already settled; callers log and drop the late response.
func (t *Table) Resolve(id string, value json.RawMessage) bool {
	e := t.take(id)
	if e == nil {
		return false
	}
	e.ch <- Outcome{Value: value}
	return true
}

// Reject settles id with an error.
func (t *Table) Reject(id string, cerr *protocol.CommandError) bool {
	e := t.take(id)
	if e == nil {
		return false
	}
	e.ch <- Outcome{Err: cerr}
	return true
}

// Extend pushes the deadline out, never in, and refreshes last activity.
// Returns false for unknown ids.
func (t *Table) Extend(id string, newDeadline time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return false
	}
	e.lastActivity = time.Now()
	if newDeadline.After(e.deadline) {
		e.deadline = newDeadline
		e.timer.Stop()
		e.timer.Reset(time.Until(newDeadline))
	}
	return true
}

// RejectAll settles every entry with cerr. Used on disconnect and shutdown.
func (t *Table) RejectAll(cerr *protocol.CommandError) {
	t.mu.Lock()
	taken := t.entries
	t.entries = make(map[string]*entry)
	t.mu.Unlock()

	for id, e := range taken {
		e.timer.Stop()
		e.ch <- Outcome{Err: cerr}
		t.logger.Debug().Str("id", id).Str("command", e.command).
			Str("kind", string(cerr.Kind)).Msg("pending request rejected")
	}
}

// Len reports the number of in-flight entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Command reports the originating command for id, for observability.
func (t *Table) Command(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return "", false
	}
	return e.command, true
}

// Stop halts the liveness sweep. Entries keep their own timers.
func (t *Table) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopSweep)
	})
}

func (t *Table) take(id string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	e.timer.Stop()
	return e
}

func (t *Table) sweepLoop() {
	for {
		select {
		case <-t.sweepTicker.C:
			t.sweep()
		case <-t.stopSweep:
			t.sweepTicker.Stop()
			return
		}
	}
}

// sweep rejects entries with no activity for stuckAfter. Catches requests
// whose deadline keeps being extended while the peer stopped replying.
func (t *Table) sweep() {
	cutoff := time.Now().Add(-t.stuckAfter)

	t.mu.Lock()
	var stuck []string
	for id, e := range t.entries {
		if e.lastActivity.Before(cutoff) {
			stuck = append(stuck, id)
		}
	}
	t.mu.Unlock()

	for _, id := range stuck {
		if t.Reject(id, protocol.Errorf(protocol.KindTimeout, "request %s stuck with no activity", id)) {
			t.logger.Warn().Str("id", id).Msg("rejected stuck pending request")
		}
	}
}
