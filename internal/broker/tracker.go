package broker

import (
	"sync"
	"time"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
)

// requestTracker keeps a provisional entry for every forwarded request so
// the matching response can be categorized as success or failure. Entries
// are dropped when categorized, when their sender disconnects, or by the
// stuck sweep. This is bookkeeping only; nothing here blocks routing.
type requestTracker struct {
	mu         sync.Mutex
	entries    map[string]*trackedRequest
	stuckAfter time.Duration
}

type trackedRequest struct {
	command      string
	senderID     string
	lastActivity time.Time
}

func newRequestTracker(stuckAfter time.Duration) *requestTracker {
	if stuckAfter <= 0 {
		stuckAfter = 5 * time.Minute
	}
	return &requestTracker{
		entries:    make(map[string]*trackedRequest),
		stuckAfter: stuckAfter,
	}
}

// track records a forwarded request keyed by message id. Request ids are
// unique per sender; an id collision overwrites, keeping the newest.
func (t *requestTracker) track(id, command, senderID string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &trackedRequest{
		command:      command,
		senderID:     senderID,
		lastActivity: time.Now(),
	}
}

// categorize consumes the entry for id and reports its command. ok is false
// for unknown ids (late or foreign responses).
func (t *requestTracker) categorize(id string, success bool) (string, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return "", false
	}
	status := "success"
	if !success {
		status = "failure"
	}
	monitoring.CommandsCompleted.WithLabelValues(e.command, status).Inc()
	return e.command, true
}

// touch refreshes activity for id; progress updates keep entries alive.
func (t *requestTracker) touch(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.lastActivity = time.Now()
	}
}

// dropSender removes every entry that belonged to a closed connection.
func (t *requestTracker) dropSender(senderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.entries {
		if e.senderID == senderID {
			delete(t.entries, id)
		}
	}
}

// sweep removes entries idle past stuckAfter and returns how many.
func (t *requestTracker) sweep() int {
	cutoff := time.Now().Add(-t.stuckAfter)

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, e := range t.entries {
		if e.lastActivity.Before(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	if removed > 0 {
		monitoring.TrackedRequestsSwept.Add(float64(removed))
	}
	return removed
}

// len reports the live entry count.
func (t *requestTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
