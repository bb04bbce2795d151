// Package call owns per-session correlation of outbound calls to their
// replies. Each registered call gets its own buffered channel; the listener
// loop resolves it exactly once when the matching result or error frame
// arrives, and the table fails every waiter when the connection closes.
package call

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/ocpp"
)

// Outcome is what a waiter wakes up with: a reply payload flagged as result
// or error, or a session-level failure such as connection close.
type Outcome struct {
	Payload json.RawMessage
	IsError bool
	Err     error
}

// Pending is the waiter handle for one outstanding call.
type Pending struct {
	ID        string
	Action    ocpp.Action
	CreatedAt time.Time

	done chan Outcome
}

// Wait suspends until the call resolves or ctx expires. The caller must
// Cancel the pending entry on ctx expiry; Wait does not mutate the table.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case out := <-p.done:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Table tracks the sender's currently-outstanding calls on one connection.
type Table struct {
	mu      sync.Mutex
	pending map[string]*Pending
	closed  bool
	log     zerolog.Logger
}

func NewTable(log zerolog.Logger) *Table {
	return &Table{
		pending: make(map[string]*Pending),
		log:     log,
	}
}

// Register creates a pending entry for id before the frame is sent.
func (t *Table) Register(id string, action ocpp.Action) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ocpp.ErrConnectionClosed
	}
	if _, ok := t.pending[id]; ok {
		return nil, ocpp.ErrDuplicateCallID
	}
	p := &Pending{
		ID:        id,
		Action:    action,
		CreatedAt: time.Now(),
		// Buffered so the listener loop never blocks on a slow caller.
		done: make(chan Outcome, 1),
	}
	t.pending[id] = p
	return p, nil
}

// Resolve wakes the waiter for id with (payload, isError) and removes the
// entry. A resolution for an unknown or already-resolved id is a no-op:
// duplicate or late frames must not disturb the session.
func (t *Table) Resolve(id string, payload json.RawMessage, isError bool) bool {
	t.mu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		t.log.Warn().Str("message_id", id).Msg("unmatched correlation dropped")
		return false
	}
	p.done <- Outcome{Payload: payload, IsError: isError}
	return true
}

// Cancel removes id without waking its waiter. Used by callers that gave up
// on the call (send failure or deadline expiry) so a late reply is dropped
// instead of leaking a channel send.
func (t *Table) Cancel(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// FailAll resolves every outstanding call with err and marks the table
// closed; later Register calls fail. Safe to call more than once.
func (t *Table) FailAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]*Pending)
	t.closed = true
	t.mu.Unlock()
	for _, p := range pending {
		p.done <- Outcome{Err: err}
	}
	if len(pending) > 0 {
		t.log.Warn().Int("pending", len(pending)).Err(err).Msg("failed outstanding calls")
	}
}

// Len reports the number of outstanding calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
