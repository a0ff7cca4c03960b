// Package rng tracks outstanding randomness requests. Seeding a bracket is
// split into a request and an out-of-band fulfillment so the seed source can
// live outside the settlement core; the table pins each fulfillment to the
// tournament that asked for it and rejects replays.
package rng

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnknownRequest   = errors.New("unknown randomness request")
	ErrAlreadyFulfilled = errors.New("randomness request already fulfilled")
)

type request struct {
	subject   string
	fulfilled bool
}

// Table is an in-memory index of randomness requests keyed by request ID.
// Safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	pending map[string]*request
}

func NewTable() *Table {
	return &Table{pending: make(map[string]*request)}
}

// Issue registers a new request on behalf of subject and returns its ID.
func (t *Table) Issue(subject string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.pending[id] = &request{subject: subject}
	return id
}

// Fulfill marks the request as consumed and returns the subject it was issued
// for. A second fulfillment of the same ID fails.
func (t *Table) Fulfill(id string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.pending[id]
	if !ok {
		return "", ErrUnknownRequest
	}
	if req.fulfilled {
		return "", ErrAlreadyFulfilled
	}
	req.fulfilled = true
	return req.subject, nil
}

// Restore re-registers an unfulfilled request with a known ID. Used when
// rebuilding state from the event log.
func (t *Table) Restore(id, subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[id] = &request{subject: subject}
}
