// Package privacy exposes the regulatory data-deletion request surface.
//
// The surface exists so hosts have a stable place to route right-to-erasure
// requests, but it is deliberately non-functional: erasure across an
// append-only backup chain needs a compaction design that does not exist
// yet. Requests are acknowledged and recorded, never fulfilled.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotImplemented is returned for every erasure request.
var ErrNotImplemented = errors.New("data deletion is not implemented")

// Request records one received deletion request.
type Request struct {
	IdentityID int64
	ReceivedAt time.Time
	Reference  string
}

// Handler accepts and records deletion requests.
type Handler struct {
	mu       sync.Mutex
	requests []Request
	clock    func() time.Time
}

// NewHandler creates a deletion-request handler.
func NewHandler() *Handler {
	return &Handler{clock: time.Now}
}

// RequestErasure records a deletion request for the identity and returns
// ErrNotImplemented: the caller must escalate to a manual process.
func (h *Handler) RequestErasure(ctx context.Context, identityID int64, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("privacy handler is not configured")
	}
	if identityID <= 0 {
		return fmt.Errorf("identity id is required")
	}

	h.mu.Lock()
	h.requests = append(h.requests, Request{
		IdentityID: identityID,
		ReceivedAt: h.clock().UTC(),
		Reference:  strings.TrimSpace(reference),
	})
	h.mu.Unlock()

	return ErrNotImplemented
}

// Pending returns the recorded, unfulfilled requests.
func (h *Handler) Pending() []Request {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := make([]Request, len(h.requests))
	copy(pending, h.requests)
	return pending
}
