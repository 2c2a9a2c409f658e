package issuer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the outcome of an issuance or renewal attempt.
type EventType string

const (
	// EventIssued marks a certificate obtained for the first time.
	EventIssued EventType = "issued"
	// EventRenewed marks a certificate replaced ahead of expiry.
	EventRenewed EventType = "renewed"
	// EventLoaded marks a still-valid certificate restored from the cache.
	EventLoaded EventType = "loaded"
	// EventFailed marks a failed issuance or renewal attempt. The previously
	// installed certificate, if any, keeps being served.
	EventFailed EventType = "failed"
)

// Event is a lifecycle notification emitted by the issuance loop, one per
// attempt per domain.
type Event struct {
	ID         string
	Type       EventType
	Domain     string
	NotAfter   time.Time // leaf expiry, zero on failures
	Err        error     // non-nil only for EventFailed
	OccurredAt time.Time
}

func newEvent(t EventType, domain string, notAfter time.Time, err error) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		Domain:     domain,
		NotAfter:   notAfter,
		Err:        err,
		OccurredAt: time.Now(),
	}
}

// emit delivers an event to the pump task. Delivery blocks until the event
// is consumed or ctx is cancelled: the event sequence must be driven by a
// background task whose lifetime matches the server's.
func (s *State) emit(ctx context.Context, event Event) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
