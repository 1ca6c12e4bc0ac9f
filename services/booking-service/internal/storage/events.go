package storage

import (
	"context"

	"github.com/agendly/agendly/services/booking-service/internal/inbox"
	"github.com/agendly/agendly/services/booking-service/internal/outbox"
)

func (r *Repository) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return outbox.Insert(ctx, r.q, evt)
}

// RecordInbox returns false when eventID was already processed.
func (r *Repository) RecordInbox(ctx context.Context, eventID, eventType string) (bool, error) {
	return inbox.Record(ctx, r.q, eventID, eventType)
}
