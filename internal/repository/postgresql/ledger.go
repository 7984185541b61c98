package postgresql

import (
	"context"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/salonlabs/billing-backend-go/internal/pkg/database"
)

type eventLedger struct {
	db *database.DB
}

func NewEventLedger(db *database.DB) billing.EventLedger {
	return &eventLedger{db: db}
}

func (r *eventLedger) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM billing_event_ledger WHERE event_id = $1
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessed relies on the unique index on event_id: when two deliveries of
// the same event race past HasProcessed, only one insert lands and the loser
// gets ErrEventAlreadyProcessed.
func (r *eventLedger) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO billing_event_ledger (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	tag, err := q.Exec(ctx, query, eventID, eventType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrEventAlreadyProcessed
	}
	return nil
}
