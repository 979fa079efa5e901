package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-connect/core"
)

// EventStore is the durable core.EventSink: an append-only ledger of
// connection lifecycle events.
type EventStore struct {
	repo repository.Repository[*connectionEventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionEventRecord](db, connectionEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection event repository wiring: %w", err)
		}
	}
	return &EventStore{repo: repo}, nil
}

func (s *EventStore) Record(ctx context.Context, event core.ConnectionEvent) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return fmt.Errorf("sqlstore: event user id is required")
	}
	if strings.TrimSpace(event.EventType) == "" {
		return fmt.Errorf("sqlstore: event type is required")
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := &connectionEventRecord{
		ID:             strings.TrimSpace(event.ID),
		UserID:         strings.TrimSpace(event.UserID),
		ProviderID:     strings.TrimSpace(event.ProviderID),
		ProviderUserID: strings.TrimSpace(event.ProviderUserID),
		EventType:      strings.TrimSpace(event.EventType),
		Metadata:       event.Metadata,
		CreatedAt:      createdAt.UTC(),
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// ListByUser returns a user's lifecycle events, newest first.
func (s *EventStore) ListByUser(ctx context.Context, userID string, limit int) ([]core.ConnectionEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.ConnectionEvent, 0, len(records))
	for _, record := range records {
		out = append(out, core.ConnectionEvent{
			ID:             record.ID,
			UserID:         record.UserID,
			ProviderID:     record.ProviderID,
			ProviderUserID: record.ProviderUserID,
			EventType:      record.EventType,
			Metadata:       record.Metadata,
			CreatedAt:      record.CreatedAt.UTC(),
		})
	}
	return out, nil
}

var _ core.EventSink = (*EventStore)(nil)
