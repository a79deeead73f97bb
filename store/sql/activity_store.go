package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// ActivityStore is the append-only audit trail for dispatch operations.
type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityEntryRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityEntryRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Append(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("sqlstore: activity action is required")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := &activityEntryRecord{
		ID:         id,
		Actor:      strings.TrimSpace(entry.Actor),
		Action:     strings.TrimSpace(entry.Action),
		ObjectType: strings.TrimSpace(entry.Object),
		ObjectID:   strings.TrimSpace(entry.ObjectID),
		Status:     string(entry.Status),
		Metadata:   copyAnyMap(entry.Metadata),
		CreatedAt:  createdAt,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("%w: append activity entry: %v", core.ErrPersistence, err)
	}
	return nil
}

// ListByObject returns the audit trail for one object, oldest first.
func (s *ActivityStore) ListByObject(ctx context.Context, objectID string) ([]core.ActivityEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: activity store is not configured")
	}
	var records []activityEntryRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.object_id = ?", strings.TrimSpace(objectID)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list activity entries: %v", core.ErrPersistence, err)
	}
	out := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		out = append(out, core.ActivityEntry{
			ID:        record.ID,
			Actor:     record.Actor,
			Action:    record.Action,
			Object:    record.ObjectType,
			ObjectID:  record.ObjectID,
			Status:    core.ActivityStatus(record.Status),
			Metadata:  copyAnyMap(record.Metadata),
			CreatedAt: record.CreatedAt,
		})
	}
	return out, nil
}

// Prune removes entries created before the cutoff and reports how many rows
// were dropped. Retention is the caller's policy.
func (s *ActivityStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	if before.IsZero() {
		return 0, nil
	}
	result, err := s.db.NewDelete().
		Model((*activityEntryRecord)(nil)).
		Where("?TableAlias.created_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: prune activity entries: %v", core.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

var _ core.ActivityStore = (*ActivityStore)(nil)
