package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// MechanicStore is the read-mostly projection of mechanic profiles the
// dispatch core consumes for offer enrichment and availability flips.
type MechanicStore struct {
	db   *bun.DB
	repo repository.Repository[*mechanicRecord]
}

func NewMechanicStore(db *bun.DB) (*MechanicStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*mechanicRecord](db, mechanicHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid mechanic repository wiring: %w", err)
		}
	}
	return &MechanicStore{db: db, repo: repo}, nil
}

func (s *MechanicStore) Get(ctx context.Context, id string) (core.Mechanic, error) {
	if s == nil || s.db == nil {
		return core.Mechanic{}, fmt.Errorf("sqlstore: mechanic store is not configured")
	}
	record := &mechanicRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Mechanic{}, fmt.Errorf("%w: mechanic %s", core.ErrNotFound, id)
		}
		return core.Mechanic{}, fmt.Errorf("%w: load mechanic: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

func (s *MechanicStore) GetMany(ctx context.Context, ids []string) (map[string]core.Mechanic, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: mechanic store is not configured")
	}
	out := make(map[string]core.Mechanic, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var records []mechanicRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load mechanics: %v", core.ErrPersistence, err)
	}
	for i := range records {
		mechanic := records[i].toDomain()
		out[mechanic.ID] = mechanic
	}
	return out, nil
}

func (s *MechanicStore) SetAvailability(ctx context.Context, id string, available bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: mechanic store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*mechanicRecord)(nil)).
		Set("is_available = ?", available).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: set mechanic availability: %v", core.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: set mechanic availability: %v", core.ErrPersistence, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: mechanic %s", core.ErrNotFound, id)
	}
	return nil
}

var _ core.MechanicStore = (*MechanicStore)(nil)
