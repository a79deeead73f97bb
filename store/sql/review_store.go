package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// ReviewStore persists reviews. One review per request is enforced by the
// unique constraint on service_request_id; the mechanic's average rating is
// recomputed in the same transaction as the insert.
type ReviewStore struct {
	db   *bun.DB
	repo repository.Repository[*reviewRecord]
}

func NewReviewStore(db *bun.DB) (*ReviewStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*reviewRecord](db, reviewHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid review repository wiring: %w", err)
		}
	}
	return &ReviewStore{db: db, repo: repo}, nil
}

func (s *ReviewStore) Create(ctx context.Context, in core.CreateReviewInput) (core.Review, error) {
	if s == nil || s.db == nil {
		return core.Review{}, fmt.Errorf("sqlstore: review store is not configured")
	}
	record := &reviewRecord{
		ID:               uuid.NewString(),
		ServiceRequestID: strings.TrimSpace(in.ServiceRequestID),
		ClientID:         strings.TrimSpace(in.ClientID),
		MechanicID:       strings.TrimSpace(in.MechanicID),
		Rating:           in.Rating,
		Comment:          strings.TrimSpace(in.Comment),
		CreatedAt:        time.Now().UTC(),
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*reviewRecord)(nil)).
			Where("?TableAlias.service_request_id = ?", record.ServiceRequestID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("%w: check existing review: %v", core.ErrPersistence, err)
		}
		if exists {
			return fmt.Errorf("%w: request %s", core.ErrReviewAlreadyExists, record.ServiceRequestID)
		}

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("%w: insert review: %v", core.ErrPersistence, err)
		}

		var stats struct {
			Average float64 `bun:"average"`
			Count   int     `bun:"count"`
		}
		if err := tx.NewSelect().
			Model((*reviewRecord)(nil)).
			ColumnExpr("AVG(rating) AS average").
			ColumnExpr("COUNT(*) AS count").
			Where("?TableAlias.mechanic_id = ?", record.MechanicID).
			Scan(ctx, &stats); err != nil {
			return fmt.Errorf("%w: recompute mechanic rating: %v", core.ErrPersistence, err)
		}

		if _, err := tx.NewUpdate().
			Model((*mechanicRecord)(nil)).
			Set("rating = ?", stats.Average).
			Set("review_count = ?", stats.Count).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", record.MechanicID).
			Exec(ctx); err != nil {
			return fmt.Errorf("%w: update mechanic rating: %v", core.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return core.Review{}, err
	}
	return record.toDomain(), nil
}

func (s *ReviewStore) GetByRequest(ctx context.Context, requestID string) (core.Review, error) {
	if s == nil || s.db == nil {
		return core.Review{}, fmt.Errorf("sqlstore: review store is not configured")
	}
	record := &reviewRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.service_request_id = ?", strings.TrimSpace(requestID)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Review{}, fmt.Errorf("%w: no review for request %s", core.ErrNotFound, requestID)
		}
		return core.Review{}, fmt.Errorf("%w: load review: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

var _ core.ReviewStore = (*ReviewStore)(nil)
