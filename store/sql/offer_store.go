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

// OfferStore persists bids. Accept is the arbitration transaction: exactly
// one PENDING offer survives as ACCEPTED, siblings are deleted, and the
// request row is bound in the same transaction.
type OfferStore struct {
	db   *bun.DB
	repo repository.Repository[*serviceOfferRecord]
}

func NewOfferStore(db *bun.DB) (*OfferStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*serviceOfferRecord](db, offerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid offer repository wiring: %w", err)
		}
	}
	return &OfferStore{db: db, repo: repo}, nil
}

func (s *OfferStore) Insert(ctx context.Context, in core.SubmitOfferInput) (core.ServiceOffer, error) {
	if s == nil || s.db == nil {
		return core.ServiceOffer{}, fmt.Errorf("sqlstore: offer store is not configured")
	}
	now := time.Now().UTC()
	record := newOfferRecord(in, now)
	record.ID = uuid.NewString()

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.ServiceOffer{}, fmt.Errorf("%w: insert offer: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

func (s *OfferStore) Get(ctx context.Context, id string) (core.ServiceOffer, error) {
	if s == nil || s.db == nil {
		return core.ServiceOffer{}, fmt.Errorf("sqlstore: offer store is not configured")
	}
	record := &serviceOfferRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ServiceOffer{}, fmt.Errorf("%w: offer %s", core.ErrNotFound, id)
		}
		return core.ServiceOffer{}, fmt.Errorf("%w: load offer: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

func (s *OfferStore) ListActive(ctx context.Context, requestID string, limit int, now time.Time) ([]core.ServiceOffer, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: offer store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	var records []serviceOfferRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.service_request_id = ?", strings.TrimSpace(requestID)).
		Where("?TableAlias.status IN (?)", bun.In([]string{
			string(core.OfferStatusPending),
			string(core.OfferStatusAccepted),
		})).
		Where("?TableAlias.expires_at > ?", now.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list offers: %v", core.ErrPersistence, err)
	}

	out := make([]core.ServiceOffer, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

// Accept runs the single-winner arbitration. The offer is CAS-moved from
// PENDING to ACCEPTED and the request from REQUESTED to ACCEPTED inside one
// transaction; either guard missing rolls the whole thing back.
func (s *OfferStore) Accept(ctx context.Context, offerID string, requestID string, now time.Time) (core.AcceptOfferOutcome, error) {
	if s == nil || s.db == nil {
		return core.AcceptOfferOutcome{}, fmt.Errorf("sqlstore: offer store is not configured")
	}
	offerID = strings.TrimSpace(offerID)
	requestID = strings.TrimSpace(requestID)
	at := now.UTC()

	var outcome core.AcceptOfferOutcome
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*serviceOfferRecord)(nil)).
			Set("status = ?", string(core.OfferStatusAccepted)).
			Set("updated_at = ?", at).
			Where("id = ?", offerID).
			Where("service_request_id = ?", requestID).
			Where("status = ?", string(core.OfferStatusPending)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: accept offer: %v", core.ErrPersistence, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: accept offer: %v", core.ErrPersistence, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: offer %s", core.ErrOfferNotAvailable, offerID)
		}

		offer := &serviceOfferRecord{}
		if err := tx.NewSelect().
			Model(offer).
			Where("?TableAlias.id = ?", offerID).
			Scan(ctx); err != nil {
			return fmt.Errorf("%w: reload offer: %v", core.ErrPersistence, err)
		}

		siblings, err := tx.NewDelete().
			Model((*serviceOfferRecord)(nil)).
			Where("service_request_id = ?", requestID).
			Where("id != ?", offerID).
			Where("status = ?", string(core.OfferStatusPending)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: discard sibling offers: %v", core.ErrPersistence, err)
		}
		discarded, err := siblings.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: discard sibling offers: %v", core.ErrPersistence, err)
		}

		bound, err := tx.NewUpdate().
			Model((*serviceRequestRecord)(nil)).
			Set("status = ?", string(core.RequestStatusAccepted)).
			Set("mechanic_id = ?", offer.MechanicID).
			Set("total_amount = ?", offer.Price).
			Set("updated_at = ?", at).
			Where("id = ?", requestID).
			Where("status = ?", string(core.RequestStatusRequested)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: bind request: %v", core.ErrPersistence, err)
		}
		boundRows, err := bound.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: bind request: %v", core.ErrPersistence, err)
		}
		if boundRows == 0 {
			return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition,
				core.RequestStatusRequested, core.RequestStatusAccepted)
		}

		request := &serviceRequestRecord{}
		if err := tx.NewSelect().
			Model(request).
			Where("?TableAlias.id = ?", requestID).
			Scan(ctx); err != nil {
			return fmt.Errorf("%w: reload request: %v", core.ErrPersistence, err)
		}

		outcome = core.AcceptOfferOutcome{
			Request:       request.toDomain(),
			Offer:         offer.toDomain(),
			DiscardedBids: int(discarded),
		}
		return nil
	})
	if err != nil {
		return core.AcceptOfferOutcome{}, err
	}
	return outcome, nil
}

func (s *OfferStore) AcceptedFor(ctx context.Context, requestID string) (core.ServiceOffer, error) {
	if s == nil || s.db == nil {
		return core.ServiceOffer{}, fmt.Errorf("sqlstore: offer store is not configured")
	}
	record := &serviceOfferRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.service_request_id = ?", strings.TrimSpace(requestID)).
		Where("?TableAlias.status = ?", string(core.OfferStatusAccepted)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ServiceOffer{}, fmt.Errorf("%w: no accepted offer for request %s", core.ErrNotFound, requestID)
		}
		return core.ServiceOffer{}, fmt.Errorf("%w: load accepted offer: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

func (s *OfferStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: offer store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*serviceOfferRecord)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete offer: %v", core.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete offer: %v", core.ErrPersistence, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: offer %s", core.ErrNotFound, id)
	}
	return nil
}

// Expire is idempotent: an already EXPIRED offer passes through untouched.
func (s *OfferStore) Expire(ctx context.Context, id string, now time.Time) (core.ServiceOffer, error) {
	if s == nil || s.db == nil {
		return core.ServiceOffer{}, fmt.Errorf("sqlstore: offer store is not configured")
	}
	id = strings.TrimSpace(id)
	if _, err := s.db.NewUpdate().
		Model((*serviceOfferRecord)(nil)).
		Set("status = ?", string(core.OfferStatusExpired)).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("status != ?", string(core.OfferStatusExpired)).
		Exec(ctx); err != nil {
		return core.ServiceOffer{}, fmt.Errorf("%w: expire offer: %v", core.ErrPersistence, err)
	}
	return s.Get(ctx, id)
}

func (s *OfferStore) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: offer store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*serviceOfferRecord)(nil)).
		Set("status = ?", string(core.OfferStatusExpired)).
		Set("updated_at = ?", now.UTC()).
		Where("status = ?", string(core.OfferStatusPending)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: expire stale offers: %v", core.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: expire stale offers: %v", core.ErrPersistence, err)
	}
	return int(affected), nil
}

var _ core.OfferStore = (*OfferStore)(nil)
