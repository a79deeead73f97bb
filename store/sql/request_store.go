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

// RequestStore persists service requests. Lifecycle moves go through a
// compare-and-swap on the status column: zero affected rows means the caller
// raced another transition.
type RequestStore struct {
	db   *bun.DB
	repo repository.Repository[*serviceRequestRecord]
}

func NewRequestStore(db *bun.DB) (*RequestStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*serviceRequestRecord](db, requestHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid request repository wiring: %w", err)
		}
	}
	return &RequestStore{db: db, repo: repo}, nil
}

func (s *RequestStore) Create(ctx context.Context, in core.CreateRequestInput) (core.ServiceRequest, error) {
	if s == nil || s.db == nil {
		return core.ServiceRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	status := core.RequestStatusRequested
	if in.Booked {
		status = core.RequestStatusBooked
	}
	now := time.Now().UTC()
	record := newRequestRecord(in, status, now)
	record.ID = uuid.NewString()

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.ServiceRequest{}, fmt.Errorf("%w: insert service request: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

func (s *RequestStore) Get(ctx context.Context, id string) (core.ServiceRequest, error) {
	if s == nil || s.db == nil {
		return core.ServiceRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	record := &serviceRequestRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ServiceRequest{}, fmt.Errorf("%w: service request %s", core.ErrNotFound, id)
		}
		return core.ServiceRequest{}, fmt.Errorf("%w: load service request: %v", core.ErrPersistence, err)
	}
	return record.toDomain(), nil
}

// ApplyTransition moves status From -> To guarded on the current row value.
// From == To stamps the side-effect columns without moving status. A guard
// miss surfaces ErrInvalidTransition; a missing row surfaces ErrNotFound.
func (s *RequestStore) ApplyTransition(ctx context.Context, in core.TransitionUpdate) (core.ServiceRequest, error) {
	if s == nil || s.db == nil {
		return core.ServiceRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		return core.ServiceRequest{}, fmt.Errorf("sqlstore: request id is required")
	}
	now := time.Now().UTC()

	query := s.db.NewUpdate().
		Model((*serviceRequestRecord)(nil)).
		Set("status = ?", string(in.To)).
		Set("updated_at = ?", now).
		Where("id = ?", requestID).
		Where("status = ?", string(in.From))

	if in.ArrivalCode != "" {
		query = query.Set("arrival_code = ?", in.ArrivalCode)
	}
	if in.CompletionCode != "" {
		query = query.Set("completion_code = ?", in.CompletionCode)
	}
	if in.PaymentHoldID != "" {
		query = query.Set("payment_hold_id = ?", in.PaymentHoldID)
	}
	if in.PaymentID != "" {
		query = query.Set("payment_id = ?", in.PaymentID)
	}
	if in.StartTime != nil {
		query = query.Set("start_time = ?", in.StartTime.UTC())
	}
	if in.CompletionTime != nil {
		query = query.Set("completion_time = ?", in.CompletionTime.UTC())
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return core.ServiceRequest{}, fmt.Errorf("%w: apply transition: %v", core.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ServiceRequest{}, fmt.Errorf("%w: apply transition: %v", core.ErrPersistence, err)
	}
	if affected == 0 {
		current, loadErr := s.Get(ctx, requestID)
		if loadErr != nil {
			return core.ServiceRequest{}, loadErr
		}
		return core.ServiceRequest{}, fmt.Errorf(
			"%w: guard %s does not match row %s", core.ErrInvalidTransition, in.From, current.Status,
		)
	}
	return s.Get(ctx, requestID)
}

// DeleteCascade removes a pre-COMPLETED request and every offer bound to it
// in one transaction, returning the deleted snapshot.
func (s *RequestStore) DeleteCascade(ctx context.Context, id string) (core.ServiceRequest, error) {
	if s == nil || s.db == nil {
		return core.ServiceRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ServiceRequest{}, fmt.Errorf("sqlstore: request id is required")
	}

	var snapshot core.ServiceRequest
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &serviceRequestRecord{}
		if err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: service request %s", core.ErrNotFound, id)
			}
			return fmt.Errorf("%w: load service request: %v", core.ErrPersistence, err)
		}
		if core.RequestStatus(record.Status) == core.RequestStatusCompleted {
			return fmt.Errorf("%w: request %s is COMPLETED", core.ErrInvalidState, id)
		}

		result, err := tx.NewDelete().
			Model((*serviceRequestRecord)(nil)).
			Where("id = ?", id).
			Where("status = ?", record.Status).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: delete service request: %v", core.ErrPersistence, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete service request: %v", core.ErrPersistence, err)
		}
		if affected == 0 {
			// The row moved between the read and the delete.
			return fmt.Errorf("%w: request %s changed during cancellation", core.ErrInvalidTransition, id)
		}

		if _, err := tx.NewDelete().
			Model((*serviceOfferRecord)(nil)).
			Where("service_request_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("%w: delete offers: %v", core.ErrPersistence, err)
		}

		snapshot = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ServiceRequest{}, err
	}
	return snapshot, nil
}

// UpdateMechanicLocation persists a position sample only while the row is
// still IN_ROUTE, reporting whether anything was written.
func (s *RequestStore) UpdateMechanicLocation(ctx context.Context, id string, position core.GeoPoint, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: request store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*serviceRequestRecord)(nil)).
		Set("mechanic_latitude = ?", position.Latitude).
		Set("mechanic_longitude = ?", position.Longitude).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.RequestStatusInRoute)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: update mechanic location: %v", core.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: update mechanic location: %v", core.ErrPersistence, err)
	}
	return affected > 0, nil
}

var _ core.RequestStore = (*RequestStore)(nil)
