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

// PaymentEventStore is the append-only payment ledger. The (gateway_ref,
// kind) tuple dedupes webhook replays: a second Record of the same tuple
// returns the existing row with created=false.
type PaymentEventStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentEventRecord]
}

func NewPaymentEventStore(db *bun.DB) (*PaymentEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*paymentEventRecord](db, paymentEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid payment event repository wiring: %w", err)
		}
	}
	return &PaymentEventStore{db: db, repo: repo}, nil
}

func (s *PaymentEventStore) Record(ctx context.Context, event core.PaymentEvent) (core.PaymentEvent, bool, error) {
	if s == nil || s.db == nil {
		return core.PaymentEvent{}, false, fmt.Errorf("sqlstore: payment event store is not configured")
	}
	gatewayRef := strings.TrimSpace(event.GatewayRef)
	kind := strings.TrimSpace(string(event.Kind))
	if gatewayRef == "" || kind == "" {
		return core.PaymentEvent{}, false, fmt.Errorf("sqlstore: gateway ref and event kind are required")
	}

	var stored core.PaymentEvent
	created := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &paymentEventRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.gateway_ref = ?", gatewayRef).
			Where("?TableAlias.kind = ?", kind).
			Scan(ctx)
		if err == nil {
			stored = existing.toDomain()
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: lookup payment event: %v", core.ErrPersistence, err)
		}

		createdAt := event.CreatedAt.UTC()
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		record := &paymentEventRecord{
			ID:               uuid.NewString(),
			ServiceRequestID: strings.TrimSpace(event.ServiceRequestID),
			Kind:             kind,
			GatewayRef:       gatewayRef,
			Amount:           event.Amount,
			Currency:         strings.TrimSpace(event.Currency),
			Metadata:         copyAnyMap(event.Metadata),
			CreatedAt:        createdAt,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("%w: insert payment event: %v", core.ErrPersistence, err)
		}
		stored = record.toDomain()
		created = true
		return nil
	})
	if err != nil {
		return core.PaymentEvent{}, false, err
	}
	return stored, created, nil
}

// ListByRequest returns the ledger rows for one request, oldest first.
func (s *PaymentEventStore) ListByRequest(ctx context.Context, requestID string) ([]core.PaymentEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: payment event store is not configured")
	}
	var records []paymentEventRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.service_request_id = ?", strings.TrimSpace(requestID)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list payment events: %v", core.ErrPersistence, err)
	}
	out := make([]core.PaymentEvent, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

var _ core.PaymentEventStore = (*PaymentEventStore)(nil)
