package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDeliveryLedger is a process-local DeliveryLedger. Suitable for a
// single intake instance; multi-instance deployments need a shared ledger.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]*DeliveryRecord
	now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]*DeliveryRecord{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	gatewayID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	gatewayID = strings.TrimSpace(gatewayID)
	deliveryID = strings.TrimSpace(deliveryID)
	if gatewayID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: gateway and delivery ids are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	now := l.now()
	key := ledgerKey(gatewayID, deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[key]
	if !exists {
		record = &DeliveryRecord{
			ID:         uuid.NewString(),
			GatewayID:  gatewayID,
			DeliveryID: deliveryID,
			CreatedAt:  now,
		}
		l.records[key] = record
	}

	claimable := false
	switch record.Status {
	case "", DeliveryStatusPending:
		claimable = true
	case DeliveryStatusRetryReady:
		claimable = record.NextAttemptAt == nil || !record.NextAttemptAt.After(now)
	case DeliveryStatusProcessing:
		// A stale lease means the previous claimant died mid-flight.
		claimable = now.Sub(record.UpdatedAt) >= lease
	}
	if !claimable {
		return *record, false, nil
	}

	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, gatewayID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, exists := l.records[ledgerKey(strings.TrimSpace(gatewayID), strings.TrimSpace(deliveryID))]
	if !exists {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %s/%s not found", gatewayID, deliveryID)
	}
	return *record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record := l.byClaimLocked(claimID)
	if record == nil {
		return fmt.Errorf("webhooks: claim %s not found", claimID)
	}
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record := l.byClaimLocked(claimID)
	if record == nil {
		return fmt.Errorf("webhooks: claim %s not found", claimID)
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) byClaimLocked(claimID string) *DeliveryRecord {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	for _, record := range l.records {
		if record.ClaimID == claimID {
			return record
		}
	}
	return nil
}

func ledgerKey(gatewayID string, deliveryID string) string {
	return gatewayID + "/" + deliveryID
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
