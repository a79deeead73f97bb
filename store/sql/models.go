package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type serviceRequestRecord struct {
	bun.BaseModel `bun:"table:dispatch_service_requests,alias:dsr"`

	ID                string         `bun:"id,pk"`
	ClientID          string         `bun:"client_id,notnull"`
	MechanicID        *string        `bun:"mechanic_id"`
	Status            string         `bun:"status,notnull"`
	ServiceType       string         `bun:"service_type,notnull"`
	Description       string         `bun:"description"`
	Latitude          float64        `bun:"latitude,notnull"`
	Longitude         float64        `bun:"longitude,notnull"`
	MechanicLatitude  *float64       `bun:"mechanic_latitude"`
	MechanicLongitude *float64       `bun:"mechanic_longitude"`
	ArrivalCode       string         `bun:"arrival_code"`
	CompletionCode    string         `bun:"completion_code"`
	PaymentHoldID     string         `bun:"payment_hold_id"`
	PaymentID         string         `bun:"payment_id"`
	TotalAmount       float64        `bun:"total_amount,notnull"`
	Currency          string         `bun:"currency,notnull"`
	Metadata          map[string]any `bun:"metadata,type:jsonb"`
	StartTime         *time.Time     `bun:"start_time,nullzero"`
	CompletionTime    *time.Time     `bun:"completion_time,nullzero"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type serviceOfferRecord struct {
	bun.BaseModel `bun:"table:dispatch_service_offers,alias:dso"`

	ID               string    `bun:"id,pk"`
	ServiceRequestID string    `bun:"service_request_id,notnull"`
	MechanicID       string    `bun:"mechanic_id,notnull"`
	Status           string    `bun:"status,notnull"`
	Price            float64   `bun:"price,notnull"`
	Note             string    `bun:"note"`
	Latitude         float64   `bun:"latitude"`
	Longitude        float64   `bun:"longitude"`
	ExpiresAt        time.Time `bun:"expires_at,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type mechanicRecord struct {
	bun.BaseModel `bun:"table:dispatch_mechanics,alias:dm"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	DisplayName     string    `bun:"display_name,notnull"`
	IsAvailable     bool      `bun:"is_available,notnull"`
	Rating          float64   `bun:"rating,notnull"`
	ReviewCount     int       `bun:"review_count,notnull"`
	ServicesOffered []string  `bun:"services_offered,type:jsonb"`
	Latitude        float64   `bun:"latitude"`
	Longitude       float64   `bun:"longitude"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type reviewRecord struct {
	bun.BaseModel `bun:"table:dispatch_reviews,alias:drv"`

	ID               string    `bun:"id,pk"`
	ServiceRequestID string    `bun:"service_request_id,notnull,unique"`
	ClientID         string    `bun:"client_id,notnull"`
	MechanicID       string    `bun:"mechanic_id,notnull"`
	Rating           int       `bun:"rating,notnull"`
	Comment          string    `bun:"comment"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type paymentEventRecord struct {
	bun.BaseModel `bun:"table:dispatch_payment_events,alias:dpe"`

	ID               string         `bun:"id,pk"`
	ServiceRequestID string         `bun:"service_request_id,notnull"`
	Kind             string         `bun:"kind,notnull"`
	GatewayRef       string         `bun:"gateway_ref,notnull"`
	Amount           float64        `bun:"amount,notnull"`
	Currency         string         `bun:"currency"`
	Metadata         map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type lifecycleOutboxRecord struct {
	bun.BaseModel `bun:"table:dispatch_lifecycle_outbox,alias:dlo"`

	ID               string         `bun:"id,pk"`
	EventID          string         `bun:"event_id,notnull"`
	EventName        string         `bun:"event_name,notnull"`
	ServiceRequestID string         `bun:"service_request_id,notnull"`
	MechanicID       string         `bun:"mechanic_id"`
	ClientID         string         `bun:"client_id"`
	Payload          map[string]any `bun:"payload,type:jsonb,notnull"`
	Metadata         map[string]any `bun:"metadata,type:jsonb,notnull"`
	Status           string         `bun:"status,notnull"`
	Attempts         int            `bun:"attempts,notnull"`
	NextAttemptAt    *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError        string         `bun:"last_error,notnull"`
	OccurredAt       time.Time      `bun:"occurred_at,notnull"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:dispatch_activity_entries,alias:dae"`

	ID         string         `bun:"id,pk"`
	Actor      string         `bun:"actor,notnull"`
	Action     string         `bun:"action,notnull"`
	ObjectType string         `bun:"object_type,notnull"`
	ObjectID   string         `bun:"object_id,notnull"`
	Status     string         `bun:"status,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
