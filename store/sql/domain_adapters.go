package sqlstore

import (
	"strings"
	"time"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

func (r *serviceRequestRecord) toDomain() core.ServiceRequest {
	if r == nil {
		return core.ServiceRequest{}
	}
	request := core.ServiceRequest{
		ID:             r.ID,
		ClientID:       r.ClientID,
		Status:         core.RequestStatus(r.Status),
		ServiceType:    r.ServiceType,
		Description:    r.Description,
		Location:       core.GeoPoint{Latitude: r.Latitude, Longitude: r.Longitude},
		ArrivalCode:    r.ArrivalCode,
		CompletionCode: r.CompletionCode,
		PaymentHoldID:  r.PaymentHoldID,
		PaymentID:      r.PaymentID,
		TotalAmount:    r.TotalAmount,
		Currency:       r.Currency,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.MechanicID != nil {
		request.MechanicID = strings.TrimSpace(*r.MechanicID)
	}
	if r.MechanicLatitude != nil && r.MechanicLongitude != nil {
		request.MechanicLocation = &core.GeoPoint{
			Latitude:  *r.MechanicLatitude,
			Longitude: *r.MechanicLongitude,
		}
	}
	if r.StartTime != nil {
		startTime := *r.StartTime
		request.StartTime = &startTime
	}
	if r.CompletionTime != nil {
		completionTime := *r.CompletionTime
		request.CompletionTime = &completionTime
	}
	return request
}

func newRequestRecord(in core.CreateRequestInput, status core.RequestStatus, now time.Time) *serviceRequestRecord {
	record := &serviceRequestRecord{
		ClientID:    strings.TrimSpace(in.ClientID),
		Status:      string(status),
		ServiceType: strings.TrimSpace(in.ServiceType),
		Description: strings.TrimSpace(in.Description),
		Latitude:    in.Location.Latitude,
		Longitude:   in.Location.Longitude,
		TotalAmount: in.TotalAmount,
		Currency:    strings.TrimSpace(in.Currency),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if trimmed := strings.TrimSpace(in.MechanicID); trimmed != "" {
		record.MechanicID = &trimmed
	}
	return record
}

func (r *serviceOfferRecord) toDomain() core.ServiceOffer {
	if r == nil {
		return core.ServiceOffer{}
	}
	return core.ServiceOffer{
		ID:               r.ID,
		ServiceRequestID: r.ServiceRequestID,
		MechanicID:       r.MechanicID,
		Status:           core.OfferStatus(r.Status),
		Price:            r.Price,
		Note:             r.Note,
		ExpiresAt:        r.ExpiresAt,
		Location:         core.GeoPoint{Latitude: r.Latitude, Longitude: r.Longitude},
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newOfferRecord(in core.SubmitOfferInput, now time.Time) *serviceOfferRecord {
	return &serviceOfferRecord{
		ServiceRequestID: strings.TrimSpace(in.ServiceRequestID),
		MechanicID:       strings.TrimSpace(in.MechanicID),
		Status:           string(core.OfferStatusPending),
		Price:            in.Price,
		Note:             strings.TrimSpace(in.Note),
		Latitude:         in.Location.Latitude,
		Longitude:        in.Location.Longitude,
		ExpiresAt:        in.ExpiresAt.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *mechanicRecord) toDomain() core.Mechanic {
	if r == nil {
		return core.Mechanic{}
	}
	return core.Mechanic{
		ID:              r.ID,
		UserID:          r.UserID,
		DisplayName:     r.DisplayName,
		IsAvailable:     r.IsAvailable,
		Rating:          r.Rating,
		ReviewCount:     r.ReviewCount,
		ServicesOffered: append([]string(nil), r.ServicesOffered...),
		Location:        core.GeoPoint{Latitude: r.Latitude, Longitude: r.Longitude},
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r *reviewRecord) toDomain() core.Review {
	if r == nil {
		return core.Review{}
	}
	return core.Review{
		ID:               r.ID,
		ServiceRequestID: r.ServiceRequestID,
		ClientID:         r.ClientID,
		MechanicID:       r.MechanicID,
		Rating:           r.Rating,
		Comment:          r.Comment,
		CreatedAt:        r.CreatedAt,
	}
}

func (r *paymentEventRecord) toDomain() core.PaymentEvent {
	if r == nil {
		return core.PaymentEvent{}
	}
	return core.PaymentEvent{
		ID:               r.ID,
		ServiceRequestID: r.ServiceRequestID,
		Kind:             core.PaymentEventKind(r.Kind),
		GatewayRef:       r.GatewayRef,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Metadata:         copyAnyMap(r.Metadata),
		CreatedAt:        r.CreatedAt,
	}
}

func copyAnyMap(src map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range src {
		out[key] = value
	}
	return out
}
