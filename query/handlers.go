package query

import (
	"context"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// ReadingService is the read slice of the dispatch surface; *core.Service is
// the canonical implementation.
type ReadingService interface {
	GetRequest(ctx context.Context, id string) (core.ServiceRequest, bool, error)
	ListActiveOffers(ctx context.Context, requestID string) ([]core.OfferListing, error)
	ReviewFor(ctx context.Context, requestID string) (core.Review, bool, error)
	Position(ctx context.Context, requestID string) (core.GeoPoint, bool, error)
}

type ActivityReader interface {
	ListByObject(ctx context.Context, objectID string) ([]core.ActivityEntry, error)
}

type PaymentEventReader interface {
	ListByRequest(ctx context.Context, requestID string) ([]core.PaymentEvent, error)
}

type GetRequestQuery struct {
	service ReadingService
}

func NewGetRequestQuery(service ReadingService) *GetRequestQuery {
	return &GetRequestQuery{service: service}
}

func (q *GetRequestQuery) Query(ctx context.Context, msg GetRequestMessage) (core.ServiceRequest, error) {
	if q == nil || q.service == nil {
		return core.ServiceRequest{}, queryDependencyError("query: dispatch service is required")
	}
	request, found, err := q.service.GetRequest(ctx, msg.RequestID)
	if err != nil {
		return core.ServiceRequest{}, err
	}
	if !found {
		return core.ServiceRequest{}, queryNotFoundError("query: service request not found")
	}
	return request, nil
}

type ListActiveOffersQuery struct {
	service ReadingService
}

func NewListActiveOffersQuery(service ReadingService) *ListActiveOffersQuery {
	return &ListActiveOffersQuery{service: service}
}

func (q *ListActiveOffersQuery) Query(ctx context.Context, msg ListActiveOffersMessage) ([]core.OfferListing, error) {
	if q == nil || q.service == nil {
		return nil, queryDependencyError("query: dispatch service is required")
	}
	return q.service.ListActiveOffers(ctx, msg.RequestID)
}

type GetReviewQuery struct {
	service ReadingService
}

func NewGetReviewQuery(service ReadingService) *GetReviewQuery {
	return &GetReviewQuery{service: service}
}

func (q *GetReviewQuery) Query(ctx context.Context, msg GetReviewMessage) (core.Review, error) {
	if q == nil || q.service == nil {
		return core.Review{}, queryDependencyError("query: dispatch service is required")
	}
	review, found, err := q.service.ReviewFor(ctx, msg.RequestID)
	if err != nil {
		return core.Review{}, err
	}
	if !found {
		return core.Review{}, queryNotFoundError("query: review not found")
	}
	return review, nil
}

type GetPositionQuery struct {
	service ReadingService
}

func NewGetPositionQuery(service ReadingService) *GetPositionQuery {
	return &GetPositionQuery{service: service}
}

func (q *GetPositionQuery) Query(ctx context.Context, msg GetPositionMessage) (core.GeoPoint, error) {
	if q == nil || q.service == nil {
		return core.GeoPoint{}, queryDependencyError("query: dispatch service is required")
	}
	position, found, err := q.service.Position(ctx, msg.RequestID)
	if err != nil {
		return core.GeoPoint{}, err
	}
	if !found {
		return core.GeoPoint{}, queryNotFoundError("query: no position inside the travel window")
	}
	return position, nil
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) ([]core.ActivityEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: activity reader is required")
	}
	return q.reader.ListByObject(ctx, msg.ObjectID)
}

type ListPaymentEventsQuery struct {
	reader PaymentEventReader
}

func NewListPaymentEventsQuery(reader PaymentEventReader) *ListPaymentEventsQuery {
	return &ListPaymentEventsQuery{reader: reader}
}

func (q *ListPaymentEventsQuery) Query(ctx context.Context, msg ListPaymentEventsMessage) ([]core.PaymentEvent, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: payment event reader is required")
	}
	return q.reader.ListByRequest(ctx, msg.RequestID)
}
