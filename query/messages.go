package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetRequest        = "dispatch.query.request.get"
	TypeListActiveOffers  = "dispatch.query.offers.list_active"
	TypeGetReview         = "dispatch.query.review.get"
	TypeGetPosition       = "dispatch.query.location.position"
	TypeListActivity      = "dispatch.query.activity.list"
	TypeListPaymentEvents = "dispatch.query.payment_events.list"
)

type GetRequestMessage struct {
	RequestID string
}

func (GetRequestMessage) Type() string { return TypeGetRequest }

func (m GetRequestMessage) Validate() error {
	return requireRequestID(m.RequestID)
}

type ListActiveOffersMessage struct {
	RequestID string
}

func (ListActiveOffersMessage) Type() string { return TypeListActiveOffers }

func (m ListActiveOffersMessage) Validate() error {
	return requireRequestID(m.RequestID)
}

type GetReviewMessage struct {
	RequestID string
}

func (GetReviewMessage) Type() string { return TypeGetReview }

func (m GetReviewMessage) Validate() error {
	return requireRequestID(m.RequestID)
}

type GetPositionMessage struct {
	RequestID string
}

func (GetPositionMessage) Type() string { return TypeGetPosition }

func (m GetPositionMessage) Validate() error {
	return requireRequestID(m.RequestID)
}

type ListActivityMessage struct {
	ObjectID string
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if strings.TrimSpace(m.ObjectID) == "" {
		return fmt.Errorf("query: object id is required")
	}
	return nil
}

type ListPaymentEventsMessage struct {
	RequestID string
}

func (ListPaymentEventsMessage) Type() string { return TypeListPaymentEvents }

func (m ListPaymentEventsMessage) Validate() error {
	return requireRequestID(m.RequestID)
}

func requireRequestID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("query: service request id is required")
	}
	return nil
}
