package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

var (
	_ gocmd.Querier[GetRequestMessage, core.ServiceRequest]        = (*GetRequestQuery)(nil)
	_ gocmd.Querier[ListActiveOffersMessage, []core.OfferListing]  = (*ListActiveOffersQuery)(nil)
	_ gocmd.Querier[GetReviewMessage, core.Review]                 = (*GetReviewQuery)(nil)
	_ gocmd.Querier[GetPositionMessage, core.GeoPoint]             = (*GetPositionQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, []core.ActivityEntry]     = (*ListActivityQuery)(nil)
	_ gocmd.Querier[ListPaymentEventsMessage, []core.PaymentEvent] = (*ListPaymentEventsQuery)(nil)
)
