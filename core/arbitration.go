package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OfferListing is an active offer enriched with the bidding mechanic's
// public fields for customer display.
type OfferListing struct {
	Offer    ServiceOffer
	Mechanic PublicProfile
}

// SubmitOffer inserts a PENDING bid. Bidding is only open while the parent
// request is REQUESTED.
func (s *Service) SubmitOffer(ctx context.Context, in SubmitOfferInput) (ServiceOffer, error) {
	if s == nil || s.offerStore == nil || s.requestStore == nil {
		return ServiceOffer{}, fmt.Errorf("core: service is not configured")
	}
	in.ServiceRequestID = strings.TrimSpace(in.ServiceRequestID)
	in.MechanicID = strings.TrimSpace(in.MechanicID)
	if in.ServiceRequestID == "" {
		return ServiceOffer{}, s.mapError(fmt.Errorf("core: service request id is required"))
	}
	if in.MechanicID == "" {
		return ServiceOffer{}, s.mapError(fmt.Errorf("core: mechanic id is required"))
	}
	if in.Price <= 0 {
		return ServiceOffer{}, s.mapError(fmt.Errorf("core: offer price must be positive"))
	}

	request, err := s.requestStore.Get(ctx, in.ServiceRequestID)
	if err != nil {
		return ServiceOffer{}, s.mapError(err)
	}
	if request.Status != RequestStatusRequested {
		return ServiceOffer{}, s.mapError(fmt.Errorf(
			"%w: offers are closed for request %s in %s",
			ErrInvalidState, request.ID, request.Status,
		))
	}

	if in.ExpiresAt.IsZero() {
		in.ExpiresAt = s.now().Add(s.config.Offers.DefaultTTL)
	}
	offer, err := s.offerStore.Insert(ctx, in)
	if err != nil {
		return ServiceOffer{}, s.mapError(err)
	}

	s.count(ctx, metricOffersSubmitted, map[string]string{"service_type": request.ServiceType})
	s.publishEvent(ctx, LifecycleEvent{
		Name:             EventOfferSubmitted,
		ServiceRequestID: request.ID,
		MechanicID:       offer.MechanicID,
		ClientID:         request.ClientID,
		Payload: map[string]any{
			"offer_id": offer.ID,
			"price":    offer.Price,
		},
	})
	s.notify(ctx, request.ClientID, "offer_received", map[string]any{
		"request_id": request.ID,
		"offer_id":   offer.ID,
		"price":      offer.Price,
	})
	return offer, nil
}

// ListActiveOffers returns up to the configured listing limit of live offers
// for the request, oldest-submitted first, each enriched with the mechanic
// public profile. A missing request yields an empty listing.
func (s *Service) ListActiveOffers(ctx context.Context, requestID string) ([]OfferListing, error) {
	if s == nil || s.offerStore == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return []OfferListing{}, nil
	}

	offers, err := s.offerStore.ListActive(ctx, requestID, s.config.Offers.ListingLimit, s.now())
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(offers) == 0 {
		return []OfferListing{}, nil
	}

	profiles := s.mechanicProfiles(ctx, offers)
	listings := make([]OfferListing, 0, len(offers))
	for _, offer := range offers {
		listings = append(listings, OfferListing{
			Offer:    offer,
			Mechanic: profiles[offer.MechanicID],
		})
	}
	return listings, nil
}

func (s *Service) mechanicProfiles(ctx context.Context, offers []ServiceOffer) map[string]PublicProfile {
	profiles := make(map[string]PublicProfile, len(offers))
	if s.mechanicStore == nil {
		return profiles
	}
	ids := make([]string, 0, len(offers))
	seen := make(map[string]struct{}, len(offers))
	for _, offer := range offers {
		if _, ok := seen[offer.MechanicID]; ok {
			continue
		}
		seen[offer.MechanicID] = struct{}{}
		ids = append(ids, offer.MechanicID)
	}
	mechanics, err := s.mechanicStore.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to enrich offers with mechanic profiles", "error", err)
		return profiles
	}
	for id, mechanic := range mechanics {
		profiles[id] = mechanic.PublicProfile()
	}
	return profiles
}

// AcceptOffer resolves the arbitration: exactly one winning offer, every
// sibling PENDING bid deleted, mechanic and amount bound, and the request
// driven ACCEPTED then PAYMENT_AUTHORIZED once the hold lands. A race where
// the target offer is already resolved surfaces ErrOfferNotAvailable.
func (s *Service) AcceptOffer(ctx context.Context, offerID string, requestID string) (ServiceRequest, error) {
	if s == nil || s.offerStore == nil || s.requestStore == nil {
		return ServiceRequest{}, fmt.Errorf("core: service is not configured")
	}
	offerID = strings.TrimSpace(offerID)
	requestID = strings.TrimSpace(requestID)
	if offerID == "" || requestID == "" {
		return ServiceRequest{}, s.mapError(fmt.Errorf("core: offer id and request id are required"))
	}

	request, err := s.requestStore.Get(ctx, requestID)
	if err != nil {
		return ServiceRequest{}, s.mapError(err)
	}
	if !requestTransitionAllowed(request.Status, RequestStatusAccepted) {
		return ServiceRequest{}, s.mapError(fmt.Errorf(
			"%w: %s -> %s", ErrInvalidTransition, request.Status, RequestStatusAccepted,
		))
	}

	outcome, err := s.offerStore.Accept(ctx, offerID, requestID, s.now())
	if err != nil {
		if errors.Is(err, ErrOfferNotAvailable) {
			s.count(ctx, metricOffersLostRace, nil)
		}
		return ServiceRequest{}, s.mapError(err)
	}
	s.count(ctx, metricOffersAccepted, nil)

	if s.mechanicStore != nil {
		if availErr := s.mechanicStore.SetAvailability(ctx, outcome.Offer.MechanicID, false); availErr != nil {
			s.logger.Warn("failed to mark mechanic busy",
				"mechanic_id", outcome.Offer.MechanicID,
				"error", availErr,
			)
		}
	}

	s.publishEvent(ctx, LifecycleEvent{
		Name:             EventOfferAccepted,
		ServiceRequestID: requestID,
		MechanicID:       outcome.Offer.MechanicID,
		ClientID:         outcome.Request.ClientID,
		Payload: map[string]any{
			"offer_id":       outcome.Offer.ID,
			"price":          outcome.Offer.Price,
			"discarded_bids": outcome.DiscardedBids,
		},
	})
	s.notify(ctx, outcome.Offer.MechanicID, "offer_accepted", map[string]any{
		"request_id": requestID,
		"offer_id":   outcome.Offer.ID,
	})

	authorized, err := s.authorizeHold(ctx, outcome.Request)
	if err != nil {
		// The arbitration already resolved; the request stays ACCEPTED and
		// the caller may retry the hold via the webhook or a new transition.
		return outcome.Request, s.mapError(err)
	}
	return authorized, nil
}

// WithdrawOffer removes a mechanic's bid. An ACCEPTED offer cannot be
// withdrawn while its request is still active.
func (s *Service) WithdrawOffer(ctx context.Context, offerID string) error {
	if s == nil || s.offerStore == nil {
		return fmt.Errorf("core: service is not configured")
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return s.mapError(fmt.Errorf("core: offer id is required"))
	}

	offer, err := s.offerStore.Get(ctx, offerID)
	if err != nil {
		return s.mapError(err)
	}
	if offer.Status == OfferStatusAccepted {
		request, reqErr := s.requestStore.Get(ctx, offer.ServiceRequestID)
		if reqErr != nil && !errors.Is(reqErr, ErrNotFound) {
			return s.mapError(reqErr)
		}
		if reqErr == nil && !request.Status.IsTerminal() {
			return s.mapError(fmt.Errorf(
				"%w: offer %s backs request %s in %s",
				ErrCannotWithdrawAcceptedOffer, offer.ID, request.ID, request.Status,
			))
		}
	}
	if err := s.offerStore.Delete(ctx, offerID); err != nil {
		return s.mapError(err)
	}
	return nil
}

// ExpireOffer retires an offer at terminal transitions. Idempotent: expiring
// an already EXPIRED offer succeeds without effect.
func (s *Service) ExpireOffer(ctx context.Context, offerID string) error {
	if s == nil || s.offerStore == nil {
		return fmt.Errorf("core: service is not configured")
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return s.mapError(fmt.Errorf("core: offer id is required"))
	}
	if _, err := s.offerStore.Expire(ctx, offerID, s.now()); err != nil {
		return s.mapError(err)
	}
	return nil
}

// expireAcceptedOffer retires the winning offer when its request completes.
func (s *Service) expireAcceptedOffer(ctx context.Context, requestID string, now time.Time) {
	offer, err := s.offerStore.AcceptedFor(ctx, requestID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to load accepted offer for retirement", "request_id", requestID, "error", err)
		}
		return
	}
	if _, expireErr := s.offerStore.Expire(ctx, offer.ID, now); expireErr != nil {
		s.logger.Warn("failed to expire accepted offer",
			"offer_id", offer.ID,
			"request_id", requestID,
			"error", expireErr,
		)
	}
}
