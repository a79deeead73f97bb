package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// dispatchTextCode extracts the mapped text code; the error mapper shapes
// sentinel failures into envelope errors, so assertions go through here when
// errors.Is no longer applies.
func dispatchTextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// memStore is a single in-memory fake backing every store contract, so the
// cascade and arbitration transactions can span entities the way the real
// store does.
type memStore struct {
	mu            sync.Mutex
	seq           int
	requests      map[string]ServiceRequest
	offers        map[string]ServiceOffer
	offerSeq      map[string]int
	mechanics     map[string]Mechanic
	reviews       map[string]Review
	paymentEvents map[string]PaymentEvent
	activity      []ActivityEntry
	outbox        []LifecycleEvent
	acked         map[string]bool
	retried       map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		requests:      map[string]ServiceRequest{},
		offers:        map[string]ServiceOffer{},
		offerSeq:      map[string]int{},
		mechanics:     map[string]Mechanic{},
		reviews:       map[string]Review{},
		paymentEvents: map[string]PaymentEvent{},
		acked:         map[string]bool{},
		retried:       map[string]int{},
	}
}

func (m *memStore) Create(_ context.Context, in CreateRequestInput) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	status := RequestStatusRequested
	if in.Booked {
		status = RequestStatusBooked
	}
	request := ServiceRequest{
		ID:          uuid.NewString(),
		ClientID:    in.ClientID,
		MechanicID:  in.MechanicID,
		Status:      status,
		ServiceType: in.ServiceType,
		Description: in.Description,
		Location:    in.Location,
		TotalAmount: in.TotalAmount,
		Currency:    in.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.requests[request.ID] = request
	return request, nil
}

func (m *memStore) Get(_ context.Context, id string) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return ServiceRequest{}, fmt.Errorf("%w: service request %s", ErrNotFound, id)
	}
	return request, nil
}

func (m *memStore) ApplyTransition(_ context.Context, in TransitionUpdate) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[in.RequestID]
	if !ok {
		return ServiceRequest{}, fmt.Errorf("%w: service request %s", ErrNotFound, in.RequestID)
	}
	if request.Status != in.From {
		return ServiceRequest{}, fmt.Errorf("%w: guard %s does not match row %s", ErrInvalidTransition, in.From, request.Status)
	}
	request.Status = in.To
	if in.ArrivalCode != "" {
		request.ArrivalCode = in.ArrivalCode
	}
	if in.CompletionCode != "" {
		request.CompletionCode = in.CompletionCode
	}
	if in.PaymentHoldID != "" {
		request.PaymentHoldID = in.PaymentHoldID
	}
	if in.PaymentID != "" {
		request.PaymentID = in.PaymentID
	}
	if in.StartTime != nil {
		request.StartTime = in.StartTime
	}
	if in.CompletionTime != nil {
		request.CompletionTime = in.CompletionTime
	}
	request.UpdatedAt = time.Now().UTC()
	m.requests[in.RequestID] = request
	return request, nil
}

func (m *memStore) DeleteCascade(_ context.Context, id string) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return ServiceRequest{}, fmt.Errorf("%w: service request %s", ErrNotFound, id)
	}
	if request.Status == RequestStatusCompleted {
		return ServiceRequest{}, fmt.Errorf("%w: request %s is COMPLETED", ErrInvalidState, id)
	}
	delete(m.requests, id)
	for offerID, offer := range m.offers {
		if offer.ServiceRequestID == id {
			delete(m.offers, offerID)
		}
	}
	return request, nil
}

func (m *memStore) UpdateMechanicLocation(_ context.Context, id string, position GeoPoint, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok || request.Status != RequestStatusInRoute {
		return false, nil
	}
	request.MechanicLocation = &position
	request.UpdatedAt = at
	m.requests[id] = request
	return true, nil
}

func (m *memStore) Insert(_ context.Context, in SubmitOfferInput) (ServiceOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := time.Now().UTC()
	offer := ServiceOffer{
		ID:               uuid.NewString(),
		ServiceRequestID: in.ServiceRequestID,
		MechanicID:       in.MechanicID,
		Status:           OfferStatusPending,
		Price:            in.Price,
		Note:             in.Note,
		ExpiresAt:        in.ExpiresAt,
		Location:         in.Location,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.offers[offer.ID] = offer
	m.offerSeq[offer.ID] = m.seq
	return offer, nil
}

func (m *memStore) GetOffer(_ context.Context, id string) (ServiceOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[id]
	if !ok {
		return ServiceOffer{}, fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	return offer, nil
}

func (m *memStore) ListActive(_ context.Context, requestID string, limit int, now time.Time) ([]ServiceOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := make([]ServiceOffer, 0)
	for _, offer := range m.offers {
		if offer.ServiceRequestID != requestID {
			continue
		}
		if !offer.Live(now) {
			continue
		}
		live = append(live, offer)
	}
	sort.Slice(live, func(i, j int) bool {
		return m.offerSeq[live[i].ID] < m.offerSeq[live[j].ID]
	})
	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

func (m *memStore) Accept(_ context.Context, offerID string, requestID string, now time.Time) (AcceptOfferOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[offerID]
	if !ok || offer.ServiceRequestID != requestID || offer.Status != OfferStatusPending {
		return AcceptOfferOutcome{}, fmt.Errorf("%w: offer %s", ErrOfferNotAvailable, offerID)
	}
	request, ok := m.requests[requestID]
	if !ok {
		return AcceptOfferOutcome{}, fmt.Errorf("%w: service request %s", ErrNotFound, requestID)
	}
	if request.Status != RequestStatusRequested {
		return AcceptOfferOutcome{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, request.Status, RequestStatusAccepted)
	}

	offer.Status = OfferStatusAccepted
	offer.UpdatedAt = now
	m.offers[offerID] = offer

	discarded := 0
	for siblingID, sibling := range m.offers {
		if siblingID == offerID || sibling.ServiceRequestID != requestID {
			continue
		}
		if sibling.Status == OfferStatusPending {
			delete(m.offers, siblingID)
			discarded++
		}
	}

	request.Status = RequestStatusAccepted
	request.MechanicID = offer.MechanicID
	request.TotalAmount = offer.Price
	request.UpdatedAt = now
	m.requests[requestID] = request

	return AcceptOfferOutcome{Request: request, Offer: offer, DiscardedBids: discarded}, nil
}

func (m *memStore) AcceptedFor(_ context.Context, requestID string) (ServiceOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, offer := range m.offers {
		if offer.ServiceRequestID == requestID && offer.Status == OfferStatusAccepted {
			return offer, nil
		}
	}
	return ServiceOffer{}, fmt.Errorf("%w: no accepted offer for request %s", ErrNotFound, requestID)
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.offers[id]; !ok {
		return fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	delete(m.offers, id)
	return nil
}

func (m *memStore) Expire(_ context.Context, id string, now time.Time) (ServiceOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[id]
	if !ok {
		return ServiceOffer{}, fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	if offer.Status != OfferStatusExpired {
		offer.Status = OfferStatusExpired
		offer.UpdatedAt = now
		m.offers[id] = offer
	}
	return offer, nil
}

func (m *memStore) ExpireStale(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reclaimed := 0
	for id, offer := range m.offers {
		if offer.Status == OfferStatusPending && !offer.ExpiresAt.After(now) {
			offer.Status = OfferStatusExpired
			offer.UpdatedAt = now
			m.offers[id] = offer
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (m *memStore) GetMechanic(_ context.Context, id string) (Mechanic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mechanic, ok := m.mechanics[id]
	if !ok {
		return Mechanic{}, fmt.Errorf("%w: mechanic %s", ErrNotFound, id)
	}
	return mechanic, nil
}

func (m *memStore) GetMany(_ context.Context, ids []string) (map[string]Mechanic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Mechanic, len(ids))
	for _, id := range ids {
		if mechanic, ok := m.mechanics[id]; ok {
			out[id] = mechanic
		}
	}
	return out, nil
}

func (m *memStore) SetAvailability(_ context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mechanic, ok := m.mechanics[id]
	if !ok {
		return fmt.Errorf("%w: mechanic %s", ErrNotFound, id)
	}
	mechanic.IsAvailable = available
	m.mechanics[id] = mechanic
	return nil
}

func (m *memStore) CreateReview(_ context.Context, in CreateReviewInput) (Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[in.ServiceRequestID]; ok {
		return Review{}, fmt.Errorf("%w: request %s", ErrReviewAlreadyExists, in.ServiceRequestID)
	}
	review := Review{
		ID:               uuid.NewString(),
		ServiceRequestID: in.ServiceRequestID,
		ClientID:         in.ClientID,
		MechanicID:       in.MechanicID,
		Rating:           in.Rating,
		Comment:          in.Comment,
		CreatedAt:        time.Now().UTC(),
	}
	m.reviews[in.ServiceRequestID] = review

	if mechanic, ok := m.mechanics[in.MechanicID]; ok {
		total, count := 0, 0
		for _, r := range m.reviews {
			if r.MechanicID == in.MechanicID {
				total += r.Rating
				count++
			}
		}
		if count > 0 {
			mechanic.Rating = float64(total) / float64(count)
			mechanic.ReviewCount = count
			m.mechanics[in.MechanicID] = mechanic
		}
	}
	return review, nil
}

func (m *memStore) GetByRequest(_ context.Context, requestID string) (Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[requestID]
	if !ok {
		return Review{}, fmt.Errorf("%w: no review for request %s", ErrNotFound, requestID)
	}
	return review, nil
}

func (m *memStore) Record(_ context.Context, event PaymentEvent) (PaymentEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.TrimSpace(event.GatewayRef) + "|" + string(event.Kind)
	if existing, ok := m.paymentEvents[key]; ok {
		return existing, false, nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	m.paymentEvents[key] = event
	return event, true, nil
}

func (m *memStore) Append(_ context.Context, entry ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, entry)
	return nil
}

func (m *memStore) Enqueue(_ context.Context, event LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, event)
	return nil
}

func (m *memStore) ClaimBatch(_ context.Context, limit int) ([]LifecycleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LifecycleEvent, 0, limit)
	for _, event := range m.outbox {
		if m.acked[event.ID] {
			continue
		}
		out = append(out, event)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Ack(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked[id] = true
	return nil
}

func (m *memStore) Retry(_ context.Context, id string, _ error, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried[id]++
	return nil
}

func (m *memStore) eventNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.outbox))
	for _, event := range m.outbox {
		names = append(names, event.Name)
	}
	return names
}

// offerStoreAdapter disambiguates the colliding Get/Create method names
// between the request and offer contracts on the shared fake.
type offerStoreAdapter struct {
	store *memStore
}

func (a offerStoreAdapter) Insert(ctx context.Context, in SubmitOfferInput) (ServiceOffer, error) {
	return a.store.Insert(ctx, in)
}

func (a offerStoreAdapter) Get(ctx context.Context, id string) (ServiceOffer, error) {
	return a.store.GetOffer(ctx, id)
}

func (a offerStoreAdapter) ListActive(ctx context.Context, requestID string, limit int, now time.Time) ([]ServiceOffer, error) {
	return a.store.ListActive(ctx, requestID, limit, now)
}

func (a offerStoreAdapter) Accept(ctx context.Context, offerID string, requestID string, now time.Time) (AcceptOfferOutcome, error) {
	return a.store.Accept(ctx, offerID, requestID, now)
}

func (a offerStoreAdapter) AcceptedFor(ctx context.Context, requestID string) (ServiceOffer, error) {
	return a.store.AcceptedFor(ctx, requestID)
}

func (a offerStoreAdapter) Delete(ctx context.Context, id string) error {
	return a.store.Delete(ctx, id)
}

func (a offerStoreAdapter) Expire(ctx context.Context, id string, now time.Time) (ServiceOffer, error) {
	return a.store.Expire(ctx, id, now)
}

func (a offerStoreAdapter) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	return a.store.ExpireStale(ctx, now)
}

type mechanicStoreAdapter struct {
	store *memStore
}

func (a mechanicStoreAdapter) Get(ctx context.Context, id string) (Mechanic, error) {
	return a.store.GetMechanic(ctx, id)
}

func (a mechanicStoreAdapter) GetMany(ctx context.Context, ids []string) (map[string]Mechanic, error) {
	return a.store.GetMany(ctx, ids)
}

func (a mechanicStoreAdapter) SetAvailability(ctx context.Context, id string, available bool) error {
	return a.store.SetAvailability(ctx, id, available)
}

type reviewStoreAdapter struct {
	store *memStore
}

func (a reviewStoreAdapter) Create(ctx context.Context, in CreateReviewInput) (Review, error) {
	return a.store.CreateReview(ctx, in)
}

func (a reviewStoreAdapter) GetByRequest(ctx context.Context, requestID string) (Review, error) {
	return a.store.GetByRequest(ctx, requestID)
}

type fakeGateway struct {
	mu           sync.Mutex
	holds        int
	captures     int
	refunds      int
	failAuth     bool
	failCapture  bool
	failRefund   bool
	settledHolds map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{settledHolds: map[string]bool{}}
}

func (g *fakeGateway) Authorize(_ context.Context, amount float64, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAuth {
		return "", fmt.Errorf("gateway unavailable")
	}
	if amount <= 0 || currency == "" {
		return "", fmt.Errorf("bad authorize input")
	}
	g.holds++
	return fmt.Sprintf("hold_%d", g.holds), nil
}

func (g *fakeGateway) Capture(_ context.Context, holdID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCapture {
		return "", fmt.Errorf("gateway unavailable")
	}
	if g.settledHolds[holdID] {
		return "", ErrHoldAlreadySettled
	}
	g.settledHolds[holdID] = true
	g.captures++
	return fmt.Sprintf("pay_%d", g.captures), nil
}

func (g *fakeGateway) Refund(_ context.Context, holdID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefund {
		return "", fmt.Errorf("gateway unavailable")
	}
	if g.settledHolds[holdID] {
		return "", ErrHoldAlreadySettled
	}
	g.settledHolds[holdID] = true
	g.refunds++
	return fmt.Sprintf("refund_%d", g.refunds), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail bool
}

func (n *fakeNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("notifier down")
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, notification := range n.sent {
		out = append(out, notification.Template)
	}
	return out
}

// seqCodeIssuer returns deterministic codes for assertions.
type seqCodeIssuer struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (c *seqCodeIssuer) Generate() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.codes) {
		return "", fmt.Errorf("code issuer exhausted")
	}
	code := c.codes[c.next]
	c.next++
	return code, nil
}

type admitAllThrottle struct{}

func (admitAllThrottle) Admit(context.Context, string, GeoPoint) (bool, error) { return true, nil }

func (admitAllThrottle) Forget(context.Context, string) error { return nil }

type denyThrottle struct{}

func (denyThrottle) Admit(context.Context, string, GeoPoint) (bool, error) { return false, nil }

func (denyThrottle) Forget(context.Context, string) error { return nil }

type testEnv struct {
	service  *Service
	store    *memStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	codes    *seqCodeIssuer
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := newMemStore()
	gateway := newFakeGateway()
	notifier := &fakeNotifier{}
	codes := &seqCodeIssuer{codes: []string{"111111", "222222", "333333", "444444"}}

	store.mechanics["mech_1"] = Mechanic{ID: "mech_1", UserID: "user_1", DisplayName: "Ada", IsAvailable: true, Rating: 4.5, ReviewCount: 2}
	store.mechanics["mech_2"] = Mechanic{ID: "mech_2", UserID: "user_2", DisplayName: "Lin", IsAvailable: true, Rating: 4.9, ReviewCount: 11}
	store.mechanics["mech_3"] = Mechanic{ID: "mech_3", UserID: "user_3", DisplayName: "Kim", IsAvailable: true}

	base := []Option{
		WithRequestStore(store),
		WithOfferStore(offerStoreAdapter{store: store}),
		WithMechanicStore(mechanicStoreAdapter{store: store}),
		WithReviewStore(reviewStoreAdapter{store: store}),
		WithPaymentEventStore(store),
		WithActivityStore(store),
		WithOutboxStore(store),
		WithPaymentGateway(gateway),
		WithNotifier(notifier),
		WithCodeIssuer(codes),
		WithLocationThrottle(admitAllThrottle{}),
	}
	base = append(base, opts...)

	service, err := NewService(DefaultConfig(), base...)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return &testEnv{
		service:  service,
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		codes:    codes,
	}
}

// driveToStatus pushes a freshly accepted request along the canonical path
// until it reaches the wanted status.
func (e *testEnv) driveToStatus(t *testing.T, requestID string, want RequestStatus) ServiceRequest {
	t.Helper()
	ctx := context.Background()
	path := []RequestStatus{
		RequestStatusInRoute,
		RequestStatusInProgress,
		RequestStatusServicing,
		RequestStatusInCompletion,
		RequestStatusCompleted,
	}
	current, err := e.store.Get(ctx, requestID)
	if err != nil {
		t.Fatalf("failed to load request: %v", err)
	}
	for _, step := range path {
		if current.Status == want {
			return current
		}
		next, transitionErr := e.service.Transition(ctx, requestID, step)
		if transitionErr != nil {
			t.Fatalf("transition to %s failed: %v", step, transitionErr)
		}
		current = next
	}
	if current.Status != want {
		t.Fatalf("could not drive request to %s, stuck at %s", want, current.Status)
	}
	return current
}

// acceptedRequest creates a request with two competing offers and accepts the
// first, returning ids for follow-up assertions.
func (e *testEnv) acceptedRequest(t *testing.T) (ServiceRequest, ServiceOffer) {
	t.Helper()
	ctx := context.Background()
	request, err := e.service.CreateRequest(ctx, CreateRequestInput{
		ClientID:    "client_1",
		ServiceType: "flat_tire",
		Description: "rear left is out",
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	winner, err := e.service.SubmitOffer(ctx, SubmitOfferInput{
		ServiceRequestID: request.ID,
		MechanicID:       "mech_1",
		Price:            50,
	})
	if err != nil {
		t.Fatalf("submit winning offer failed: %v", err)
	}
	if _, err := e.service.SubmitOffer(ctx, SubmitOfferInput{
		ServiceRequestID: request.ID,
		MechanicID:       "mech_2",
		Price:            60,
	}); err != nil {
		t.Fatalf("submit losing offer failed: %v", err)
	}
	accepted, err := e.service.AcceptOffer(ctx, winner.ID, request.ID)
	if err != nil {
		t.Fatalf("accept offer failed: %v", err)
	}
	return accepted, winner
}
