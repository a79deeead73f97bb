package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// RepositoryFactory builds every dispatch store against one bun DB handle so
// the whole persistence layer shares a connection pool and transactions.
type RepositoryFactory struct {
	db *bun.DB

	requestStore      *RequestStore
	offerStore        *OfferStore
	mechanicStore     *MechanicStore
	reviewStore       *ReviewStore
	paymentEventStore *PaymentEventStore
	outboxStore       *OutboxStore
	activityStore     *ActivityStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.requestStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) RequestStore() core.RequestStore {
	if f == nil {
		return nil
	}
	return f.requestStore
}

func (f *RepositoryFactory) OfferStore() core.OfferStore {
	if f == nil {
		return nil
	}
	return f.offerStore
}

func (f *RepositoryFactory) MechanicStore() core.MechanicStore {
	if f == nil {
		return nil
	}
	return f.mechanicStore
}

func (f *RepositoryFactory) ReviewStore() core.ReviewStore {
	if f == nil {
		return nil
	}
	return f.reviewStore
}

func (f *RepositoryFactory) PaymentEventStore() *PaymentEventStore {
	if f == nil {
		return nil
	}
	return f.paymentEventStore
}

func (f *RepositoryFactory) OutboxStore() *OutboxStore {
	if f == nil {
		return nil
	}
	return f.outboxStore
}

func (f *RepositoryFactory) ActivityStore() *ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

// ServiceOptions returns the functional options wiring every store this
// factory built, ready to hand to core.NewService.
func (f *RepositoryFactory) ServiceOptions() []core.Option {
	if f == nil {
		return nil
	}
	return []core.Option{
		core.WithRequestStore(f.requestStore),
		core.WithOfferStore(f.offerStore),
		core.WithMechanicStore(f.mechanicStore),
		core.WithReviewStore(f.reviewStore),
		core.WithPaymentEventStore(f.paymentEventStore),
		core.WithOutboxStore(f.outboxStore),
		core.WithActivityStore(f.activityStore),
	}
}

func (f *RepositoryFactory) initStores() error {
	requestStore, err := NewRequestStore(f.db)
	if err != nil {
		return err
	}
	f.requestStore = requestStore
	offerStore, err := NewOfferStore(f.db)
	if err != nil {
		return err
	}
	f.offerStore = offerStore
	mechanicStore, err := NewMechanicStore(f.db)
	if err != nil {
		return err
	}
	f.mechanicStore = mechanicStore
	reviewStore, err := NewReviewStore(f.db)
	if err != nil {
		return err
	}
	f.reviewStore = reviewStore
	paymentEventStore, err := NewPaymentEventStore(f.db)
	if err != nil {
		return err
	}
	f.paymentEventStore = paymentEventStore
	outboxStore, err := NewOutboxStore(f.db)
	if err != nil {
		return err
	}
	f.outboxStore = outboxStore
	activityStore, err := NewActivityStore(f.db)
	if err != nil {
		return err
	}
	f.activityStore = activityStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
