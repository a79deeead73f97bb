package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	requestStore       RequestStore
	offerStore         OfferStore
	mechanicStore      MechanicStore
	reviewStore        ReviewStore
	paymentEventStore  PaymentEventStore
	activityStore      ActivityStore
	outboxStore        OutboxStore
	paymentGateway     PaymentGateway
	notifier           Notifier
	codeIssuer         CodeIssuer
	verificationPolicy VerificationPolicy
	locationThrottle   LocationThrottle
	locationSink       LocationSink
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRequestStore(store RequestStore) Option {
	return func(b *serviceBuilder) {
		b.requestStore = store
	}
}

func WithOfferStore(store OfferStore) Option {
	return func(b *serviceBuilder) {
		b.offerStore = store
	}
}

func WithMechanicStore(store MechanicStore) Option {
	return func(b *serviceBuilder) {
		b.mechanicStore = store
	}
}

func WithReviewStore(store ReviewStore) Option {
	return func(b *serviceBuilder) {
		b.reviewStore = store
	}
}

func WithPaymentEventStore(store PaymentEventStore) Option {
	return func(b *serviceBuilder) {
		b.paymentEventStore = store
	}
}

func WithActivityStore(store ActivityStore) Option {
	return func(b *serviceBuilder) {
		b.activityStore = store
	}
}

func WithOutboxStore(store OutboxStore) Option {
	return func(b *serviceBuilder) {
		b.outboxStore = store
	}
}

func WithPaymentGateway(gateway PaymentGateway) Option {
	return func(b *serviceBuilder) {
		b.paymentGateway = gateway
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithCodeIssuer(issuer CodeIssuer) Option {
	return func(b *serviceBuilder) {
		b.codeIssuer = issuer
	}
}

func WithVerificationPolicy(policy VerificationPolicy) Option {
	return func(b *serviceBuilder) {
		b.verificationPolicy = policy
	}
}

func WithLocationThrottle(throttle LocationThrottle) Option {
	return func(b *serviceBuilder) {
		b.locationThrottle = throttle
	}
}

func WithLocationSink(sink LocationSink) Option {
	return func(b *serviceBuilder) {
		b.locationSink = sink
	}
}

func defaultServiceBuilder(cfg Config) serviceBuilder {
	return serviceBuilder{
		runtimeConfig: cfg,
	}
}

// RawConfigLoader supplies raw key/value config material before typing.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader wraps fixed values; handy for tests and embedders
// that already hold their config material.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded config, and runtime overrides as
// layered scopes; later scopes win.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.Currency) != "" {
		layer["currency"] = cfg.Currency
	}
	if includeZero || cfg.Offers.ListingLimit > 0 || cfg.Offers.DefaultTTL > 0 {
		offers := map[string]any{}
		if includeZero || cfg.Offers.ListingLimit > 0 {
			offers["listing_limit"] = cfg.Offers.ListingLimit
		}
		if includeZero || cfg.Offers.DefaultTTL > 0 {
			offers["default_ttl"] = cfg.Offers.DefaultTTL
		}
		layer["offers"] = offers
	}
	if includeZero || cfg.Location.MinInterval > 0 || cfg.Location.MinDisplacement > 0 {
		location := map[string]any{}
		if includeZero || cfg.Location.MinInterval > 0 {
			location["min_interval"] = cfg.Location.MinInterval
		}
		if includeZero || cfg.Location.MinDisplacement > 0 {
			location["min_displacement_meters"] = cfg.Location.MinDisplacement
		}
		layer["location"] = location
	}
	return layer
}
