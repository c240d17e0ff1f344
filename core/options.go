package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type managerBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	credentialStore  CredentialStore
	tokenFetcher     TokenFetcher
	clock            Clock
	backoffScheduler BackoffScheduler
	credentialCodec  CredentialCodec
}

type Option func(*managerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *managerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *managerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *managerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *managerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *managerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *managerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *managerBuilder) {
		b.credentialStore = store
	}
}

func WithTokenFetcher(fetcher TokenFetcher) Option {
	return func(b *managerBuilder) {
		b.tokenFetcher = fetcher
	}
}

func WithClock(clock Clock) Option {
	return func(b *managerBuilder) {
		b.clock = clock
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *managerBuilder) {
		b.backoffScheduler = scheduler
	}
}

func WithCredentialCodec(codec CredentialCodec) Option {
	return func(b *managerBuilder) {
		b.credentialCodec = codec
	}
}

func defaultManagerBuilder(runtime Config) managerBuilder {
	// logger and provider stay nil so NewManager can tell what the caller set
	return managerBuilder{
		runtimeConfig:   runtime,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		credentialStore: NewMemoryCredentialStore(),
		clock:           SystemClock{},
		credentialCodec: JSONCredentialCodec{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return weChatErrorMapper(err)
}

// ResolveConfig runs the provider and resolver chain used by NewManager.
// Other components (processor, facade) call it to share one resolved Config.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
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

type envConfig struct {
	AppID          string        `env:"APP_ID"`
	AppSecret      string        `env:"APP_SECRET"`
	Token          string        `env:"TOKEN"`
	BaseURL        string        `env:"BASE_URL"`
	LoveKeyword    string        `env:"LOVE_KEYWORD"`
	CredentialSlot string        `env:"CREDENTIAL_SLOT"`
	SafetyMargin   time.Duration `env:"CREDENTIAL_SAFETY_MARGIN"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT"`
	Schedule       string        `env:"REFRESH_SCHEDULE"`
}

const DefaultEnvPrefix = "WECHAT_"

// EnvConfigLoader reads WECHAT_* variables into the raw map consumed by
// CfgxConfigProvider. Unset variables are left out so defaults apply.
type EnvConfigLoader struct {
	Prefix      string
	Environment map[string]string
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := l.Prefix
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultEnvPrefix
	}
	values := envConfig{}
	if err := env.ParseWithOptions(&values, env.Options{
		Prefix:      prefix,
		Environment: l.Environment,
	}); err != nil {
		return nil, fmt.Errorf("core: parse environment config: %w", err)
	}

	raw := map[string]any{}
	setString(raw, "app_id", values.AppID)
	setString(raw, "app_secret", values.AppSecret)
	setString(raw, "token", values.Token)
	if value := strings.TrimSpace(values.BaseURL); value != "" {
		raw["platform"] = map[string]any{"base_url": value}
	}
	if value := strings.TrimSpace(values.LoveKeyword); value != "" {
		raw["dispatch"] = map[string]any{"love_keyword": value}
	}
	credential := map[string]any{}
	setString(credential, "slot", values.CredentialSlot)
	if values.SafetyMargin > 0 {
		credential["safety_margin"] = values.SafetyMargin
	}
	if len(credential) > 0 {
		raw["credential"] = credential
	}
	if values.FetchTimeout > 0 {
		raw["fetch"] = map[string]any{"timeout": values.FetchTimeout}
	}
	if value := strings.TrimSpace(values.Schedule); value != "" {
		raw["refresh"] = map[string]any{"schedule": value}
	}
	return raw, nil
}

func setString(target map[string]any, key string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		target[key] = value
	}
}

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

// configToLayerMap drops zero values unless includeZero is set, so a layer
// only overrides what it actually configures.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}
	putDuration := func(target map[string]any, key string, value time.Duration) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}
	nest := func(key string, values map[string]any) {
		if len(values) > 0 {
			layer[key] = values
		}
	}

	putString(layer, "service_name", cfg.ServiceName)
	putString(layer, "app_id", cfg.AppID)
	putString(layer, "app_secret", cfg.AppSecret)
	putString(layer, "token", cfg.Token)

	platform := map[string]any{}
	putString(platform, "base_url", cfg.Platform.BaseURL)
	nest("platform", platform)

	credential := map[string]any{}
	putDuration(credential, "safety_margin", cfg.Credential.SafetyMargin)
	putString(credential, "slot", cfg.Credential.Slot)
	nest("credential", credential)

	fetch := map[string]any{}
	putDuration(fetch, "timeout", cfg.Fetch.Timeout)
	if includeZero || cfg.Fetch.Retries != 0 {
		fetch["retries"] = cfg.Fetch.Retries
	}
	putDuration(fetch, "backoff", cfg.Fetch.Backoff)
	nest("fetch", fetch)

	webhook := map[string]any{}
	putDuration(webhook, "response_window", cfg.Webhook.ResponseWindow)
	putString(webhook, "reject_body", cfg.Webhook.RejectBody)
	if includeZero || cfg.Webhook.MaxBodyBytes != 0 {
		webhook["max_body_bytes"] = cfg.Webhook.MaxBodyBytes
	}
	nest("webhook", webhook)

	dispatch := map[string]any{}
	putString(dispatch, "love_keyword", cfg.Dispatch.LoveKeyword)
	nest("dispatch", dispatch)

	refresh := map[string]any{}
	putString(refresh, "schedule", cfg.Refresh.Schedule)
	nest("refresh", refresh)

	return layer
}
