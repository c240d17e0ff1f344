package core

import (
	"context"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	SourceMemory = "memory"
	SourceStore  = "store"
	SourceRemote = "remote"
)

// Manager keeps one valid access credential available. It checks its own
// memory first, then the CredentialStore, then the TokenFetcher.
//
// The load, fetch and save sequence is not serialized: concurrent callers
// that all see a stale record may each fetch, and the last Save wins. The
// mutex only protects the in-memory slot.
type Manager struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	store           CredentialStore
	fetcher         TokenFetcher
	clock           Clock
	backoff         BackoffScheduler
	codec           CredentialCodec
	observer        Observer

	mu         sync.RWMutex
	current    Credential
	hasCurrent bool
}

type ManagerDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	CredentialStore  CredentialStore
	TokenFetcher     TokenFetcher
	Clock            Clock
	BackoffScheduler BackoffScheduler
	CredentialCodec  CredentialCodec
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	builder := defaultManagerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(DefaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(DefaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.loggerProvider != nil {
		provider = builder.loggerProvider
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.credentialStore == nil {
		builder.credentialStore = NewMemoryCredentialStore()
	}
	if builder.clock == nil {
		builder.clock = SystemClock{}
	}
	if builder.credentialCodec == nil {
		builder.credentialCodec = JSONCredentialCodec{}
	}
	if builder.tokenFetcher == nil {
		return nil, mapBuildError(builder.errorMapper, internalError("core: token fetcher is required"))
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: finalConfig.Fetch.Backoff,
			Max:     defaultFetchMaxBackoff,
		}
	}

	return &Manager{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		store:           builder.credentialStore,
		fetcher:         builder.tokenFetcher,
		clock:           builder.clock,
		backoff:         builder.backoffScheduler,
		codec:           builder.credentialCodec,
		observer:        NewObserver(logger, builder.metricsRecorder),
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.config
}

func (m *Manager) Dependencies() ManagerDependencies {
	if m == nil {
		return ManagerDependencies{}
	}
	return ManagerDependencies{
		Logger:           m.logger,
		LoggerProvider:   m.loggerProvider,
		MetricsRecorder:  m.metricsRecorder,
		ErrorMapper:      m.errorMapper,
		ConfigProvider:   m.configProvider,
		OptionsResolver:  m.optionsResolver,
		CredentialStore:  m.store,
		TokenFetcher:     m.fetcher,
		Clock:            m.clock,
		BackoffScheduler: m.backoff,
		CredentialCodec:  m.codec,
	}
}

// GetValidCredential returns a credential that is valid at the current clock
// reading, fetching a new one only when memory and store hold nothing usable.
func (m *Manager) GetValidCredential(ctx context.Context) (credential Credential, err error) {
	if m == nil {
		return Credential{}, internalError("core: credential manager is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() {
		m.observer.Observe(ctx, startedAt, "get_credential", err, fields)
	}()

	now := m.now()
	if cached, ok := m.Last(); ok && cached.IsValid(now) {
		fields["source"] = SourceMemory
		return cached, nil
	}

	loaded, loadErr := m.store.Load(ctx)
	decision := ClassifyLoad(now, loaded, loadErr)
	fields["decision"] = string(decision)

	switch decision {
	case DecisionUseCached:
		m.remember(loaded)
		fields["source"] = SourceStore
		fields["expires_at"] = loaded.ExpiresAt
		return loaded, nil
	case DecisionFetchLoadFailed:
		m.observer.Log(ctx, "warn", "credential load failed, fetching a new one", map[string]any{
			"error": loadErr.Error(),
		})
	}

	fields["source"] = SourceRemote
	credential, err = m.fetchAndStore(ctx, fields)
	if err != nil {
		return Credential{}, m.mapError(err)
	}
	return credential, nil
}

// Refresh fetches a new credential regardless of what memory or the store hold.
func (m *Manager) Refresh(ctx context.Context) (credential Credential, err error) {
	if m == nil {
		return Credential{}, internalError("core: credential manager is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"source": SourceRemote}
	defer func() {
		m.observer.Observe(ctx, startedAt, "refresh_credential", err, fields)
	}()

	credential, err = m.fetchAndStore(ctx, fields)
	if err != nil {
		return Credential{}, m.mapError(err)
	}
	return credential, nil
}

// Invalidate drops the in-memory copy. The store is left as is.
func (m *Manager) Invalidate() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.current = Credential{}
	m.hasCurrent = false
	m.mu.Unlock()
}

func (m *Manager) Last() (Credential, bool) {
	if m == nil {
		return Credential{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.hasCurrent
}

func (m *Manager) fetchAndStore(ctx context.Context, fields map[string]any) (Credential, error) {
	result, err := m.fetchWithRetry(ctx)
	fields["attempts"] = result.Attempts
	if err != nil {
		return Credential{}, remoteFetchError("core: access token fetch failed", err, map[string]any{
			"attempts": result.Attempts,
		})
	}

	credential, err := NewCredentialFromGrant(m.now(), result.Grant, m.config.Credential.SafetyMargin)
	if err != nil {
		return Credential{}, err
	}
	fields["expires_at"] = credential.ExpiresAt

	if saveErr := m.store.Save(ctx, credential); saveErr != nil {
		fields["save_failed"] = true
		m.observer.Log(ctx, "error", "credential save failed, serving fetched credential", map[string]any{
			"error": saveErr.Error(),
		})
		m.observer.Count(ctx, "credential_save.failures", 1, map[string]string{"status": "failure"})
	}
	m.remember(credential)
	return credential, nil
}

func (m *Manager) remember(credential Credential) {
	m.mu.Lock()
	m.current = credential
	m.hasCurrent = true
	m.mu.Unlock()
}

func (m *Manager) now() time.Time {
	if m.clock == nil {
		return time.Now().UTC()
	}
	return m.clock.Now()
}

func (m *Manager) mapError(err error) error {
	if err == nil {
		return nil
	}
	if m == nil || m.errorMapper == nil {
		return err
	}
	mapped := m.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
