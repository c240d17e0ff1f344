package core

import (
	"context"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var testNow = time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

type fetchStep struct {
	grant TokenGrant
	err   error
}

// scriptedFetcher replays steps in order and repeats the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []fetchStep
	calls int
}

func (f *scriptedFetcher) FetchToken(ctx context.Context) (TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return TokenGrant{}, err
	}
	if len(f.steps) == 0 {
		return TokenGrant{}, errors.New("scripted fetcher: no steps")
	}
	index := f.calls - 1
	if index >= len(f.steps) {
		index = len(f.steps) - 1
	}
	step := f.steps[index]
	return step.grant, step.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func grantStep(token string, expiresIn time.Duration) fetchStep {
	return fetchStep{grant: TokenGrant{AccessToken: token, ExpiresIn: expiresIn}}
}

func transientStep() fetchStep {
	return fetchStep{err: goerrors.New("token endpoint unreachable", goerrors.CategoryExternal)}
}

func platformStep() fetchStep {
	return fetchStep{err: goerrors.New("invalid appsecret", goerrors.CategoryExternal).
		WithTextCode(WeChatErrorPlatform).
		WithMetadata(map[string]any{"errcode": 40125, "retryable": false})}
}

// recordingStore wraps a MemoryCredentialStore and counts calls. Save and
// Load errors can be injected.
type recordingStore struct {
	mu      sync.Mutex
	inner   *MemoryCredentialStore
	saveErr error
	loadErr error
	saves   int
	loads   int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{inner: NewMemoryCredentialStore()}
}

func (s *recordingStore) Save(ctx context.Context, credential Credential) error {
	s.mu.Lock()
	s.saves++
	saveErr := s.saveErr
	s.mu.Unlock()
	if saveErr != nil {
		return saveErr
	}
	return s.inner.Save(ctx, credential)
}

func (s *recordingStore) Load(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	s.loads++
	loadErr := s.loadErr
	s.mu.Unlock()
	if loadErr != nil {
		return Credential{}, loadErr
	}
	return s.inner.Load(ctx)
}

func (s *recordingStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.loads
}

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type zeroBackoff struct{}

func (zeroBackoff) NextDelay(int) time.Duration { return 0 }

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func newTestManager(fetcher TokenFetcher, store CredentialStore, clock Clock, opts ...Option) (*Manager, error) {
	base := []Option{
		WithTokenFetcher(fetcher),
		WithCredentialStore(store),
		WithClock(clock),
		WithBackoffScheduler(zeroBackoff{}),
	}
	return NewManager(DefaultConfig(), append(base, opts...)...)
}
