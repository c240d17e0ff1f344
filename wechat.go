package wechat

import "github.com/goliatone/go-wechat/core"

type Config = core.Config

type Option = core.Option

type Manager = core.Manager

type ManagerDependencies = core.ManagerDependencies
type Credential = core.Credential
type CredentialStore = core.CredentialStore
type CredentialCodec = core.CredentialCodec
type TokenFetcher = core.TokenFetcher
type TokenGrant = core.TokenGrant
type Clock = core.Clock
type BackoffScheduler = core.BackoffScheduler

type InboundRequest = core.InboundRequest

type InboundResult = core.InboundResult

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithCredentialStore  = core.WithCredentialStore
	WithTokenFetcher     = core.WithTokenFetcher
	WithClock            = core.WithClock
	WithBackoffScheduler = core.WithBackoffScheduler
	WithCredentialCodec  = core.WithCredentialCodec
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	return core.NewManager(cfg, opts...)
}
