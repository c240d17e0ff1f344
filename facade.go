package wechat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-wechat/adapters/gocommand"
	"github.com/goliatone/go-wechat/adapters/gojob"
	"github.com/goliatone/go-wechat/adapters/gologger"
	wechatcommand "github.com/goliatone/go-wechat/command"
	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/inbound"
	"github.com/goliatone/go-wechat/platform"
	wechatquery "github.com/goliatone/go-wechat/query"
	"github.com/goliatone/go-wechat/store/file"
	"github.com/goliatone/go-wechat/transport"
	"github.com/goliatone/go-wechat/webhooks"
)

type Commands struct {
	RefreshCredential    *wechatcommand.RefreshCredentialCommand
	InvalidateCredential *wechatcommand.InvalidateCredentialCommand
	SendText             *wechatcommand.SendTextCommand
}

type Queries struct {
	GetAccessToken  *wechatquery.GetAccessTokenQuery
	DispatchMessage *wechatquery.DispatchMessageQuery
}

// Facade wires one official account end to end: the credential manager
// fed by the platform token endpoint, the callback processor and its HTTP
// handler, the authorized API client, and the command/query handlers.
type Facade struct {
	config     Config
	manager    *core.Manager
	client     *platform.Client
	dispatcher *inbound.Dispatcher
	processor  *webhooks.Processor
	handler    *webhooks.HTTPHandler
	observer   core.Observer
	commands   Commands
	queries    Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	configProvider    core.ConfigProvider
	httpClient        transport.HTTPDoer
	fetcher           core.TokenFetcher
	credentialPath    string
	loggerProvider    glog.LoggerProvider
	logger            glog.Logger
	metrics           core.MetricsRecorder
	managerOptions    []core.Option
	dispatcherOptions []inbound.Option
}

// WithSourceConfig loads configuration through provider before runtime
// values are applied.
func WithSourceConfig(provider core.ConfigProvider) FacadeOption {
	return func(options *facadeOptions) {
		options.configProvider = provider
	}
}

func WithHTTPClient(client transport.HTTPDoer) FacadeOption {
	return func(options *facadeOptions) {
		options.httpClient = client
	}
}

// WithFetcher replaces the platform token client as the credential source.
func WithFetcher(fetcher core.TokenFetcher) FacadeOption {
	return func(options *facadeOptions) {
		options.fetcher = fetcher
	}
}

// WithCredentialFile persists the credential as JSON at path.
func WithCredentialFile(path string) FacadeOption {
	return func(options *facadeOptions) {
		options.credentialPath = strings.TrimSpace(path)
	}
}

func WithFacadeLogging(provider glog.LoggerProvider, logger glog.Logger) FacadeOption {
	return func(options *facadeOptions) {
		options.loggerProvider = provider
		options.logger = logger
	}
}

func WithFacadeMetrics(recorder core.MetricsRecorder) FacadeOption {
	return func(options *facadeOptions) {
		options.metrics = recorder
	}
}

// WithManagerOptions appends manager options; they are applied after the
// options derived from the facade settings.
func WithManagerOptions(opts ...core.Option) FacadeOption {
	return func(options *facadeOptions) {
		options.managerOptions = append(options.managerOptions, opts...)
	}
}

func WithDispatcherOptions(opts ...inbound.Option) FacadeOption {
	return func(options *facadeOptions) {
		options.dispatcherOptions = append(options.dispatcherOptions, opts...)
	}
}

func NewFacade(cfg Config, opts ...FacadeOption) (*Facade, error) {
	options := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	resolved, err := core.ResolveConfig(context.Background(), cfg, options.configProvider, nil)
	if err != nil {
		return nil, err
	}

	fetcher := options.fetcher
	if fetcher == nil {
		tokenClient, err := platform.NewTokenClientFromConfig(resolved, options.httpClient)
		if err != nil {
			return nil, err
		}
		fetcher = tokenClient
	}

	managerOptions := []core.Option{
		core.WithTokenFetcher(fetcher),
		core.WithLoggerProvider(options.loggerProvider),
		core.WithLogger(options.logger),
	}
	if options.metrics != nil {
		managerOptions = append(managerOptions, core.WithMetricsRecorder(options.metrics))
	}
	if options.credentialPath != "" {
		managerOptions = append(managerOptions, core.WithCredentialStore(file.NewCredentialStore(options.credentialPath)))
	}
	manager, err := core.NewManager(resolved, append(managerOptions, options.managerOptions...)...)
	if err != nil {
		return nil, err
	}

	observer := gologger.Observer(resolved.ServiceName, options.loggerProvider, options.logger, options.metrics)
	dispatcher := inbound.NewDispatcher(append([]inbound.Option{
		inbound.WithLoveKeyword(resolved.Dispatch.LoveKeyword),
		inbound.WithObserver(observer),
	}, options.dispatcherOptions...)...)

	processor, err := webhooks.NewProcessorFromConfig(resolved, dispatcher, webhooks.WithObserver(observer))
	if err != nil {
		return nil, err
	}

	client := platform.NewClientFromConfig(resolved, manager, options.httpClient, platform.WithObserver(observer))

	return &Facade{
		config:     manager.Config(),
		manager:    manager,
		client:     client,
		dispatcher: dispatcher,
		processor:  processor,
		handler:    webhooks.NewHTTPHandler(processor, webhooks.WithHandlerObserver(observer)),
		observer:   observer,
		commands: Commands{
			RefreshCredential:    wechatcommand.NewRefreshCredentialCommand(manager),
			InvalidateCredential: wechatcommand.NewInvalidateCredentialCommand(manager),
			SendText:             wechatcommand.NewSendTextCommand(client),
		},
		queries: Queries{
			GetAccessToken:  wechatquery.NewGetAccessTokenQuery(manager),
			DispatchMessage: wechatquery.NewDispatchMessageQuery(dispatcher),
		},
	}, nil
}

func (f *Facade) Config() Config {
	if f == nil {
		return Config{}
	}
	return f.config
}

func (f *Facade) Manager() *core.Manager {
	if f == nil {
		return nil
	}
	return f.manager
}

func (f *Facade) Client() *platform.Client {
	if f == nil {
		return nil
	}
	return f.client
}

func (f *Facade) Dispatcher() *inbound.Dispatcher {
	if f == nil {
		return nil
	}
	return f.dispatcher
}

func (f *Facade) Processor() *webhooks.Processor {
	if f == nil {
		return nil
	}
	return f.processor
}

// Handler serves the callback endpoint.
func (f *Facade) Handler() http.Handler {
	if f == nil || f.handler == nil {
		return webhooks.NewHTTPHandler(nil)
	}
	return f.handler
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// Register publishes the command and query handlers on the go-command
// dispatcher through adapter.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) (*gocommand.Registration, error) {
	if f == nil || f.manager == nil {
		return nil, fmt.Errorf("wechat: facade is not configured")
	}
	return gocommand.RegisterWeChatHandlers(adapter, gocommand.Handlers{
		Credentials: f.manager,
		Sender:      f.client,
		Dispatcher:  f.dispatcher,
	})
}

// RefreshProducer schedules refresh jobs on the configured cron expression.
func (f *Facade) RefreshProducer(enqueuer core.JobEnqueuer, opts ...gojob.RefreshProducerOption) (*gojob.RefreshProducer, error) {
	if f == nil {
		return nil, fmt.Errorf("wechat: facade is not configured")
	}
	base := []gojob.RefreshProducerOption{gojob.WithProducerObserver(f.observer)}
	return gojob.NewRefreshProducer(enqueuer, f.config.Refresh.Schedule, append(base, opts...)...)
}

// RefreshWorker consumes refresh jobs against the facade manager.
func (f *Facade) RefreshWorker(dequeuer core.JobDequeuer, policy gojob.RetryPolicy, opts ...gojob.RefreshWorkerOption) (*gojob.RefreshWorker, error) {
	if f == nil || f.manager == nil {
		return nil, fmt.Errorf("wechat: facade is not configured")
	}
	base := []gojob.RefreshWorkerOption{gojob.WithWorkerObserver(f.observer)}
	return gojob.NewRefreshWorker(dequeuer, f.manager, policy, append(base, opts...)...)
}
