package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// MessageTypePrefix namespaces every message type published by this module.
const MessageTypePrefix = "wechat."

// ValidateMessageContract checks the Type() contract and runs Validate()
// when the message provides it.
func ValidateMessageContract(msg any) error {
	if err := validateMessageType(msg); err != nil {
		return err
	}
	return command.ValidateMessage(msg)
}

func validateMessageType(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	msgType := strings.TrimSpace(m.Type())
	if msgType == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	if !strings.HasPrefix(msgType, MessageTypePrefix) {
		return fmt.Errorf("gocommand: message type %q must start with %q", msgType, MessageTypePrefix)
	}
	return nil
}

// RegistryAdapter owns the go-command registry the WeChat handlers are
// registered on. Resolvers added here run during Initialize.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(cmd)
}

// RegisterQuery registers qry on the same registry; go-command resolves
// queries and commands through one table.
func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue
// registry so they can also run as queued jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a.ready() != nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the global dispatcher and
// registers it on adapter. The subscription is released when registration
// fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	var zero T
	if err := validateMessageType(zero); err != nil {
		return nil, err
	}
	return subscribeThenRegister(
		commanddispatcher.SubscribeCommand(cmd, runnerOpts...),
		func() error { return adapter.RegisterCommand(cmd) },
	)
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	var zero T
	if err := validateMessageType(zero); err != nil {
		return nil, err
	}
	return subscribeThenRegister(
		commanddispatcher.SubscribeQuery(qry, runnerOpts...),
		func() error { return adapter.RegisterQuery(qry) },
	)
}

func subscribeThenRegister(
	subscription commanddispatcher.Subscription,
	register func() error,
) (commanddispatcher.Subscription, error) {
	if err := register(); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
