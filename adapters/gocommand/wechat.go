package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	wechatcommand "github.com/goliatone/go-wechat/command"
	"github.com/goliatone/go-wechat/core"
	wechatquery "github.com/goliatone/go-wechat/query"
)

// Handlers lists the dependencies behind the WeChat command and query
// surface. Nil fields leave the matching handlers unregistered.
type Handlers struct {
	Credentials interface {
		core.CredentialProvider
		core.CredentialRefresher
	}
	Sender     wechatcommand.TextSender
	Dispatcher wechatquery.MessageDispatcher
}

// Registration holds the dispatcher subscriptions created by
// RegisterWeChatHandlers.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
	types         []string
}

// Types returns the message types that were registered, in order.
func (r *Registration) Types() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.types...)
}

func (r *Registration) Unsubscribe() {
	if r == nil {
		return
	}
	for _, subscription := range r.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	r.subscriptions = nil
}

func (r *Registration) add(msgType string, subscription commanddispatcher.Subscription) {
	r.subscriptions = append(r.subscriptions, subscription)
	r.types = append(r.types, msgType)
}

// RegisterWeChatHandlers registers and subscribes every handler whose
// dependency is present. On failure the subscriptions made so far are
// released.
func RegisterWeChatHandlers(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) (*Registration, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	registration := &Registration{}
	fail := func(err error) (*Registration, error) {
		registration.Unsubscribe()
		return nil, err
	}

	if handlers.Credentials != nil {
		sub, err := RegisterAndSubscribe(adapter, wechatcommand.NewRefreshCredentialCommand(handlers.Credentials), runnerOpts...)
		if err != nil {
			return fail(err)
		}
		registration.add(wechatcommand.TypeRefreshCredential, sub)

		sub, err = RegisterAndSubscribe(adapter, wechatcommand.NewInvalidateCredentialCommand(handlers.Credentials), runnerOpts...)
		if err != nil {
			return fail(err)
		}
		registration.add(wechatcommand.TypeInvalidateCredential, sub)

		sub, err = RegisterAndSubscribeQuery(adapter, wechatquery.NewGetAccessTokenQuery(handlers.Credentials), runnerOpts...)
		if err != nil {
			return fail(err)
		}
		registration.add(wechatquery.TypeGetAccessToken, sub)
	}

	if handlers.Sender != nil {
		sub, err := RegisterAndSubscribe(adapter, wechatcommand.NewSendTextCommand(handlers.Sender), runnerOpts...)
		if err != nil {
			return fail(err)
		}
		registration.add(wechatcommand.TypeSendText, sub)
	}

	if handlers.Dispatcher != nil {
		sub, err := RegisterAndSubscribeQuery(adapter, wechatquery.NewDispatchMessageQuery(handlers.Dispatcher), runnerOpts...)
		if err != nil {
			return fail(err)
		}
		registration.add(wechatquery.TypeDispatchMessage, sub)
	}

	return registration, nil
}
