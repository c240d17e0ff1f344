package query

import (
	"context"

	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/inbound"
)

type MessageDispatcher interface {
	Handle(ctx context.Context, raw []byte) inbound.Outcome
}

type GetAccessTokenQuery struct {
	provider core.CredentialProvider
}

func NewGetAccessTokenQuery(provider core.CredentialProvider) *GetAccessTokenQuery {
	return &GetAccessTokenQuery{provider: provider}
}

func (q *GetAccessTokenQuery) Query(ctx context.Context, _ GetAccessTokenMessage) (core.Credential, error) {
	if q == nil || q.provider == nil {
		return core.Credential{}, queryDependencyError("query: credential provider is required")
	}
	return q.provider.GetValidCredential(ctx)
}

// DispatchMessageQuery returns the serialized reply for a payload. Parse
// failures still yield the fallback reply, so only validation and missing
// dependencies produce errors.
type DispatchMessageQuery struct {
	dispatcher MessageDispatcher
}

func NewDispatchMessageQuery(dispatcher MessageDispatcher) *DispatchMessageQuery {
	return &DispatchMessageQuery{dispatcher: dispatcher}
}

func (q *DispatchMessageQuery) Query(ctx context.Context, msg DispatchMessageMessage) ([]byte, error) {
	if q == nil || q.dispatcher == nil {
		return nil, queryDependencyError("query: message dispatcher is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.dispatcher.Handle(ctx, msg.Payload).Body, nil
}
