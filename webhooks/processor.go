package webhooks

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/inbound"
)

const ContentTypeXML = "application/xml"

// MessageDispatcher answers a verified message payload.
type MessageDispatcher interface {
	Handle(ctx context.Context, raw []byte) inbound.Outcome
}

type Processor struct {
	Verifier       Verifier
	Dispatcher     MessageDispatcher
	RejectBody     string
	ResponseWindow time.Duration

	observer core.Observer
}

type ProcessorOption func(*Processor)

func WithRejectBody(body string) ProcessorOption {
	return func(p *Processor) {
		p.RejectBody = body
	}
}

func WithResponseWindow(window time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.ResponseWindow = window
	}
}

func WithObserver(observer core.Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = observer
	}
}

// NewProcessor fails closed: without a verifier every request is rejected.
func NewProcessor(verifier Verifier, dispatcher MessageDispatcher, opts ...ProcessorOption) *Processor {
	p := &Processor{
		Verifier:       verifier,
		Dispatcher:     dispatcher,
		RejectBody:     core.DefaultRejectBody,
		ResponseWindow: core.DefaultResponseWindow,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(p)
	}
	return p
}

// NewProcessorFromConfig wires a SignatureVerifier for cfg.Token and a
// dispatcher built on cfg.Dispatch when dispatcher is nil.
func NewProcessorFromConfig(cfg core.Config, dispatcher MessageDispatcher, opts ...ProcessorOption) (*Processor, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, webhookBadInput("webhooks: token is required", nil)
	}
	if dispatcher == nil {
		dispatcher = inbound.NewDispatcher(inbound.WithLoveKeyword(cfg.Dispatch.LoveKeyword))
	}
	base := []ProcessorOption{
		WithRejectBody(cfg.Webhook.RejectBody),
		WithResponseWindow(cfg.Webhook.ResponseWindow),
	}
	return NewProcessor(SignatureVerifier{Token: cfg.Token}, dispatcher, append(base, opts...)...), nil
}

// Process always yields StatusCode 200.
func (p *Processor) Process(ctx context.Context, req core.InboundRequest) core.InboundResult {
	if ctx == nil {
		ctx = context.Background()
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	switch method {
	case http.MethodGet:
		return p.handshake(ctx, req)
	case http.MethodPost:
		return p.message(ctx, req)
	default:
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusOK,
			Body:       []byte{},
			Metadata:   map[string]any{"method": method},
		}
	}
}

func (p *Processor) handshake(ctx context.Context, req core.InboundRequest) core.InboundResult {
	startedAt := time.Now()
	fields := map[string]any{"method": http.MethodGet}

	err := p.verify(ctx, req)
	result := core.InboundResult{
		StatusCode: http.StatusOK,
		Body:       []byte{},
		Metadata:   map[string]any{"method": http.MethodGet, "verified": err == nil},
	}
	if err == nil {
		result.Accepted = true
		result.Body = []byte(queryValue(req.Query, QueryEchoStr))
	} else {
		result.Metadata["rejected"] = true
		fields["rejected"] = true
	}
	p.observer.Observe(ctx, startedAt, "webhook_handshake", err, fields)
	return result
}

func (p *Processor) message(ctx context.Context, req core.InboundRequest) core.InboundResult {
	startedAt := time.Now()
	fields := map[string]any{"method": http.MethodPost}

	if err := p.verify(ctx, req); err != nil {
		p.observer.Log(ctx, "warn", "webhook message rejected", map[string]any{
			"error": err.Error(),
		})
		fields["rejected"] = true
		p.observer.Observe(ctx, startedAt, "webhook_message", err, fields)
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusOK,
			Body:       []byte(p.rejectBody()),
			Metadata:   map[string]any{"method": http.MethodPost, "verified": false, "rejected": true},
		}
	}

	if p.Dispatcher == nil {
		p.observer.Observe(ctx, startedAt, "webhook_message", nil, fields)
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Body:       []byte{},
			Metadata:   map[string]any{"method": http.MethodPost, "verified": true},
		}
	}

	dispatchCtx := ctx
	if p.ResponseWindow > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, p.ResponseWindow)
		defer cancel()
	}
	outcome := p.Dispatcher.Handle(dispatchCtx, req.Body)
	fields["rule"] = outcome.Rule
	p.observer.Observe(ctx, startedAt, "webhook_message", nil, fields)

	metadata := map[string]any{
		"method":   http.MethodPost,
		"verified": true,
		"rule":     outcome.Rule,
	}
	if outcome.ParseErr != nil {
		metadata["parse_failed"] = true
	}
	return core.InboundResult{
		Accepted:    true,
		StatusCode:  http.StatusOK,
		ContentType: ContentTypeXML,
		Body:        outcome.Body,
		Metadata:    metadata,
	}
}

func (p *Processor) verify(ctx context.Context, req core.InboundRequest) error {
	if p == nil || p.Verifier == nil {
		return verificationFailure("webhooks: no verifier configured", nil)
	}
	return p.Verifier.Verify(ctx, req)
}

func (p *Processor) rejectBody() string {
	if p == nil || p.RejectBody == "" {
		return core.DefaultRejectBody
	}
	return p.RejectBody
}
