package inbound

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-wechat/core"
)

// Outcome describes how one payload was answered.
type Outcome struct {
	Body     []byte
	Rule     string
	Message  Message
	ParseErr error
}

type Dispatcher struct {
	Fallback string
	Clock    core.Clock

	observer core.Observer

	mu    sync.RWMutex
	rules []Rule
}

type Option func(*Dispatcher)

// WithRules replaces the rule table.
func WithRules(rules ...Rule) Option {
	return func(d *Dispatcher) {
		d.rules = append([]Rule(nil), rules...)
	}
}

// WithLoveKeyword rebuilds the default table around keyword.
func WithLoveKeyword(keyword string) Option {
	return func(d *Dispatcher) {
		d.rules = DefaultRules(keyword)
	}
}

func WithFallback(reply string) Option {
	return func(d *Dispatcher) {
		d.Fallback = reply
	}
}

func WithClock(clock core.Clock) Option {
	return func(d *Dispatcher) {
		d.Clock = clock
	}
}

func WithObserver(observer core.Observer) Option {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		Fallback: FallbackReply,
		Clock:    core.SystemClock{},
		rules:    DefaultRules(core.DefaultLoveKeyword),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	return d
}

// AppendRule adds a rule after the existing ones.
func (d *Dispatcher) AppendRule(rule Rule) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if err := rule.validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = append(d.rules, rule)
	return nil
}

func (d *Dispatcher) Rules() []Rule {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Rule(nil), d.rules...)
}

// Dispatch returns the serialized reply for raw. It never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) []byte {
	return d.Handle(ctx, raw).Body
}

func (d *Dispatcher) Handle(ctx context.Context, raw []byte) Outcome {
	if d == nil {
		return Outcome{Rule: RuleFallback}
	}
	startedAt := time.Now()

	msg, parseErr := ParseMessage(raw)
	outcome := Outcome{Message: msg, ParseErr: parseErr}
	if parseErr != nil {
		d.observer.Log(ctx, "warn", "inbound message parse failed", map[string]any{
			"error": parseErr.Error(),
			"bytes": len(raw),
		})
		outcome.Rule = RuleFallback
		outcome.Body = d.encode(ctx, NewReply(msg, d.fallback(), d.now()))
		d.observe(ctx, startedAt, outcome)
		return outcome
	}

	name, content := d.resolve(msg)
	outcome.Rule = name
	outcome.Body = d.encode(ctx, NewReply(msg, content, d.now()))
	d.observe(ctx, startedAt, outcome)
	return outcome
}

// Resolve walks the rule table for msg. First match wins.
func (d *Dispatcher) Resolve(msg Message) (string, string) {
	if d == nil {
		return RuleFallback, FallbackReply
	}
	return d.resolve(msg)
}

func (d *Dispatcher) resolve(msg Message) (string, string) {
	d.mu.RLock()
	rules := d.rules
	d.mu.RUnlock()
	for _, rule := range rules {
		if rule.Match == nil || rule.Reply == nil {
			continue
		}
		if rule.Match(msg) {
			return rule.Name, rule.Reply(msg)
		}
	}
	return RuleFallback, d.fallback()
}

func (d *Dispatcher) encode(ctx context.Context, reply Reply) []byte {
	encoded, err := reply.Encode()
	if err != nil {
		d.observer.Log(ctx, "error", "inbound reply encoding failed", map[string]any{"error": err.Error()})
		return []byte{}
	}
	return encoded
}

func (d *Dispatcher) observe(ctx context.Context, startedAt time.Time, outcome Outcome) {
	fields := map[string]any{
		"rule":     outcome.Rule,
		"msg_type": outcome.Message.MsgType,
	}
	if outcome.Message.MsgID != "" {
		fields["msg_id"] = outcome.Message.MsgID
	}
	d.observer.Observe(ctx, startedAt, "dispatch_message", nil, fields)
}

func (d *Dispatcher) fallback() string {
	if d.Fallback == "" {
		return FallbackReply
	}
	return d.Fallback
}

func (d *Dispatcher) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now()
}
