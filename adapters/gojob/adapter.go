package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-wechat/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDRefresh         = "wechat.credential.refresh"
	ScriptPathRefresh    = "wechat/credential/refresh"
	DedupPolicyRefresh   = string(job.DedupPolicyDrop)
	ParameterReason      = "reason"
	ParameterScheduledAt = "scheduled_at"
)

// RetryPolicy decides how a failed refresh job is nacked. Backoff and the
// attempt bound come from go-job's DefaultRetryPolicy, so the same policy
// can be handed to a go-job worker through worker.WithRetryPolicy.
//
// MaxAttempts <= 0 retries without bound. Exhausted jobs and errors that
// core.IsRetryable rejects are dead-lettered when DeadLetterOnMax is set and
// marked failed otherwise.
type RetryPolicy struct {
	MaxAttempts     int
	Backoff         worker.BackoffConfig
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// DefaultRefreshBackoff is the exponential profile used when a policy sets
// no backoff strategy.
var DefaultRefreshBackoff = worker.BackoffConfig{
	Strategy:    worker.BackoffExponential,
	Interval:    time.Second,
	MaxInterval: time.Minute,
}

func (p RetryPolicy) Decide(attempt int, err error) queue.NackOptions {
	if attempt < 1 {
		attempt = 1
	}
	if err != nil && !core.IsRetryable(err) {
		err = job.NewTerminalError("", err.Error(), err)
	}

	backoff := p.Backoff
	if backoff.Strategy == "" {
		backoff = DefaultRefreshBackoff
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = attempt + 1
	}

	decided := worker.DefaultRetryPolicy{MaxAttempts: maxAttempts, Backoff: backoff}.Decide(attempt, err)
	if decided.Disposition != queue.NackDispositionRetry {
		if !p.DeadLetterOnMax {
			decided.Disposition = queue.NackDispositionFailed
		}
		decided.Delay = 0
		return decided
	}
	if p.MaxDelay > 0 && decided.Delay > p.MaxDelay {
		decided.Delay = p.MaxDelay
	}
	return decided
}

// ToExecutionMessage copies msg into a go-job message. Refresh jobs missing
// a script path or dedup policy get the refresh defaults.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	jobID := strings.TrimSpace(msg.JobID)
	scriptPath := strings.TrimSpace(msg.ScriptPath)
	dedup := strings.TrimSpace(msg.DedupPolicy)
	if jobID == JobIDRefresh {
		if scriptPath == "" {
			scriptPath = ScriptPathRefresh
		}
		if dedup == "" {
			dedup = DedupPolicyRefresh
		}
	}
	return &job.ExecutionMessage{
		JobID:          jobID,
		ScriptPath:     scriptPath,
		Parameters:     cloneParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(dedup),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     cloneParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Disposition: queue.NackDisposition(opts.Disposition),
		Delay:       opts.Delay,
		Reason:      strings.TrimSpace(opts.Reason),
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Disposition: core.JobNackDisposition(opts.Disposition),
		Delay:       opts.Delay,
		Reason:      opts.Reason,
	}
}

// EnqueuerAdapter puts core refresh messages on a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) (core.JobEnqueueReceipt, error) {
	if a == nil || a.enqueuer == nil {
		return core.JobEnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	out := ToExecutionMessage(msg)
	if err := queue.ValidateRequiredMessage(out); err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	receipt, err := a.enqueuer.Enqueue(ctx, out)
	if err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	return core.JobEnqueueReceipt{DispatchID: receipt.DispatchID, EnqueuedAt: receipt.EnqueuedAt}, nil
}

// DeliveryAdapter exposes a go-job delivery as a core.JobDelivery.
type DeliveryAdapter struct {
	delivery queue.Delivery
}

func NewDeliveryAdapter(delivery queue.Delivery) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery}
}

// Delivery returns the wrapped go-job delivery.
func (d *DeliveryAdapter) Delivery() queue.Delivery {
	if d == nil {
		return nil
	}
	return d.delivery
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

// Attempts reports the queue-side attempt count, or 0 when the backend does
// not track one.
func (d *DeliveryAdapter) Attempts() int {
	if d == nil || d.delivery == nil {
		return 0
	}
	if reader, ok := d.delivery.(interface{ Attempts() int }); ok {
		return reader.Attempts()
	}
	return 0
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	out := ToNackOptions(opts)
	if err := queue.ValidateNackOptions(out); err != nil {
		return fmt.Errorf("gojob: %w", err)
	}
	return d.delivery.Nack(ctx, out)
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil || delivery == nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery), nil
}

func cloneParameters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer   = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer   = (*DequeuerAdapter)(nil)
	_ worker.RetryPolicy = RetryPolicy{}
)
