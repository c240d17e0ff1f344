package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-wechat/core"
)

const (
	ReasonScheduled = "scheduled"
	ReasonManual    = "manual"
)

type RefreshProducerOption func(*RefreshProducer)

func WithProducerClock(clock core.Clock) RefreshProducerOption {
	return func(p *RefreshProducer) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func WithProducerObserver(observer core.Observer) RefreshProducerOption {
	return func(p *RefreshProducer) {
		p.observer = observer
	}
}

// withProducerWait replaces the timer used between ticks.
func withProducerWait(wait func(ctx context.Context, d time.Duration) error) RefreshProducerOption {
	return func(p *RefreshProducer) {
		if wait != nil {
			p.wait = wait
		}
	}
}

// RefreshProducer enqueues credential refresh jobs on a cron schedule.
type RefreshProducer struct {
	enqueuer core.JobEnqueuer
	schedule string
	clock    core.Clock
	observer core.Observer
	wait     func(ctx context.Context, d time.Duration) error
}

func NewRefreshProducer(enqueuer core.JobEnqueuer, schedule string, opts ...RefreshProducerOption) (*RefreshProducer, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: refresh producer requires an enqueuer")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = core.DefaultRefreshSchedule
	}
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("gojob: invalid refresh schedule %q", schedule)
	}
	producer := &RefreshProducer{
		enqueuer: enqueuer,
		schedule: schedule,
		clock:    core.SystemClock{},
		wait:     sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(producer)
		}
	}
	return producer, nil
}

func (p *RefreshProducer) Schedule() string {
	if p == nil {
		return ""
	}
	return p.schedule
}

// Next returns the first tick strictly after ref.
func (p *RefreshProducer) Next(ref time.Time) (time.Time, error) {
	if p == nil {
		return time.Time{}, fmt.Errorf("gojob: refresh producer is nil")
	}
	return gronx.NextTickAfter(p.schedule, ref, false)
}

// EnqueueNow enqueues one refresh job outside the schedule.
func (p *RefreshProducer) EnqueueNow(ctx context.Context, reason string) error {
	if p == nil {
		return fmt.Errorf("gojob: refresh producer is nil")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonManual
	}
	return p.enqueue(ctx, p.clock.Now().UTC(), reason)
}

// Run enqueues one job per schedule tick until ctx is done. Enqueue
// failures are logged and the loop moves on to the next tick.
func (p *RefreshProducer) Run(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("gojob: refresh producer is nil")
	}
	for {
		now := p.clock.Now().UTC()
		next, err := p.Next(now)
		if err != nil {
			return err
		}
		if err := p.wait(ctx, next.Sub(now)); err != nil {
			return err
		}
		if err := p.enqueue(ctx, next, ReasonScheduled); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.observer.Log(ctx, "warn", "refresh job enqueue failed", map[string]any{
				"job_id": JobIDRefresh,
				"error":  err.Error(),
			})
		}
	}
}

func (p *RefreshProducer) enqueue(ctx context.Context, at time.Time, reason string) error {
	startedAt := time.Now()
	msg := NewRefreshMessage(at, reason)
	receipt, err := p.enqueuer.Enqueue(ctx, msg)
	fields := map[string]any{
		"job_id":          msg.JobID,
		"idempotency_key": msg.IdempotencyKey,
		"reason":          reason,
	}
	if receipt.DispatchID != "" {
		fields["dispatch_id"] = receipt.DispatchID
	}
	p.observer.Observe(ctx, startedAt, "refresh_job_enqueue", err, fields)
	return err
}

// NewRefreshMessage builds the execution message for a refresh at the given
// instant. Jobs for the same instant share an idempotency key.
func NewRefreshMessage(at time.Time, reason string) *core.JobExecutionMessage {
	at = at.UTC().Truncate(time.Second)
	return &core.JobExecutionMessage{
		JobID:      JobIDRefresh,
		ScriptPath: ScriptPathRefresh,
		Parameters: map[string]any{
			ParameterReason:      reason,
			ParameterScheduledAt: at.Format(time.RFC3339),
		},
		IdempotencyKey: fmt.Sprintf("%s:%d", JobIDRefresh, at.Unix()),
		DedupPolicy:    DedupPolicyRefresh,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type RefreshWorkerOption func(*RefreshWorker)

// WithWorkerHooks adds go-job worker hooks; they receive the same events a
// go-job worker would emit for the refresh task.
func WithWorkerHooks(hooks ...worker.Hook) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		for _, hook := range hooks {
			if hook != nil {
				w.hooks = append(w.hooks, hook)
			}
		}
	}
}

func WithWorkerObserver(observer core.Observer) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		w.observer = observer
	}
}

// RefreshWorker consumes refresh jobs and forces a credential refresh for
// each one. Successful jobs are acked; failed ones are nacked with the
// disposition the retry policy decides.
type RefreshWorker struct {
	dequeuer  core.JobDequeuer
	refresher core.CredentialRefresher
	policy    RetryPolicy
	hooks     []worker.Hook
	observer  core.Observer

	mu       sync.Mutex
	attempts map[string]int
}

func NewRefreshWorker(
	dequeuer core.JobDequeuer,
	refresher core.CredentialRefresher,
	policy RetryPolicy,
	opts ...RefreshWorkerOption,
) (*RefreshWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: refresh worker requires a dequeuer")
	}
	if refresher == nil {
		return nil, fmt.Errorf("gojob: refresh worker requires a credential refresher")
	}
	w := &RefreshWorker{
		dequeuer:  dequeuer,
		refresher: refresher,
		policy:    policy,
		attempts:  map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// ProcessNext dequeues and handles a single delivery.
func (w *RefreshWorker) ProcessNext(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("gojob: refresh worker is nil")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	return w.handle(ctx, delivery)
}

// Run processes deliveries until ctx is done or the dequeuer fails.
func (w *RefreshWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (w *RefreshWorker) handle(ctx context.Context, delivery core.JobDelivery) error {
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDRefresh {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		return delivery.Nack(ctx, core.JobNackOptions{
			Disposition: core.JobNackDeadLetter,
			Reason:      fmt.Sprintf("unsupported job %q", jobID),
		})
	}

	key := attemptKey(msg)
	attempt := w.attempt(key, delivery)
	startedAt := time.Now()
	event := worker.Event{
		Delivery:  rawDelivery(delivery),
		Message:   ToExecutionMessage(msg),
		Attempt:   attempt,
		StartedAt: startedAt,
	}
	w.emit(ctx, worker.Hook.OnStart, event)

	credential, err := w.refresher.Refresh(ctx)
	event.Duration = time.Since(startedAt)
	w.observer.Observe(ctx, startedAt, "refresh_job", err, map[string]any{
		"job_id":          msg.JobID,
		"idempotency_key": msg.IdempotencyKey,
		"attempt":         attempt,
		"expires_at":      expiresAtField(credential, err),
	})

	if err == nil {
		w.resetAttempts(key)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			event.Err = ackErr
			w.emit(ctx, worker.Hook.OnFailure, event)
			return ackErr
		}
		w.emit(ctx, worker.Hook.OnSuccess, event)
		return nil
	}

	event.Err = err
	opts := FromNackOptions(w.policy.Decide(attempt, err))
	event.Delay = opts.Delay
	nackErr := delivery.Nack(ctx, opts)
	if opts.Terminal() {
		w.resetAttempts(key)
		w.emit(ctx, worker.Hook.OnFailure, event)
	} else {
		w.emit(ctx, worker.Hook.OnRetry, event)
	}
	return nackErr
}

// attempt prefers the queue-side count so retries survive worker restarts.
func (w *RefreshWorker) attempt(key string, delivery core.JobDelivery) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if reader, ok := delivery.(interface{ Attempts() int }); ok {
		if attempts := reader.Attempts(); attempts > 0 {
			w.attempts[key] = attempts
			return attempts
		}
	}
	w.attempts[key]++
	return w.attempts[key]
}

func (w *RefreshWorker) resetAttempts(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *RefreshWorker) emit(ctx context.Context, fn func(worker.Hook, context.Context, worker.Event), event worker.Event) {
	for _, hook := range w.hooks {
		fn(hook, ctx, event)
	}
}

func rawDelivery(delivery core.JobDelivery) queue.Delivery {
	if adapter, ok := delivery.(*DeliveryAdapter); ok {
		return adapter.Delivery()
	}
	return nil
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return msg.JobID
}

func expiresAtField(credential core.Credential, err error) string {
	if err != nil || credential.ExpiresAt.IsZero() {
		return ""
	}
	return credential.ExpiresAt.UTC().Format(time.RFC3339)
}
