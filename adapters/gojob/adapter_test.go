package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-wechat/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestToExecutionMessageFillsRefreshDefaults(t *testing.T) {
	converted := ToExecutionMessage(&core.JobExecutionMessage{JobID: " " + JobIDRefresh + " "})
	if converted.JobID != JobIDRefresh || converted.ScriptPath != ScriptPathRefresh {
		t.Fatalf("expected refresh identity, got %+v", converted)
	}
	if converted.DedupPolicy != job.DedupPolicyDrop {
		t.Fatalf("expected drop dedup policy, got %q", converted.DedupPolicy)
	}
	if converted.Parameters == nil {
		t.Fatalf("expected non-nil parameters")
	}

	other := ToExecutionMessage(&core.JobExecutionMessage{JobID: "other.job"})
	if other.ScriptPath != "" || other.DedupPolicy != "" {
		t.Fatalf("expected no defaults for other jobs, got %+v", other)
	}
	if ToExecutionMessage(nil) != nil || FromExecutionMessage(nil) != nil {
		t.Fatalf("expected nil messages to stay nil")
	}
}

func TestFromExecutionMessageCopiesParameters(t *testing.T) {
	raw := ToExecutionMessage(NewRefreshMessage(producerNow, ReasonManual))
	msg := FromExecutionMessage(raw)
	msg.Parameters[ParameterReason] = "changed"
	if raw.Parameters[ParameterReason] != ReasonManual {
		t.Fatalf("expected parameters to be copied, got %#v", raw.Parameters)
	}
	if msg.DedupPolicy != DedupPolicyRefresh || msg.IdempotencyKey != raw.IdempotencyKey {
		t.Fatalf("unexpected mapped message %+v", msg)
	}
}

func TestEnqueuerAdapterReturnsReceipt(t *testing.T) {
	enqueuedAt := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	enqueuer := &stubQueueEnqueuer{receipt: queue.EnqueueReceipt{DispatchID: "dispatch-1", EnqueuedAt: enqueuedAt}}

	receipt, err := NewEnqueuerAdapter(enqueuer).Enqueue(context.Background(), NewRefreshMessage(producerNow, ReasonScheduled))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if receipt.DispatchID != "dispatch-1" || !receipt.EnqueuedAt.Equal(enqueuedAt) {
		t.Fatalf("expected go-job receipt, got %+v", receipt)
	}
	if enqueuer.last == nil || enqueuer.last.ScriptPath != ScriptPathRefresh {
		t.Fatalf("expected mapped go-job message, got %+v", enqueuer.last)
	}
}

func TestEnqueuerAdapterRejectsMessageWithoutJobID(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	adapter := NewEnqueuerAdapter(enqueuer)
	if _, err := adapter.Enqueue(context.Background(), &core.JobExecutionMessage{}); err == nil {
		t.Fatalf("expected go-job validation error")
	}
	if _, err := adapter.Enqueue(context.Background(), nil); err == nil {
		t.Fatalf("expected nil message error")
	}
	if enqueuer.calls != 0 {
		t.Fatalf("expected invalid messages to stay off the queue")
	}

	failing := &stubQueueEnqueuer{err: errors.New("broker down")}
	if _, err := NewEnqueuerAdapter(failing).Enqueue(context.Background(), NewRefreshMessage(producerNow, "")); err == nil {
		t.Fatalf("expected enqueue error to propagate")
	}
	if _, err := NewEnqueuerAdapter(nil).Enqueue(context.Background(), NewRefreshMessage(producerNow, "")); err == nil {
		t.Fatalf("expected unconfigured enqueuer error")
	}
}

func TestDeliveryAdapterMapsDisposition(t *testing.T) {
	raw := &stubQueueDelivery{msg: ToExecutionMessage(NewRefreshMessage(producerNow, ReasonScheduled)), attempts: 4}
	counted := countingQueueDelivery{raw}
	delivery, err := NewDequeuerAdapter(&stubQueueDequeuer{delivery: counted}).Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	adapter, ok := delivery.(*DeliveryAdapter)
	if !ok || adapter.Delivery() != queue.Delivery(counted) {
		t.Fatalf("expected delivery adapter over the go-job delivery, got %T", delivery)
	}
	if adapter.Attempts() != 4 {
		t.Fatalf("expected queue-side attempts, got %d", adapter.Attempts())
	}
	if delivery.Message().JobID != JobIDRefresh {
		t.Fatalf("expected mapped core message")
	}

	if err := delivery.Nack(context.Background(), core.JobNackOptions{
		Disposition: core.JobNackRetry,
		Delay:       2 * time.Second,
		Reason:      " busy ",
	}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionRetry || raw.nackOpts.Delay != 2*time.Second || raw.nackOpts.Reason != "busy" {
		t.Fatalf("unexpected go-job nack %+v", raw.nackOpts)
	}

	if err := delivery.Nack(context.Background(), core.JobNackOptions{Disposition: core.JobNackDeadLetter}); err != nil {
		t.Fatalf("dead letter nack: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter disposition, got %q", raw.nackOpts.Disposition)
	}

	if err := delivery.Ack(context.Background()); err != nil || !raw.acked {
		t.Fatalf("expected ack on go-job delivery, err=%v", err)
	}
}

func TestDeliveryAdapterRejectsMissingDisposition(t *testing.T) {
	raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDRefresh}}
	err := NewDeliveryAdapter(raw).Nack(context.Background(), core.JobNackOptions{Reason: "no disposition"})
	if err == nil {
		t.Fatalf("expected go-job nack validation error")
	}
	if raw.nacks != 0 {
		t.Fatalf("expected invalid nack to stay off the queue")
	}
	if NewDeliveryAdapter(raw).Attempts() != 0 {
		t.Fatalf("expected zero attempts when the backend does not count")
	}
}

func TestRetryPolicyDecide(t *testing.T) {
	transient := errors.New("upstream unavailable")
	rejected := core.RemoteFetchError("rejected", nil, map[string]any{"retryable": false})
	fixed := worker.BackoffConfig{Strategy: worker.BackoffFixed, Interval: 30 * time.Second}

	cases := []struct {
		name        string
		policy      RetryPolicy
		attempt     int
		err         error
		disposition queue.NackDisposition
		delay       time.Duration
	}{
		{
			name:        "retry with backoff",
			policy:      RetryPolicy{MaxAttempts: 3, Backoff: fixed},
			attempt:     1,
			err:         transient,
			disposition: queue.NackDispositionRetry,
			delay:       30 * time.Second,
		},
		{
			name:        "delay clamped",
			policy:      RetryPolicy{MaxAttempts: 3, Backoff: fixed, MaxDelay: time.Second},
			attempt:     2,
			err:         transient,
			disposition: queue.NackDispositionRetry,
			delay:       time.Second,
		},
		{
			name:        "default exponential backoff",
			policy:      RetryPolicy{MaxAttempts: 5},
			attempt:     2,
			err:         transient,
			disposition: queue.NackDispositionRetry,
			delay:       2 * time.Second,
		},
		{
			name:        "exhausted dead letters",
			policy:      RetryPolicy{MaxAttempts: 2, DeadLetterOnMax: true},
			attempt:     2,
			err:         transient,
			disposition: queue.NackDispositionDeadLetter,
		},
		{
			name:        "exhausted fails without dead letter",
			policy:      RetryPolicy{MaxAttempts: 2},
			attempt:     2,
			err:         transient,
			disposition: queue.NackDispositionFailed,
		},
		{
			name:        "non retryable skips remaining attempts",
			policy:      RetryPolicy{MaxAttempts: 5, DeadLetterOnMax: true},
			attempt:     1,
			err:         rejected,
			disposition: queue.NackDispositionDeadLetter,
		},
		{
			name:        "unbounded keeps retrying",
			policy:      RetryPolicy{Backoff: fixed},
			attempt:     40,
			err:         transient,
			disposition: queue.NackDispositionRetry,
			delay:       30 * time.Second,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.policy.Decide(tc.attempt, tc.err)
			if opts.Disposition != tc.disposition {
				t.Fatalf("expected %q, got %q", tc.disposition, opts.Disposition)
			}
			if opts.Delay != tc.delay {
				t.Fatalf("expected delay %s, got %s", tc.delay, opts.Delay)
			}
			if opts.Reason == "" {
				t.Fatalf("expected reason from error")
			}
			if err := queue.ValidateNackOptions(opts); err != nil {
				t.Fatalf("expected valid go-job nack options: %v", err)
			}
		})
	}
}

type stubQueueEnqueuer struct {
	last    *job.ExecutionMessage
	receipt queue.EnqueueReceipt
	err     error
	calls   int
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	s.calls++
	if s.err != nil {
		return queue.EnqueueReceipt{}, s.err
	}
	s.last = msg
	return s.receipt, nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	attempts int
	acked    bool
	nacks    int
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage { return s.msg }

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacks++
	s.nackOpts = opts
	return nil
}

// countingQueueDelivery reports a backend attempt count.
type countingQueueDelivery struct {
	*stubQueueDelivery
}

func (d countingQueueDelivery) Attempts() int { return d.attempts }
