package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CredentialStore is a durable single-slot store for the cached access
// credential. It holds no expiry logic.
type CredentialStore interface {
	Save(ctx context.Context, credential Credential) error
	Load(ctx context.Context) (Credential, error)
}

// TokenGrant is the raw result of a successful token endpoint call.
type TokenGrant struct {
	AccessToken string
	ExpiresIn   time.Duration
}

type TokenFetcher interface {
	FetchToken(ctx context.Context) (TokenGrant, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// CredentialProvider is the read side of the Manager used by outbound callers.
type CredentialProvider interface {
	GetValidCredential(ctx context.Context) (Credential, error)
}

type CredentialRefresher interface {
	Refresh(ctx context.Context) (Credential, error)
	Invalidate()
}

// InboundRequest is a transport-neutral view of one webhook call.
type InboundRequest struct {
	Method   string
	Query    map[string]string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

// InboundResult is always rendered with StatusCode; Body may be empty.
type InboundResult struct {
	Accepted    bool
	StatusCode  int
	ContentType string
	Body        []byte
	Metadata    map[string]any
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration

	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

// JobNackDisposition says what the queue does with a nacked job.
type JobNackDisposition string

const (
	JobNackRetry      JobNackDisposition = "retry"
	JobNackDeadLetter JobNackDisposition = "dead_letter"
	JobNackFailed     JobNackDisposition = "failed"
	JobNackCanceled   JobNackDisposition = "canceled"
)

type JobNackOptions struct {
	Disposition JobNackDisposition
	Delay       time.Duration
	Reason      string
}

// Terminal reports whether the job leaves the queue for good.
func (o JobNackOptions) Terminal() bool {
	return o.Disposition != JobNackRetry
}

type JobEnqueueReceipt struct {
	DispatchID string
	EnqueuedAt time.Time
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) (JobEnqueueReceipt, error)
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}
