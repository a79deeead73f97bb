package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flabbergg-dev/mech-panic-button-sub001/adapters/gologger"
	"github.com/flabbergg-dev/mech-panic-button-sub001/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDOutboxDispatch = "dispatch.outbox.dispatch"
	JobIDOfferSweep     = "dispatch.offers.sweep"
)

const paramBatchSize = "batch_size"

const workerLoggerName = "dispatch.jobs"

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// Normalize enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) Normalize(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewOutboxDispatchMessage builds the tick message that asks a worker to
// drain one batch of pending lifecycle events.
func NewOutboxDispatchMessage(batchSize int, idempotencyKey string) *job.ExecutionMessage {
	parameters := map[string]any{}
	if batchSize > 0 {
		parameters[paramBatchSize] = batchSize
	}
	return &job.ExecutionMessage{
		JobID:          JobIDOutboxDispatch,
		Parameters:     parameters,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

// NewOfferSweepMessage builds the tick message that expires stale offers.
func NewOfferSweepMessage(idempotencyKey string) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDOfferSweep,
		Parameters:     map[string]any{},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

// OutboxRunner is the slice of the dispatch core the outbox job needs;
// *core.OutboxDispatcher satisfies it.
type OutboxRunner interface {
	DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// OfferSweepRunner is the slice of the dispatch core the sweep job needs;
// *core.OfferSweeper satisfies it.
type OfferSweepRunner interface {
	SweepOnce(ctx context.Context) (int, error)
}

type TickEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewTickEnqueuer(enqueuer queue.Enqueuer) *TickEnqueuer {
	return &TickEnqueuer{enqueuer: enqueuer}
}

func (e *TickEnqueuer) EnqueueOutboxDispatch(ctx context.Context, batchSize int, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, NewOutboxDispatchMessage(batchSize, idempotencyKey))
}

func (e *TickEnqueuer) EnqueueOfferSweep(ctx context.Context, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, NewOfferSweepMessage(idempotencyKey))
}

// Runner routes dequeued job deliveries to the dispatch background workers.
// Successful runs ack the delivery; failures nack it under the retry policy.
type Runner struct {
	outbox  OutboxRunner
	sweeper OfferSweepRunner
	policy  RetryPolicy
	logger  job.Logger
}

func NewRunner(outbox OutboxRunner, sweeper OfferSweepRunner, policy RetryPolicy) *Runner {
	return NewRunnerWithLogger(outbox, sweeper, policy, nil, nil)
}

// NewRunnerWithLogger resolves the worker logger through the dispatch go-job
// logging bridge; the provider wins over the bare logger and a nop logger
// backstops both being nil.
func NewRunnerWithLogger(
	outbox OutboxRunner,
	sweeper OfferSweepRunner,
	policy RetryPolicy,
	provider glog.LoggerProvider,
	logger glog.Logger,
) *Runner {
	_, _, _, jobLogger := gologger.ResolveForJob(workerLoggerName, provider, logger)
	return &Runner{outbox: outbox, sweeper: sweeper, policy: policy, logger: jobLogger}
}

func (r *Runner) Handle(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if r == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil {
		r.log().Error("dropping delivery without execution message", "attempt", attempt)
		return delivery.Nack(ctx, r.policy.Normalize(queue.NackOptions{
			Reason:     "missing execution message",
			DeadLetter: true,
		}, attempt))
	}

	if err := r.run(ctx, msg); err != nil {
		r.log().Error("job run failed",
			"job_id", msg.JobID,
			"attempt", attempt,
			"error", err,
		)
		nackErr := delivery.Nack(ctx, r.policy.Normalize(queue.NackOptions{
			Delay:   time.Second,
			Requeue: true,
			Reason:  err.Error(),
		}, attempt))
		if nackErr != nil {
			return fmt.Errorf("gojob: nack %s after %v: %w", msg.JobID, err, nackErr)
		}
		return err
	}
	return delivery.Ack(ctx)
}

func (r *Runner) run(ctx context.Context, msg *job.ExecutionMessage) error {
	switch strings.TrimSpace(msg.JobID) {
	case JobIDOutboxDispatch:
		if r.outbox == nil {
			return fmt.Errorf("gojob: outbox runner is not configured")
		}
		_, err := r.outbox.DispatchPending(ctx, intParameter(msg.Parameters, paramBatchSize))
		return err
	case JobIDOfferSweep:
		if r.sweeper == nil {
			return fmt.Errorf("gojob: offer sweep runner is not configured")
		}
		_, err := r.sweeper.SweepOnce(ctx)
		return err
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

func (r *Runner) log() job.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return gologger.ToJobLogger(glog.Nop())
}

// Consume drains deliveries until the context ends or dequeue fails.
func (r *Runner) Consume(ctx context.Context, dequeuer queue.Dequeuer) error {
	if r == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	attempts := map[string]int{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := dequeuer.Dequeue(ctx)
		if err != nil {
			return err
		}
		key := deliveryKey(delivery)
		attempts[key]++
		if err := r.Handle(ctx, delivery, attempts[key]); err == nil {
			delete(attempts, key)
		}
	}
}

// MetricsHook records worker lifecycle events through the dispatch metrics
// contract so queue health shows up next to the service counters.
type MetricsHook struct {
	metrics core.MetricsRecorder
}

func NewMetricsHook(metrics core.MetricsRecorder) *MetricsHook {
	return &MetricsHook{metrics: metrics}
}

func (h *MetricsHook) OnStart(ctx context.Context, event worker.Event) {
	h.count(ctx, "dispatch.jobs.started", event)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.count(ctx, "dispatch.jobs.succeeded", event)
	if h != nil && h.metrics != nil && event.Duration > 0 {
		h.metrics.ObserveHistogram(ctx, "dispatch.jobs.duration_ms", float64(event.Duration.Milliseconds()), eventTags(event))
	}
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.count(ctx, "dispatch.jobs.failed", event)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.count(ctx, "dispatch.jobs.retried", event)
}

func (h *MetricsHook) count(ctx context.Context, name string, event worker.Event) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncCounter(ctx, name, 1, eventTags(event))
}

func eventTags(event worker.Event) map[string]string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := ""
	if message != nil {
		jobID = strings.TrimSpace(message.JobID)
	}
	return map[string]string{"job_id": jobID}
}

func intParameter(parameters map[string]any, key string) int {
	if len(parameters) == 0 {
		return 0
	}
	switch value := parameters[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

func deliveryKey(delivery queue.Delivery) string {
	msg := delivery.Message()
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

var (
	_ worker.Hook      = (*MetricsHook)(nil)
	_ OutboxRunner     = (*core.OutboxDispatcher)(nil)
	_ OfferSweepRunner = (*core.OfferSweeper)(nil)
)
