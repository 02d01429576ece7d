// Package workers executes queued jobs by turning them into invocation events.
package workers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/jotjot/internal/invocation"
	"github.com/benvon/jotjot/internal/queue"
	"go.uber.org/zap"
)

const defaultRetryDelay = time.Minute

// EventDispatcher runs a direct invocation event
type EventDispatcher interface {
	Dispatch(ctx context.Context, event invocation.Event) invocation.Response
}

// Processor processes report and maintenance jobs
type Processor struct {
	dispatcher EventDispatcher
	jobQueue   queue.JobQueue // For re-enqueueing jobs with delays
	logger     *zap.Logger
	retryDelay time.Duration
	now        func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

// WithRetryDelay sets the base delay before a failed job is retried
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) { p.retryDelay = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a processor. jobQueue may be nil, in which case failed
// jobs are dead-lettered instead of retried.
func NewProcessor(dispatcher EventDispatcher, jobQueue queue.JobQueue, log *zap.Logger, opts ...Option) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Processor{
		dispatcher: dispatcher,
		jobQueue:   jobQueue,
		logger:     log,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// JobEvent converts a job into the event the invocation router understands
func JobEvent(job *queue.Job) (invocation.Event, error) {
	switch job.Type {
	case queue.JobTypeDailyReport:
		return invocation.Event{DailyReport: true, DryRun: job.DryRun, Date: job.Date}, nil
	case queue.JobTypeDailyMaintenance:
		return invocation.Event{
			DailyMaintenance:    true,
			DynamoDBTableNames:  job.Tables,
			LambdaFunctionNames: job.Functions,
			TargetEmail:         job.TargetEmail,
			UserID:              job.UserID,
		}, nil
	case queue.JobTypeTestUserEmailReport:
		return invocation.Event{TestUserIDEmailReport: true, UserID: job.UserID, Date: job.Date}, nil
	default:
		return invocation.Event{}, fmt.Errorf("%w: %s", queue.ErrUnknownJobType, job.Type)
	}
}

// ProcessJob runs one job and settles its message: ack on success, dead-letter
// on a rejected event, retry with backoff on a server-side failure.
func (p *Processor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("retry_count", job.RetryCount),
	}

	if job.IsExpired(p.now()) {
		p.logger.Warn("job_expired", fields...)
		if nackErr := msg.Nack(false); nackErr != nil {
			return fmt.Errorf("failed to drop expired job: %w", nackErr)
		}
		return nil
	}

	if !job.ShouldProcess(p.now()) {
		p.logger.Debug("job_not_ready", fields...)
		if nackErr := msg.Nack(true); nackErr != nil {
			return fmt.Errorf("failed to requeue early job: %w", nackErr)
		}
		return nil
	}

	event, err := JobEvent(job)
	if err != nil {
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			p.logger.Warn("job_nack_failed", append(fields, zap.Error(nackErr))...)
		}
		return err
	}

	start := p.now()
	resp := p.dispatcher.Dispatch(ctx, event)
	fields = append(fields,
		zap.Int("status_code", resp.StatusCode),
		zap.Int64("duration_ms", p.now().Sub(start).Milliseconds()),
	)

	switch {
	case resp.StatusCode < http.StatusBadRequest:
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		p.logger.Info("job_completed", append(fields, zap.String("body", resp.Body))...)
		return nil

	case resp.StatusCode < http.StatusInternalServerError:
		p.logger.Warn("job_rejected", append(fields, zap.String("body", resp.Body))...)
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("job_nack_failed", append(fields, zap.Error(nackErr))...)
		}
		return fmt.Errorf("job %s rejected: %s", job.ID, resp.Body)

	default:
		return p.retry(ctx, msg, job, resp, fields)
	}
}

// retry re-enqueues a failed job with exponential backoff, or dead-letters it
// once retries are exhausted
func (p *Processor) retry(ctx context.Context, msg queue.MessageInterface, job *queue.Job, resp invocation.Response, fields []zap.Field) error {
	cause := fmt.Errorf("job %s failed: %s", job.ID, resp.Body)

	if !job.CanRetry() {
		p.logger.Error("job_failed_max_retries", fields...)
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("job_nack_failed", append(fields, zap.Error(nackErr))...)
		}
		return fmt.Errorf("job failed (max retries): %w", cause)
	}

	// A redelivered message carries its original retry count, so retrying
	// needs a queue to publish the incremented job to
	if p.jobQueue == nil {
		p.logger.Error("job_retry_unavailable", fields...)
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("job_nack_failed", append(fields, zap.Error(nackErr))...)
		}
		return fmt.Errorf("job failed (no queue to retry on): %w", cause)
	}

	delay := p.retryDelay << job.RetryCount
	notBefore := p.now().Add(delay)
	delayed := *job
	delayed.NotBefore = &notBefore
	delayed.IncrementRetry()

	if enqueueErr := p.jobQueue.Enqueue(ctx, &delayed); enqueueErr != nil {
		p.logger.Error("job_reenqueue_failed", append(fields, zap.Error(enqueueErr))...)
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Warn("job_nack_failed", append(fields, zap.Error(nackErr))...)
		}
		return fmt.Errorf("failed to re-enqueue: %w", enqueueErr)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Warn("job_ack_failed", append(fields, zap.Error(ackErr))...)
	}
	p.logger.Warn("job_retry_scheduled", append(fields,
		zap.Time("not_before", notBefore),
		zap.Duration("delay", delay),
	)...)
	return nil
}

// Run processes messages until ctx is cancelled or the message channel closes
func (p *Processor) Run(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				p.logger.Info("message_channel_closed")
				return
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				p.logger.Error("job_processing_failed",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}
