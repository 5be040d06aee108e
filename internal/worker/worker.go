package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/notify"
	"github.com/wiktoriasw/Invitations/pkg/metrics"
	"github.com/wiktoriasw/Invitations/pkg/queue"
)

// ErrPermanent marks a job that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// JobQueue is the part of the Redis queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (dead bool, err error)
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// EmailProcessor processes email jobs: decode the payload and send it over SMTP.
type EmailProcessor struct {
	queue   JobQueue
	sender  Sender
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(q JobQueue, sender Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, sender: sender, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("%w: unknown job type %q", ErrPermanent, job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", ErrPermanent, err)
	}
	if payload.RecipientEmail == "" {
		return fmt.Errorf("%w: empty recipient", ErrPermanent)
	}

	err := p.sender.Send(ctx, notify.Message{
		To:       payload.RecipientEmail,
		Subject:  payload.Subject,
		HTMLBody: payload.BodyHTML,
	})
	if err != nil {
		return err
	}
	p.logger.Info("email job completed", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType))
	return nil
}

// Handle processes a job and records its outcome, re-enqueueing transient failures.
func (p *EmailProcessor) Handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	switch {
	case err == nil:
		metrics.EmailJobsTotal.WithLabelValues("sent").Inc()
		return
	case errors.Is(err, ErrPermanent):
		p.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		metrics.EmailJobsTotal.WithLabelValues("invalid").Inc()
		return
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	dead, reErr := p.queue.Retry(ctx, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
		metrics.EmailJobsTotal.WithLabelValues("lost").Inc()
		return
	}
	if dead {
		metrics.EmailJobsTotal.WithLabelValues("dead_lettered").Inc()
	} else {
		metrics.EmailJobsTotal.WithLabelValues("retried").Inc()
	}
	p.sleep(ctx)
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.Handle(ctx, job)
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
