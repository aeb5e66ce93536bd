package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/confera/backend/internal/notifications"
	"github.com/confera/backend/pkg/queue"
)

// Processor consumes decision email jobs from the Redis queue, delivers them
// and records the outcome on the notification log.
type Processor struct {
	queue  *queue.Queue
	repo   *notifications.Repository
	sender Sender
	logger *zap.Logger
}

// NewProcessor creates a notification job processor.
func NewProcessor(q *queue.Queue, repo *notifications.Repository, sender Sender, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{queue: q, repo: repo, sender: sender, logger: logger}
}

// Run consumes jobs until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("notification worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopped")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("notification worker stopped")
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.process(ctx, job); err != nil {
			p.logger.Error("job failed",
				zap.Error(err), zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
			if rErr := p.queue.Retry(ctx, job); rErr != nil {
				p.logger.Error("retry failed", zap.Error(rErr), zap.String("job_id", job.ID))
			}
		}
	}
}

func (p *Processor) process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeDecisionEmail {
		p.logger.Warn("unknown job type", zap.String("type", string(job.Type)), zap.String("job_id", job.ID))
		return nil
	}
	var payload queue.DecisionEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Warn("invalid job payload", zap.Error(err), zap.String("job_id", job.ID))
		return nil
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.Body); err != nil {
		if mErr := p.repo.MarkFailed(ctx, payload.NotificationID, err.Error()); mErr != nil {
			p.logger.Error("mark failed errored", zap.Error(mErr), zap.String("job_id", job.ID))
		}
		return fmt.Errorf("send decision email: %w", err)
	}
	if err := p.repo.MarkSent(ctx, payload.NotificationID); err != nil {
		p.logger.Error("mark sent errored", zap.Error(err), zap.String("job_id", job.ID))
	}
	p.logger.Info("decision email sent",
		zap.String("recipient", payload.RecipientEmail), zap.String("paper_id", payload.PaperID.String()))
	return nil
}
