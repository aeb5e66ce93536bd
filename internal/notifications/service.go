package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/queue"
)

// Service records decision notifications and hands them to the worker queue.
// Delivery is asynchronous; failures here are logged, never surfaced to the
// request that triggered them.
type Service struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewService creates a notification service.
func NewService(repo *Repository, q *queue.Queue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, queue: q, logger: logger}
}

func decisionSubject(status models.PaperStatus) string {
	return fmt.Sprintf("Decision on your submission: %s", status)
}

func decisionBody(title string, status models.PaperStatus) string {
	return fmt.Sprintf("The status of your paper %q has changed to %s.", title, status)
}

// QueueDecision logs a decision email for the paper's main author and
// enqueues the delivery job.
func (s *Service) QueueDecision(ctx context.Context, eventID, paperID uuid.UUID, email, title string, status models.PaperStatus) error {
	log := &models.NotificationLog{
		EventID:        eventID,
		PaperID:        &paperID,
		RecipientEmail: email,
		Kind:           models.NotificationKindDecision,
		Subject:        decisionSubject(status),
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	if s.queue == nil {
		return nil
	}
	err := s.queue.EnqueueDecisionEmail(ctx, queue.DecisionEmailPayload{
		NotificationID: log.ID,
		PaperID:        paperID,
		RecipientEmail: email,
		Subject:        log.Subject,
		Body:           decisionBody(title, status),
	})
	if err != nil {
		s.logger.Error("enqueue decision email failed",
			zap.Error(err), zap.String("paper_id", paperID.String()))
		if mErr := s.repo.MarkFailed(ctx, log.ID, err.Error()); mErr != nil {
			s.logger.Error("mark notification failed", zap.Error(mErr))
		}
		return err
	}
	return nil
}
