package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crh-church/backend/internal/mailer"
	"github.com/crh-church/backend/pkg/queue"
)

// InviteProcessor delivers meeting invitation emails from the job queue.
type InviteProcessor struct {
	mail   mailer.Mailer
	queue  *queue.Queue
	logger *zap.Logger
}

// NewInviteProcessor creates an invitation email processor.
func NewInviteProcessor(mail mailer.Mailer, q *queue.Queue, logger *zap.Logger) *InviteProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InviteProcessor{mail: mail, queue: q, logger: logger}
}

// Process executes one invitation email job.
func (p *InviteProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeInviteEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.InvitePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	subject := fmt.Sprintf("You're invited: %s", payload.MeetingTitle)
	body := fmt.Sprintf(
		"You have been invited to \"%s\".\r\n\r\nStarts: %s\r\n\r\nJoin here: %s\r\n\r\nChrist's Reformation House",
		payload.MeetingTitle,
		payload.StartTime.Format("Monday, 2 January 2006 at 15:04 MST"),
		payload.JoinLink,
	)

	if err := p.mail.Send(ctx, payload.RecipientEmail, subject, body); err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	p.logger.Info("invite email sent",
		zap.Int64("meeting_id", payload.MeetingID),
		zap.String("recipient", payload.RecipientEmail),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *InviteProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("invite worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("invite worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
