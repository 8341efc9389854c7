package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/repository"
	"bandonotifier/pkg/metric"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	_defaultDrainBatch = 10
	_maxDrainBatch     = 100
)

type (
	// QueueStore is the persisted email queue.
	QueueStore interface {
		Enqueue(ctx context.Context, qe repository.QueryExecuter, row entity.EmailQueueRow) (*entity.EmailQueueRow, error)
		GetForDrain(ctx context.Context, qe repository.QueryExecuter, limit uint64, now time.Time) ([]entity.EmailQueueRow, error)
		MarkSent(ctx context.Context, qe repository.QueryExecuter, id uuid.UUID, sentAt time.Time) error
		MarkFailed(ctx context.Context, qe repository.QueryExecuter, id uuid.UUID, sendErr string) error
	}

	// RecipientStore lists the always-notified extra addresses.
	RecipientStore interface {
		ListActive(ctx context.Context, qe repository.QueryExecuter) ([]entity.AdditionalRecipient, error)
	}

	// MailSender is the outbound transport collaborator. Failures are
	// reported per message and captured on the queue row.
	MailSender interface {
		Send(ctx context.Context, to, subject, htmlBody string) error
	}

	// TxManager scopes a batch of repository calls to one transaction.
	TxManager interface {
		WithinTx(ctx context.Context, fn func(qe repository.QueryExecuter) error) error
	}

	// EmailService renders alert content and owns the persisted queue.
	EmailService struct {
		queue      QueueStore
		recipients RecipientStore
		sender     MailSender
		tm         TxManager
		log        *zap.SugaredLogger
		metrics    *metric.Metrics
		now        func() time.Time
	}

	// DrainStats summarizes one queue drain.
	DrainStats struct {
		Sent     int
		Failed   int
		Duration time.Duration
	}
)

func NewEmailService(queue QueueStore, recipients RecipientStore, sender MailSender, tm TxManager, log *zap.SugaredLogger, opts ...EmailOption) *EmailService {
	s := &EmailService{
		queue:      queue,
		recipients: recipients,
		sender:     sender,
		tm:         tm,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveRecipients returns the deduplicated union of the deadline's
// responsible party and the active additional recipients. The responsible
// party, when present, comes first.
func (s *EmailService) ResolveRecipients(ctx context.Context, d entity.Deadline) ([]string, error) {
	const op = "service.EmailService.ResolveRecipients"

	extra, err := s.recipients.ListActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[string]struct{}, len(extra)+1)
	var out []string
	if d.ResponsibleEmail != "" {
		seen[d.ResponsibleEmail] = struct{}{}
		out = append(out, d.ResponsibleEmail)
	}
	for _, r := range extra {
		if _, ok := seen[r.Email]; ok {
			continue
		}
		seen[r.Email] = struct{}{}
		out = append(out, r.Email)
	}

	return out, nil
}

// PriorityForDays maps days-remaining to a queue priority: one day or less
// (overdue included) is high, three days or less normal, anything further low.
func PriorityForDays(daysLeft int) entity.EmailPriority {
	switch {
	case daysLeft <= 1:
		return entity.EmailPriorityHigh
	case daysLeft <= 3:
		return entity.EmailPriorityNormal
	default:
		return entity.EmailPriorityLow
	}
}

// EnqueueDeadlineAlert writes one pending row per resolved recipient and
// returns how many rows were created.
func (s *EmailService) EnqueueDeadlineAlert(ctx context.Context, d entity.Deadline, daysLeft int, typ entity.NotificationType) (int, error) {
	const op = "service.EmailService.EnqueueDeadlineAlert"

	recipients, err := s.ResolveRecipients(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	subject := alertSubject(d, daysLeft)
	body := alertBody(d, daysLeft)
	priority := PriorityForDays(daysLeft)
	now := s.now().UTC()
	entityID := d.ID

	enqueued := 0
	for _, to := range recipients {
		_, err := s.queue.Enqueue(ctx, nil, entity.EmailQueueRow{
			Recipient:   to,
			Subject:     subject,
			Body:        body,
			Type:        typ,
			Priority:    priority,
			ScheduledAt: now,
			EntityID:    &entityID,
		})
		if err != nil {
			return enqueued, fmt.Errorf("%s: enqueue for %s: %w", op, to, err)
		}
		enqueued++
	}

	if s.metrics != nil {
		s.metrics.AlertsEnqueued.Add(float64(enqueued))
	}
	s.log.Infow("deadline alert enqueued",
		"deadline_id", d.ID, "type", typ, "priority", priority.String(), "recipients", enqueued)

	return enqueued, nil
}

// EnqueueDigest writes the weekly digest, addressed only to the additional
// recipients; responsible parties already receive individual alerts.
func (s *EmailService) EnqueueDigest(ctx context.Context, deadlines []entity.Deadline) (int, error) {
	const op = "service.EmailService.EnqueueDigest"

	extra, err := s.recipients.ListActive(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(extra) == 0 || len(deadlines) == 0 {
		return 0, nil
	}

	sort.SliceStable(deadlines, func(i, j int) bool {
		return deadlines[i].DueDate.Before(deadlines[j].DueDate)
	})

	subject := digestSubject(len(deadlines))
	body := digestBody(deadlines)
	now := s.now().UTC()

	enqueued := 0
	for _, r := range extra {
		_, err := s.queue.Enqueue(ctx, nil, entity.EmailQueueRow{
			Recipient:   r.Email,
			Subject:     subject,
			Body:        body,
			Type:        entity.TypeWeeklyDigest,
			Priority:    entity.EmailPriorityLow,
			ScheduledAt: now,
		})
		if err != nil {
			return enqueued, fmt.Errorf("%s: enqueue for %s: %w", op, r.Email, err)
		}
		enqueued++
	}

	if s.metrics != nil {
		s.metrics.DigestsSent.Add(float64(enqueued))
	}

	return enqueued, nil
}

// EnqueueProjectAssigned writes the assignment notice for a single user.
func (s *EmailService) EnqueueProjectAssigned(ctx context.Context, projectID uuid.UUID, userEmail, projectTitle string, deadlines []entity.Deadline) error {
	const op = "service.EmailService.EnqueueProjectAssigned"

	pid := projectID
	_, err := s.queue.Enqueue(ctx, nil, entity.EmailQueueRow{
		Recipient:   userEmail,
		Subject:     assignmentSubject(projectTitle),
		Body:        assignmentBody(projectTitle, deadlines),
		Type:        entity.TypeProjectAssigned,
		Priority:    entity.EmailPriorityNormal,
		ScheduledAt: s.now().UTC(),
		EntityID:    &pid,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DrainQueue sends up to batchSize due pending rows in priority order,
// oldest first within a tier. The select and the status updates share one
// transaction so the SKIP LOCKED claim holds until the batch is finalized;
// a drain running beside this one skips the claimed rows instead of
// re-sending them. Rows are processed sequentially; a transport failure
// marks that row failed and the batch continues.
func (s *EmailService) DrainQueue(ctx context.Context, batchSize int) (*DrainStats, error) {
	const op = "service.EmailService.DrainQueue"

	start := s.now()
	stats := &DrainStats{}

	if batchSize <= 0 {
		batchSize = _defaultDrainBatch
	}
	if batchSize > _maxDrainBatch {
		batchSize = _maxDrainBatch
	}

	err := s.tm.WithinTx(ctx, func(tx repository.QueryExecuter) error {
		rows, err := s.queue.GetForDrain(ctx, tx, uint64(batchSize), start)
		if err != nil {
			return err
		}

		for _, row := range rows {
			sendErr := s.sender.Send(ctx, row.Recipient, row.Subject, row.Body)
			if sendErr != nil {
				stats.Failed++
				if s.metrics != nil {
					s.metrics.EmailsFailed.Inc()
				}
				s.log.Errorw("email send failed",
					"row_id", row.ID, "recipient", row.Recipient, "error", sendErr)
				if err := s.queue.MarkFailed(ctx, tx, row.ID, sendErr.Error()); err != nil {
					s.log.Errorw("mark failed", "row_id", row.ID, "error", err)
				}
				continue
			}

			stats.Sent++
			if s.metrics != nil {
				s.metrics.EmailsSent.Inc()
			}
			if err := s.queue.MarkSent(ctx, tx, row.ID, s.now()); err != nil {
				s.log.Errorw("mark sent", "row_id", row.ID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("%s: %w", op, err)
	}

	stats.Duration = s.now().Sub(start)
	if stats.Sent+stats.Failed > 0 {
		s.log.Infow("queue drained", "sent", stats.Sent, "failed", stats.Failed, "duration", stats.Duration)
	}

	return stats, nil
}
