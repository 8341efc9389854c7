package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// txExecuter is a distinguishable QueryExecuter handed out by fakeTxManager,
// so tests can verify every queue call ran on the transaction.
type txExecuter struct{}

func (*txExecuter) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (*txExecuter) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (*txExecuter) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

type fakeTxManager struct {
	tx    *txExecuter
	calls int
}

func (m *fakeTxManager) WithinTx(_ context.Context, fn func(qe repository.QueryExecuter) error) error {
	m.calls++
	return fn(m.tx)
}

type memQueue struct {
	rows  []entity.EmailQueueRow
	seq   int
	sawQE []repository.QueryExecuter
}

func (q *memQueue) Enqueue(_ context.Context, _ repository.QueryExecuter, row entity.EmailQueueRow) (*entity.EmailQueueRow, error) {
	row.ID = uuid.New()
	row.Status = entity.EmailStatusPending
	q.seq++
	row.CreatedAt = time.Unix(int64(q.seq), 0).UTC()
	q.rows = append(q.rows, row)
	return &row, nil
}

func (q *memQueue) GetForDrain(_ context.Context, qe repository.QueryExecuter, limit uint64, _ time.Time) ([]entity.EmailQueueRow, error) {
	q.sawQE = append(q.sawQE, qe)
	var pending []entity.EmailQueueRow
	for _, r := range q.rows {
		if r.Status == entity.EmailStatusPending {
			pending = append(pending, r)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if uint64(len(pending)) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (q *memQueue) MarkSent(_ context.Context, qe repository.QueryExecuter, id uuid.UUID, sentAt time.Time) error {
	q.sawQE = append(q.sawQE, qe)
	return q.setStatus(id, entity.EmailStatusSent, "")
}

func (q *memQueue) MarkFailed(_ context.Context, qe repository.QueryExecuter, id uuid.UUID, sendErr string) error {
	q.sawQE = append(q.sawQE, qe)
	return q.setStatus(id, entity.EmailStatusFailed, sendErr)
}

func (q *memQueue) setStatus(id uuid.UUID, status entity.EmailStatus, lastError string) error {
	for i := range q.rows {
		if q.rows[i].ID == id && q.rows[i].Status == entity.EmailStatusPending {
			q.rows[i].Status = status
			q.rows[i].LastError = lastError
			if status == entity.EmailStatusFailed {
				q.rows[i].RetryCount++
			}
			return nil
		}
	}
	return entity.ErrDataNotFound
}

func (q *memQueue) byStatus(status entity.EmailStatus) []entity.EmailQueueRow {
	var out []entity.EmailQueueRow
	for _, r := range q.rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

type fakeRecipients struct {
	extra []entity.AdditionalRecipient
}

func (f *fakeRecipients) ListActive(context.Context, repository.QueryExecuter) ([]entity.AdditionalRecipient, error) {
	return f.extra, nil
}

type fakeSender struct {
	sent    []string
	failFor map[string]error
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) error {
	if err, ok := f.failFor[to]; ok {
		return err
	}
	f.sent = append(f.sent, to)
	return nil
}

func newEmailFixture(extra ...string) (*EmailService, *memQueue, *fakeSender) {
	queue := &memQueue{}
	recipients := &fakeRecipients{}
	for _, e := range extra {
		recipients.extra = append(recipients.extra, entity.AdditionalRecipient{Email: e, Active: true})
	}
	snd := &fakeSender{failFor: make(map[string]error)}
	tm := &fakeTxManager{tx: &txExecuter{}}
	svc := NewEmailService(queue, recipients, snd, tm, zap.NewNop().Sugar())
	return svc, queue, snd
}

func TestPriorityForDays(t *testing.T) {
	tests := []struct {
		daysLeft int
		want     entity.EmailPriority
	}{
		{-5, entity.EmailPriorityHigh},
		{0, entity.EmailPriorityHigh},
		{1, entity.EmailPriorityHigh},
		{2, entity.EmailPriorityNormal},
		{3, entity.EmailPriorityNormal},
		{4, entity.EmailPriorityLow},
		{15, entity.EmailPriorityLow},
	}
	for _, tt := range tests {
		if got := PriorityForDays(tt.daysLeft); got != tt.want {
			t.Errorf("PriorityForDays(%d) = %s, want %s", tt.daysLeft, got, tt.want)
		}
	}
}

func TestResolveRecipientsDedup(t *testing.T) {
	svc, _, _ := newEmailFixture("mario@example.com", "direzione@example.com")

	d := entity.Deadline{ResponsibleEmail: "mario@example.com"}
	got, err := svc.ResolveRecipients(context.Background(), d)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"mario@example.com", "direzione@example.com"}
	if len(got) != len(want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recipients[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolveRecipientsNoResponsible(t *testing.T) {
	svc, _, _ := newEmailFixture("direzione@example.com")

	got, err := svc.ResolveRecipients(context.Background(), entity.Deadline{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != "direzione@example.com" {
		t.Errorf("recipients = %v, want only the additional address", got)
	}
}

func TestEnqueueDeadlineAlertRowPerRecipient(t *testing.T) {
	svc, queue, _ := newEmailFixture("direzione@example.com")

	d := entity.Deadline{
		ID:               uuid.New(),
		Title:            "Domanda di contributo",
		DueDate:          time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		Priority:         entity.PriorityHigh,
		ResponsibleEmail: "mario@example.com",
	}

	n, err := svc.EnqueueDeadlineAlert(context.Background(), d, 3, entity.ThresholdType(3))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n != 2 || len(queue.rows) != 2 {
		t.Fatalf("enqueued %d rows, want 2", len(queue.rows))
	}
	for _, row := range queue.rows {
		if row.Priority != entity.EmailPriorityNormal {
			t.Errorf("row priority = %s, want normal for 3 days left", row.Priority)
		}
		if row.EntityID == nil || *row.EntityID != d.ID {
			t.Errorf("row entity_id = %v, want %s", row.EntityID, d.ID)
		}
		if row.Type != entity.ThresholdType(3) {
			t.Errorf("row type = %s, want %s", row.Type, entity.ThresholdType(3))
		}
	}
}

func TestDrainQueuePriorityOrder(t *testing.T) {
	svc, queue, snd := newEmailFixture()

	for _, m := range []struct {
		to       string
		priority entity.EmailPriority
	}{
		{"low@example.com", entity.EmailPriorityLow},
		{"high@example.com", entity.EmailPriorityHigh},
		{"normal@example.com", entity.EmailPriorityNormal},
	} {
		if _, err := queue.Enqueue(context.Background(), nil, entity.EmailQueueRow{
			Recipient:   m.to,
			Subject:     "s",
			Body:        "b",
			Priority:    m.priority,
			ScheduledAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	stats, err := svc.DrainQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Sent != 3 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 3 sent", stats)
	}
	want := []string{"high@example.com", "normal@example.com", "low@example.com"}
	for i := range want {
		if snd.sent[i] != want[i] {
			t.Errorf("send order[%d] = %s, want %s", i, snd.sent[i], want[i])
		}
	}
}

func TestDrainQueueContinuesOnFailure(t *testing.T) {
	svc, queue, snd := newEmailFixture()
	snd.failFor["broken@example.com"] = errors.New("connection refused")

	for _, to := range []string{"a@example.com", "broken@example.com", "b@example.com"} {
		if _, err := queue.Enqueue(context.Background(), nil, entity.EmailQueueRow{
			Recipient:   to,
			Subject:     "s",
			Body:        "b",
			ScheduledAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	stats, err := svc.DrainQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Sent != 2 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want Sent=2 Failed=1", stats)
	}

	failed := queue.byStatus(entity.EmailStatusFailed)
	if len(failed) != 1 {
		t.Fatalf("failed rows = %d, want 1", len(failed))
	}
	if failed[0].Recipient != "broken@example.com" {
		t.Errorf("failed recipient = %s", failed[0].Recipient)
	}
	if failed[0].LastError == "" || failed[0].RetryCount != 1 {
		t.Errorf("failed row = %+v, want last_error set and retry_count 1", failed[0])
	}
	if len(queue.byStatus(entity.EmailStatusSent)) != 2 {
		t.Errorf("sent rows = %d, want 2", len(queue.byStatus(entity.EmailStatusSent)))
	}
}

func TestDrainQueueBatchLimit(t *testing.T) {
	svc, queue, _ := newEmailFixture()

	for i := 0; i < 5; i++ {
		if _, err := queue.Enqueue(context.Background(), nil, entity.EmailQueueRow{
			Recipient:   "a@example.com",
			Subject:     "s",
			Body:        "b",
			ScheduledAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	stats, err := svc.DrainQueue(context.Background(), 2)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Sent != 2 {
		t.Errorf("sent = %d, want batch of 2", stats.Sent)
	}
	if got := len(queue.byStatus(entity.EmailStatusPending)); got != 3 {
		t.Errorf("pending after drain = %d, want 3", got)
	}
}

func TestDrainQueueSingleTransaction(t *testing.T) {
	queue := &memQueue{}
	snd := &fakeSender{failFor: map[string]error{"broken@example.com": errors.New("connection refused")}}
	tm := &fakeTxManager{tx: &txExecuter{}}
	svc := NewEmailService(queue, &fakeRecipients{}, snd, tm, zap.NewNop().Sugar())

	for _, to := range []string{"a@example.com", "broken@example.com"} {
		if _, err := queue.Enqueue(context.Background(), nil, entity.EmailQueueRow{
			Recipient:   to,
			Subject:     "s",
			Body:        "b",
			ScheduledAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	stats, err := svc.DrainQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Sent != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want Sent=1 Failed=1", stats)
	}

	if tm.calls != 1 {
		t.Errorf("transactions = %d, want the whole batch in one", tm.calls)
	}
	// Select plus one status update per row. All three must run on the tx
	// executor: a select outside the transaction releases the SKIP LOCKED
	// claim at statement end and a concurrent drain re-sends the rows.
	if len(queue.sawQE) != 3 {
		t.Fatalf("queue calls = %d, want 3", len(queue.sawQE))
	}
	for i, qe := range queue.sawQE {
		if qe != repository.QueryExecuter(tm.tx) {
			t.Errorf("queue call %d ran outside the drain transaction", i)
		}
	}
}

func TestEnqueueDigestNoRecipients(t *testing.T) {
	svc, queue, _ := newEmailFixture()

	n, err := svc.EnqueueDigest(context.Background(), []entity.Deadline{{Title: "x"}})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if n != 0 || len(queue.rows) != 0 {
		t.Errorf("enqueued %d digest rows with no recipients, want 0", len(queue.rows))
	}
}

func TestEnqueueDigestLowPriority(t *testing.T) {
	svc, queue, _ := newEmailFixture("direzione@example.com", "controllo@example.com")

	deadlines := []entity.Deadline{
		{Title: "B", DueDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{Title: "A", DueDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)},
	}
	n, err := svc.EnqueueDigest(context.Background(), deadlines)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if n != 2 || len(queue.rows) != 2 {
		t.Fatalf("digest rows = %d, want one per additional recipient", len(queue.rows))
	}
	for _, row := range queue.rows {
		if row.Priority != entity.EmailPriorityLow {
			t.Errorf("digest priority = %s, want low", row.Priority)
		}
		if row.Type != entity.TypeWeeklyDigest {
			t.Errorf("digest type = %s, want %s", row.Type, entity.TypeWeeklyDigest)
		}
	}
}
