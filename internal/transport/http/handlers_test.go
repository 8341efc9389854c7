package httpt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/scheduler"
	"bandonotifier/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeScheduler struct {
	running  bool
	cfg      scheduler.Config
	manual   int
	startErr error
}

func (f *fakeScheduler) Start(_ context.Context, patch scheduler.Patch) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.cfg = f.cfg.Merge(patch)
	f.running = true
	return nil
}

func (f *fakeScheduler) Stop() { f.running = false }

func (f *fakeScheduler) RunManualCheck(context.Context) (*service.SweepStats, *service.DrainStats, error) {
	f.manual++
	return &service.SweepStats{Evaluated: 2, Enqueued: 1}, &service.DrainStats{Sent: 1}, nil
}

func (f *fakeScheduler) Status() scheduler.Status {
	return scheduler.Status{Running: f.running, Config: f.cfg}
}

func (f *fakeScheduler) UpdateConfig(_ context.Context, patch scheduler.Patch) error {
	f.cfg = f.cfg.Merge(patch)
	return nil
}

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) NotifyProjectAssigned(context.Context, uuid.UUID, string, string) error {
	f.calls++
	return nil
}

type fakeProfiles struct {
	profiles   map[string]entity.NotificationSettings
	recipients []entity.AdditionalRecipient
}

func (f *fakeProfiles) GetProfile(_ context.Context, email string) (*entity.NotificationSettings, error) {
	if p, ok := f.profiles[email]; ok {
		return &p, nil
	}
	def := entity.DefaultSettings(email)
	return &def, nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, s entity.NotificationSettings) error {
	f.profiles[s.UserEmail] = s
	return nil
}

func (f *fakeProfiles) ListRecipients(context.Context) ([]entity.AdditionalRecipient, error) {
	return f.recipients, nil
}

func (f *fakeProfiles) AddRecipient(_ context.Context, email string) error {
	f.recipients = append(f.recipients, entity.AdditionalRecipient{Email: email, Active: true})
	return nil
}

func (f *fakeProfiles) RemoveRecipient(_ context.Context, email string) error {
	for i, r := range f.recipients {
		if r.Email == email {
			f.recipients = append(f.recipients[:i], f.recipients[i+1:]...)
			return nil
		}
	}
	return entity.ErrDataNotFound
}

func newTestHandler() (*Handler, *fakeScheduler, *fakeNotifier, *fakeProfiles) {
	gin.SetMode(gin.TestMode)
	sched := &fakeScheduler{cfg: scheduler.DefaultConfig()}
	notifier := &fakeNotifier{}
	profiles := &fakeProfiles{profiles: make(map[string]entity.NotificationSettings)}
	h := NewHandler(sched, notifier, profiles, zap.NewNop().Sugar())
	return h, sched, notifier, profiles
}

func do(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _, _, _ := newTestHandler()
	rec := do(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSchedulerLifecycleEndpoints(t *testing.T) {
	h, sched, _, _ := newTestHandler()

	if rec := do(h, http.MethodPost, "/scheduler/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	if !sched.running {
		t.Fatal("scheduler not started")
	}

	rec := do(h, http.MethodGet, "/scheduler/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var st scheduler.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running {
		t.Error("status reports not running")
	}

	if rec := do(h, http.MethodPost, "/scheduler/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if sched.running {
		t.Error("scheduler not stopped")
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	h, sched, _, _ := newTestHandler()

	rec := do(h, http.MethodPost, "/scheduler/stop", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when nothing is running", rec.Code)
	}
	if sched.running {
		t.Error("rejected stop must not touch scheduler state")
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "scheduler_stopped" {
		t.Errorf("code = %s, want scheduler_stopped", resp.Code)
	}
}

func TestSchedulerStartLeaseConflict(t *testing.T) {
	h, sched, _, _ := newTestHandler()
	sched.startErr = entity.ErrSchedulerRunning

	rec := do(h, http.MethodPost, "/scheduler/start", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when the lease is held", rec.Code)
	}
}

func TestSchedulerConfigPatch(t *testing.T) {
	h, sched, _, _ := newTestHandler()

	rec := do(h, http.MethodPatch, "/scheduler/config", `{"drain_batch_size": 42}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if sched.cfg.DrainBatchSize != 42 {
		t.Errorf("DrainBatchSize = %d, want 42", sched.cfg.DrainBatchSize)
	}
	if len(sched.cfg.AlertTimes) != 3 {
		t.Errorf("AlertTimes = %v, unpatched fields must survive", sched.cfg.AlertTimes)
	}
}

func TestManualRun(t *testing.T) {
	h, sched, _, _ := newTestHandler()

	rec := do(h, http.MethodPost, "/scheduler/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if sched.manual != 1 {
		t.Errorf("manual runs = %d, want 1", sched.manual)
	}
	var resp ManualCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Evaluated != 2 || resp.EmailsSent != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _, _, profiles := newTestHandler()

	body := `{"email_enabled": true, "threshold_7_days": true, "quiet_hours_enabled": true,
"quiet_hours_start": "22:00", "quiet_hours_end": "08:00"}`
	rec := do(h, http.MethodPut, "/settings/mario@example.com", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body)
	}

	saved, ok := profiles.profiles["mario@example.com"]
	if !ok {
		t.Fatal("profile not saved")
	}
	if !saved.QuietHoursEnabled || saved.QuietHoursStart != "22:00" {
		t.Errorf("saved profile = %+v", saved)
	}
	if saved.Threshold1Day {
		t.Error("unset flags must come through as false, not defaults")
	}

	rec = do(h, http.MethodGet, "/settings/mario@example.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got entity.NotificationSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.QuietHoursEnd != "08:00" {
		t.Errorf("round-trip lost quiet hours: %+v", got)
	}
}

func TestRecipientValidation(t *testing.T) {
	h, _, _, _ := newTestHandler()

	rec := do(h, http.MethodPost, "/recipients", `{"email": "not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid email", rec.Code)
	}

	rec = do(h, http.MethodPost, "/recipients", `{"email": "direzione@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	rec = do(h, http.MethodDelete, "/recipients/sconosciuto@example.com", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown recipient", rec.Code)
	}
}

func TestProjectAssignedEndpoint(t *testing.T) {
	h, _, notifier, _ := newTestHandler()

	body := `{"project_id": "` + uuid.NewString() + `", "user_email": "mario@example.com", "project_title": "PNRR"}`
	rec := do(h, http.MethodPost, "/notifications/project-assigned", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", notifier.calls)
	}

	rec = do(h, http.MethodPost, "/notifications/project-assigned", `{"project_id": "nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed request", rec.Code)
	}
}
