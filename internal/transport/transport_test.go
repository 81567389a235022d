package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
	"github.com/ds124wfegd/task-reminder/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	running    bool
	sweepErr   error
	evaluation *service.Evaluation
	evalErr    error
	testResult *entity.DeliveryResult
	testErr    error
	lastTest   *service.TestSendRequest
	records    []entity.ReminderRecord
	pruned     int
}

func (f *fakeScheduler) Start(ctx context.Context) error { f.running = true; return nil }
func (f *fakeScheduler) Stop()                           { f.running = false }
func (f *fakeScheduler) Status() service.SchedulerStatus {
	return service.SchedulerStatus{Running: f.running, QueueCapacity: 8}
}
func (f *fakeScheduler) Evaluate(ctx context.Context, task *entity.Task) service.Evaluation {
	return service.Evaluation{TaskID: task.ID}
}
func (f *fakeScheduler) EvaluateTask(ctx context.Context, taskID int64) (*service.Evaluation, error) {
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return f.evaluation, nil
}
func (f *fakeScheduler) Sweep() error { return f.sweepErr }
func (f *fakeScheduler) RunSweep(ctx context.Context) (*service.SweepReport, error) {
	return &service.SweepReport{}, nil
}
func (f *fakeScheduler) SendTest(ctx context.Context, req *service.TestSendRequest) (*entity.DeliveryResult, error) {
	f.lastTest = req
	return f.testResult, f.testErr
}
func (f *fakeScheduler) ListLedger(ctx context.Context) ([]entity.ReminderRecord, error) {
	return f.records, nil
}
func (f *fakeScheduler) PruneLedger(ctx context.Context) (int, error) { return f.pruned, nil }

type fakeSettings struct {
	stored map[int64]*entity.ReminderSettings
}

func (f *fakeSettings) GetSettings(ctx context.Context, userID int64) (*entity.ReminderSettings, error) {
	if s, ok := f.stored[userID]; ok {
		return s, nil
	}
	return entity.DefaultReminderSettings(userID), nil
}

func (f *fakeSettings) UpdateSettings(ctx context.Context, userID int64, req *service.UpdateSettingsRequest) (*entity.ReminderSettings, error) {
	if req.PreferredTime == "25:00" {
		return nil, fmt.Errorf("%w: preferred_time", entity.ErrInvalidSettings)
	}
	if userID == 404 {
		return nil, entity.ErrUserNotFound
	}
	s := &entity.ReminderSettings{
		UserID:        userID,
		Enabled:       req.Enabled,
		LeadTimes:     req.LeadTimes,
		PreferredTime: req.PreferredTime,
		Timezone:      req.Timezone,
	}
	f.stored[userID] = s
	return s, nil
}

func newRouter(scheduler *fakeScheduler, settings *fakeSettings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return InitRoutes(NewReminderHandler(scheduler), NewSettingsHandler(settings), time.Second, nil)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := newRouter(&fakeScheduler{running: true}, &fakeSettings{})

	w := doRequest(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["scheduler"])
}

func TestHealthDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := InitRoutes(NewReminderHandler(&fakeScheduler{}), NewSettingsHandler(&fakeSettings{}), time.Second, HealthChecks{
		"rabbitmq": func() error { return fmt.Errorf("RabbitMQ connection is closed") },
	})

	w := doRequest(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "RabbitMQ connection is closed", body.Dependencies["rabbitmq"])
}

func TestSchedulerLifecycleRoutes(t *testing.T) {
	scheduler := &fakeScheduler{}
	router := newRouter(scheduler, &fakeSettings{})

	w := doRequest(t, router, http.MethodPost, "/api/v1/scheduler/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, scheduler.running)

	w = doRequest(t, router, http.MethodGet, "/api/v1/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status service.SchedulerStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, 8, status.QueueCapacity)

	w = doRequest(t, router, http.MethodPost, "/api/v1/scheduler/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, scheduler.running)
}

func TestTriggerSweep(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "queued", wantCode: http.StatusAccepted},
		{name: "not running", err: entity.ErrSchedulerNotRunning, wantCode: http.StatusConflict},
		{name: "queue full", err: entity.ErrQueueFull, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&fakeScheduler{sweepErr: tt.err}, &fakeSettings{})
			w := doRequest(t, router, http.MethodPost, "/api/v1/scheduler/sweep", nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestEvaluateTask(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		sched    *fakeScheduler
		wantCode int
	}{
		{
			name: "evaluated",
			path: "/api/v1/tasks/7/evaluate",
			sched: &fakeScheduler{evaluation: &service.Evaluation{
				TaskID: 7,
				Action: service.ActionSkipped,
				Reason: service.SkipCooldown,
			}},
			wantCode: http.StatusOK,
		},
		{name: "bad id", path: "/api/v1/tasks/abc/evaluate", sched: &fakeScheduler{}, wantCode: http.StatusBadRequest},
		{name: "zero id", path: "/api/v1/tasks/0/evaluate", sched: &fakeScheduler{}, wantCode: http.StatusBadRequest},
		{
			name:     "missing task",
			path:     "/api/v1/tasks/9/evaluate",
			sched:    &fakeScheduler{evalErr: entity.ErrTaskNotFound},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(tt.sched, &fakeSettings{})
			w := doRequest(t, router, http.MethodPost, tt.path, nil)
			require.Equal(t, tt.wantCode, w.Code)

			if tt.wantCode == http.StatusOK {
				var ev service.Evaluation
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ev))
				assert.Equal(t, int64(7), ev.TaskID)
				assert.Equal(t, service.SkipCooldown, ev.Reason)
			}
		})
	}
}

func TestSendTest(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		sched    *fakeScheduler
		wantCode int
	}{
		{
			name:     "delivered",
			body:     service.TestSendRequest{Phone: "9876543210", Message: "hi"},
			sched:    &fakeScheduler{testResult: &entity.DeliveryResult{Success: true, MessageID: "m-1"}},
			wantCode: http.StatusOK,
		},
		{
			name:     "gateway failure",
			body:     service.TestSendRequest{Phone: "9876543210"},
			sched:    &fakeScheduler{testResult: &entity.DeliveryResult{Success: false, Error: "HTTP 401", StatusCode: 401}},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "invalid phone",
			body:     service.TestSendRequest{Phone: "12"},
			sched:    &fakeScheduler{testErr: entity.ErrInvalidInput},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing phone",
			body:     map[string]string{"message": "hi"},
			sched:    &fakeScheduler{},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(tt.sched, &fakeSettings{})
			w := doRequest(t, router, http.MethodPost, "/api/v1/reminders/test", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestLedgerRoutes(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	scheduler := &fakeScheduler{
		records: []entity.ReminderRecord{
			{Key: entity.LedgerKey{TaskID: 1, Channel: "+919876543210"}, LastSent: now, Kind: entity.ReminderDue, Outcome: entity.OutcomeSent},
		},
		pruned: 3,
	}
	router := newRouter(scheduler, &fakeSettings{})

	w := doRequest(t, router, http.MethodGet, "/api/v1/reminders/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Records []entity.ReminderRecord `json:"records"`
		Count   int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "+919876543210", list.Records[0].Key.Channel)

	w = doRequest(t, router, http.MethodPost, "/api/v1/reminders/ledger/prune", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":3}`, w.Body.String())
}

func TestSettingsRoutes(t *testing.T) {
	settings := &fakeSettings{stored: map[int64]*entity.ReminderSettings{}}
	router := newRouter(&fakeScheduler{}, settings)

	w := doRequest(t, router, http.MethodGet, "/api/v1/users/5/reminder-settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got entity.ReminderSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(5), got.UserID)
	assert.Equal(t, "09:00", got.PreferredTime)

	w = doRequest(t, router, http.MethodPut, "/api/v1/users/5/reminder-settings", service.UpdateSettingsRequest{
		Enabled:       true,
		LeadTimes:     []int64{60},
		PreferredTime: "08:30",
		Timezone:      "UTC",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "08:30", settings.stored[5].PreferredTime)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{name: "bad user id", method: http.MethodGet, path: "/api/v1/users/x/reminder-settings", wantCode: http.StatusBadRequest},
		{
			name:     "invalid settings",
			method:   http.MethodPut,
			path:     "/api/v1/users/5/reminder-settings",
			body:     service.UpdateSettingsRequest{PreferredTime: "25:00"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown user",
			method:   http.MethodPut,
			path:     "/api/v1/users/404/reminder-settings",
			body:     service.UpdateSettingsRequest{},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
