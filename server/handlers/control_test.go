package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(h http.Handler, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return w
}

func TestStartHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		startErr   error
		wantStatus int
		wantBody   string
		wantCustom bool
	}{
		{
			name:       "default campaign",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"Test started","timestamp":"2025-11-24T12:45:32Z"}`,
		},
		{
			name:       "custom selection",
			body:       `{"catalogs":[{"index":"redhat","operators":["3scale-operator","amq-streams"]}]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"Test started","timestamp":"2025-11-24T12:45:32Z"}`,
			wantCustom: true,
		},
		{
			name:       "already running",
			startErr:   campaign.ErrAlreadyRunning,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"test already running"}`,
		},
		{
			name:       "selection without units",
			body:       `{"catalogs":[{"index":"redhat","operators":[]}]}`,
			startErr:   campaign.ErrNoUnitsSpecified,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"no operators specified"}`,
		},
		{
			name:       "malformed body",
			body:       `{"catalogs":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "launch failure",
			startErr:   errors.New("tmux: command not found"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"tmux: command not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{startErr: tt.startErr}
			w := post(NewStartHandler(discardLogger(), staticSource{fake}), "/api/test/start", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, fake.started)
				return
			}
			require.Len(t, fake.started, 1)
			if !tt.wantCustom {
				assert.Nil(t, fake.started[0])
				return
			}
			require.NotNil(t, fake.started[0])
			assert.Equal(t, []string{"3scale-operator", "amq-streams"}, fake.started[0].Catalogs[0].Units)
		})
	}
}

func TestStopHandler(t *testing.T) {
	for _, stopErr := range []error{nil, errors.New("no server running")} {
		fake := &fakeProvider{stopErr: stopErr}
		h := NewStopHandler(discardLogger(), staticSource{fake})
		h.now = func() time.Time { return time.Date(2025, 11, 24, 13, 0, 0, 0, time.UTC) }

		w := post(h, "/api/test/stop", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"Test stopped","timestamp":"2025-11-24T13:00:00Z"}`, w.Body.String())
		assert.Equal(t, 1, fake.stopped)
	}
}

func TestCleanupHandler(t *testing.T) {
	fake := &fakeProvider{cleanup: "deleted namespace test-operators"}
	w := post(NewCleanupHandler(discardLogger(), staticSource{fake}), "/api/cleanup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"Cleanup complete","output":"deleted namespace test-operators"}`, w.Body.String())

	fake.cleanupErr = errors.New("kubeconfig missing")
	w = post(NewCleanupHandler(discardLogger(), staticSource{fake}), "/api/cleanup", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
