package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockReloader struct {
	err   error
	calls int
}

func (m *mockReloader) Reload() error {
	m.calls++
	return m.err
}

func TestReloadHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "invalid config keeps previous one",
			err:        errors.New("remote host is required unless demo mode is enabled"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "remote host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reloader := &mockReloader{err: tt.err}
			handler := NewReloadHandler(discardLogger(), reloader)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reload", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, 1, reloader.calls)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}
