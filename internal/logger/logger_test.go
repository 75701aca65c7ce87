package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observeLog(t *testing.T) *observer.ObservedLogs {
	t.Helper()

	core, logs := observer.New(zap.InfoLevel)
	previous := Log
	Log = zap.New(core).Sugar()
	t.Cleanup(func() {
		Log = previous
	})

	return logs
}

func TestWithLoggingHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		wantStatus int
	}{
		{name: "public route", wantStatus: http.StatusOK},
		{name: "protected route", userID: "65f1a2b3c4d5e6f7a8b9c0d1", wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLog(t)

			handler := middleware.RequestID(WithLoggingHTTPMiddleware(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if tt.userID != "" {
						SetUserID(r.Context(), tt.userID)
					}
					w.WriteHeader(tt.wantStatus)
					_, _ = w.Write([]byte("done"))
				}),
			))

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/recipes", nil))

			entries := logs.FilterMessage("request served").All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, tt.userID, fields["user_id"])
			assert.Equal(t, "/api/recipes", fields["uri"])
			assert.Equal(t, http.MethodPost, fields["method"])
			assert.EqualValues(t, tt.wantStatus, fields["status"])
			assert.EqualValues(t, 4, fields["size"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestSetUserIDOutsideMiddleware(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)

	assert.NotPanics(t, func() {
		SetUserID(request.Context(), "65f1a2b3c4d5e6f7a8b9c0d1")
	})
}

func TestInit(t *testing.T) {
	previous := Log
	t.Cleanup(func() {
		Log = previous
	})

	require.NoError(t, Init("warning"))
	assert.False(t, Log.Desugar().Core().Enabled(zap.InfoLevel))
	assert.True(t, Log.Desugar().Core().Enabled(zap.WarnLevel))

	assert.Error(t, Init("loud"))
}
