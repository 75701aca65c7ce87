// Package logger holds the process-wide zap logger and the access-log
// middleware of the recipe API. Access-log lines carry the chi request id
// and, on protected routes, the id of the acting user.
package logger

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

// Log is the process-wide SugaredLogger. It is a no-op logger until Init is called.
var Log = zap.NewNop().Sugar()

// Write counts the bytes of the response body.
func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	if r.responseData.status == 0 {
		r.responseData.status = http.StatusOK
	}
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

// WriteHeader remembers the status code sent to the client.
func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// Init builds the global logger for the given level
// ("debug", "info", "warning", "error", "fatal").
func Init(level string) error {
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// Sync flushes any buffered log entries to the output.
func Sync() error {
	if err := Log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}

	return nil
}

// requestInfo collects what later stages learn about a request.
type requestInfo struct {
	userID string
}

type requestInfoKey struct{}

// SetUserID records the acting user for the access-log line of the request
// ctx belongs to. Outside WithLoggingHTTPMiddleware it does nothing.
func SetUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.userID = userID
	}
}

// WithLoggingHTTPMiddleware writes one access-log line per request.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		info := &requestInfo{}
		responseData := &responseData{}
		lw := loggingResponseWriter{
			ResponseWriter: w,
			responseData:   responseData,
		}
		h.ServeHTTP(&lw, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

		Log.Infow(
			"request served",
			"request_id", middleware.GetReqID(r.Context()),
			"user_id", info.userID,
			"uri", r.RequestURI,
			"method", r.Method,
			"status", responseData.status,
			"duration", time.Since(start),
			"size", responseData.size,
		)
	}

	return http.HandlerFunc(logFn)
}
