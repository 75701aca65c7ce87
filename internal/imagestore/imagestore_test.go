package imagestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalDisk(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "1-abc.png", strings.NewReader("png bytes"), 9, "image/png"))

	data, err := os.ReadFile(filepath.Join(dir, "1-abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	assert.Error(t, store.Save(ctx, "1-abc.png", strings.NewReader("again"), 5, "image/png"))

	require.NoError(t, store.Save(ctx, "../escape.png", strings.NewReader("x"), 1, "image/png"))
	_, err = os.Stat(filepath.Join(dir, "escape.png"))
	assert.NoError(t, err)

	recorder := httptest.NewRecorder()
	store.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/1-abc.png", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "png bytes", recorder.Body.String())

	recorder = httptest.NewRecorder()
	store.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	require.NoError(t, store.Delete(ctx, "1-abc.png"))
	_, err = os.Stat(filepath.Join(dir, "1-abc.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "1-abc.png"))
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "localhost:9000", wantHost: "localhost:9000"},
		{raw: "http://minio:9000", wantHost: "minio:9000"},
		{raw: "https://s3.example.com/", wantHost: "s3.example.com", wantSecure: true},
		{raw: "https://s3.example.com/bucket", wantErr: true},
		{raw: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, secure, err := normaliseEndpoint(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}

func TestMinio(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT is not set")
	}

	ctx := context.Background()
	store, err := NewMinio(
		ctx,
		endpoint,
		os.Getenv("TEST_S3_ACCESS_KEY"),
		os.Getenv("TEST_S3_SECRET_KEY"),
		os.Getenv("TEST_S3_BUCKET"),
	)
	require.NoError(t, err)

	name := "test-" + strings.ReplaceAll(t.Name(), "/", "-") + ".png"
	require.NoError(t, store.Save(ctx, name, strings.NewReader("png bytes"), 9, "image/png"))

	recorder := httptest.NewRecorder()
	store.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/"+name, nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "png bytes", recorder.Body.String())
	assert.Equal(t, "image/png", recorder.Header().Get("Content-Type"))

	recorder = httptest.NewRecorder()
	store.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/does-not-exist.png", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	require.NoError(t, store.Delete(ctx, name))
	recorder = httptest.NewRecorder()
	store.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/"+name, nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
