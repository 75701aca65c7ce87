package gzippedhttp

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return &buf
}

func echoHandler() http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		response.Header().Set("X-Content-Encoding", request.Header.Get("Content-Encoding"))
		_, _ = response.Write(body)
	})
}

func TestUngzipRequest(t *testing.T) {
	payload := `{"title":"Soup"}`

	tests := []struct {
		name         string
		body         io.Reader
		encoding     string
		wantCode     int
		wantBody     string
		wantEncoding string
	}{
		{
			name:     "gzipped body",
			body:     gzipped(t, payload),
			encoding: "gzip",
			wantCode: http.StatusOK,
			wantBody: payload,
		},
		{
			name:     "plain body",
			body:     strings.NewReader(payload),
			wantCode: http.StatusOK,
			wantBody: payload,
		},
		{
			name:     "broken gzip",
			body:     strings.NewReader("not gzip at all"),
			encoding: "gzip",
			wantCode: http.StatusBadRequest,
			wantBody: `{"message":"Invalid gzip body"}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/api/auth/login", tt.body)
			if tt.encoding != "" {
				request.Header.Set("Content-Encoding", tt.encoding)
			}
			recorder := httptest.NewRecorder()

			UngzipRequest(echoHandler()).ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantCode, recorder.Code)
			assert.Equal(t, tt.wantBody, recorder.Body.String())
			assert.Equal(t, tt.wantEncoding, recorder.Header().Get("X-Content-Encoding"))
		})
	}
}
