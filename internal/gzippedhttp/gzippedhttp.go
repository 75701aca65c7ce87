// Package gzippedhttp lets clients send gzip-compressed request bodies.
// Response compression is left to the router's compress stage.
package gzippedhttp

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/recipebook/internal/logger"
)

// CompressedReader wraps an io.ReadCloser and decompresses its input using gzip.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a new CompressedReader that reads gzip-compressed data
// from the provided io.ReadCloser.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zippedRequestBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zippedRequestBody,
	}, nil
}

func (c *CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying io.ReadCloser.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// UngzipRequest replaces the body of requests sent with Content-Encoding gzip
// by its decompressed stream. A body that is not valid gzip gets 400.
func UngzipRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		contentEncoding := request.Header.Get("Content-Encoding")
		if !strings.Contains(strings.ToLower(contentEncoding), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		requestBodyWithCompression, err := NewCompressedReader(request.Body)
		if err != nil {
			logger.Log.Debugln("Error calling the `NewCompressedReader()`: ", zap.Error(err))
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(response).Encode(map[string]string{"message": "Invalid gzip body"})
			return
		}
		defer requestBodyWithCompression.Close()

		request.Body = requestBodyWithCompression
		request.Header.Del("Content-Encoding")
		request.ContentLength = -1

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
