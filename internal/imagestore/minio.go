package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/recipebook/internal/logger"
)

// Minio stores images as objects of one bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("empty endpoint")
	}

	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, errors.New("invalid endpoint")
	}
	if u.Path != "" && u.Path != "/" {
		return "", false, errors.New("endpoint must not contain a path")
	}

	return u.Host, u.Scheme == "https", nil
}

// NewMinio connects to an S3-compatible endpoint ("host:port" or a URL) and
// checks that bucket exists.
func NewMinio(ctx context.Context, rawEndpoint, accessKey, secretKey, bucket string) (*Minio, error) {
	endpoint, secure, err := normaliseEndpoint(rawEndpoint)
	if err != nil {
		return nil, fmt.Errorf("in internal/imagestore/minio.go/NewMinio(): error while `normaliseEndpoint()` calling: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("in internal/imagestore/minio.go/NewMinio(): error while `minio.New()` calling: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("in internal/imagestore/minio.go/NewMinio(): error while `client.BucketExists()` calling: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", bucket)
	}

	return &Minio{
		client: client,
		bucket: bucket,
	}, nil
}

// Save uploads r as object name.
func (s *Minio) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		name,
		r,
		size,
		minio.PutObjectOptions{ContentType: contentType},
	)

	return err
}

// ServeHTTP streams the object named by the request path.
func (s *Minio) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Base(path.Clean("/" + r.URL.Path))
	if name == "/" || name == "." {
		http.NotFound(w, r)
		return
	}

	object, err := s.client.GetObject(r.Context(), s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		logger.Log.Debugln("Error calling the `s.client.GetObject()`: ", zap.Error(err))
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			http.NotFound(w, r)
			return
		}
		logger.Log.Debugln("Error calling the `object.Stat()`: ", zap.Error(err))
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", info.ContentType)
	http.ServeContent(w, r, name, info.LastModified, object)
}

// Delete removes object name. Removing a missing object succeeds.
func (s *Minio) Delete(ctx context.Context, name string) error {
	return s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
}

// Close is a no-op; the minio client holds no persistent connection.
func (s *Minio) Close() error {
	return nil
}
