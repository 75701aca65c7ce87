// Package upload implements the image intake stage of the recipe write routes.
// It reads one named file field of a multipart request, checks type and size,
// stores the file and hands the resulting /uploads path to the next handler.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/recipebook/internal/logger"
	"github.com/patric-chuzhbe/recipebook/internal/models"
)

// PublicPrefix is the URL prefix uploaded files are served under.
const PublicPrefix = "/uploads/"

// formOverhead is the room left for the text fields of the form on top of the file limit.
const formOverhead = 1 << 20

const maxMemory = 1 << 20

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/jpg":  true,
}

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrPayloadTooLarge = errors.New("file too large")
)

type imageSaver interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
}

type contextKey struct{}

// File describes an accepted upload.
type File struct {
	// Path is the server-relative URL, e.g. /uploads/1718000000000-x1Yz9AbC.png.
	Path        string
	Name        string
	Size        int64
	ContentType string
}

// FromContext returns the file accepted for the current request, if any.
func FromContext(ctx context.Context) (*File, bool) {
	file, ok := ctx.Value(contextKey{}).(*File)
	return file, ok && file != nil
}

// Uploader is the upload stage. It is safe for concurrent use.
type Uploader struct {
	store   imageSaver
	maxSize int64
	now     func() time.Time
}

// New returns an Uploader that saves accepted files to store and rejects
// files bigger than maxSize bytes.
func New(store imageSaver, maxSize int64) *Uploader {
	return &Uploader{
		store:   store,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Single intercepts the file field named field. Requests that are not
// multipart/form-data, or that carry no such field, reach the next handler
// untouched.
func (u *Uploader) Single(field string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			if !isMultipart(request) {
				h.ServeHTTP(response, request)
				return
			}

			request.Body = http.MaxBytesReader(response, request.Body, u.maxSize+formOverhead)
			if err := request.ParseMultipartForm(maxMemory); err != nil {
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					u.reject(response, ErrPayloadTooLarge)
					return
				}
				logger.Log.Debugln("Error calling the `request.ParseMultipartForm()`: ", zap.Error(err))
				writeMessage(response, http.StatusBadRequest, "Malformed multipart body")
				return
			}

			file, header, err := request.FormFile(field)
			if errors.Is(err, http.ErrMissingFile) {
				h.ServeHTTP(response, request)
				return
			}
			if err != nil {
				logger.Log.Debugln("Error calling the `request.FormFile()`: ", zap.Error(err))
				writeMessage(response, http.StatusBadRequest, "Malformed multipart body")
				return
			}
			defer file.Close()

			accepted, err := u.accept(request.Context(), file, header)
			if err != nil {
				u.reject(response, err)
				return
			}

			ctx := context.WithValue(request.Context(), contextKey{}, accepted)
			h.ServeHTTP(response, request.WithContext(ctx))
		}

		return http.HandlerFunc(middleware)
	}
}

func (u *Uploader) accept(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*File, error) {
	contentType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || !allowedTypes[strings.ToLower(contentType)] {
		return nil, ErrInvalidFileType
	}

	if header.Size > u.maxSize {
		return nil, ErrPayloadTooLarge
	}

	name, err := u.fileName(header.Filename)
	if err != nil {
		return nil, err
	}

	if err := u.store.Save(ctx, name, file, header.Size, contentType); err != nil {
		return nil, err
	}

	return &File{
		Path:        PublicPrefix + name,
		Name:        name,
		Size:        header.Size,
		ContentType: contentType,
	}, nil
}

// fileName derives the stored name from the ingestion time, a short random
// suffix and the original extension.
func (u *Uploader) fileName(original string) (string, error) {
	suffix, err := gonanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", 8)
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(u.now().UnixMilli(), 10) + "-" + suffix + strings.ToLower(filepath.Ext(original)), nil
}

func (u *Uploader) reject(response http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidFileType):
		writeMessage(response, http.StatusBadRequest, "Invalid file type. Only JPEG, PNG, and JPG are allowed.")
	case errors.Is(err, ErrPayloadTooLarge):
		writeMessage(
			response,
			http.StatusRequestEntityTooLarge,
			"File too large. Maximum size is "+strconv.FormatInt(u.maxSize>>20, 10)+"MB.",
		)
	default:
		logger.Log.Debugln("Error calling the `u.accept()`: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, "Server error while saving image")
	}
}

func isMultipart(request *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(request.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func writeMessage(response http.ResponseWriter, status int, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(models.MessageResponse{Message: message}); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}
