// Package imagecleaner removes image files that no recipe references any more.
// Paths are queued by the service and deleted from the image store in batches.
// It only runs when image cleanup is enabled in the configuration.
package imagecleaner

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/patric-chuzhbe/recipebook/internal/logger"
)

type imageRemover interface {
	Delete(ctx context.Context, name string) error
}

// Cleaner batches image removals. EnqueueImage is safe for concurrent use.
type Cleaner struct {
	queue                    chan string
	store                    imageRemover
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
	done                     chan struct{}
	startOnce                sync.Once
}

// New returns a Cleaner that deletes from store. channelCapacity bounds the
// number of paths waiting in the queue.
func New(
	store imageRemover,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *Cleaner {
	return &Cleaner{
		queue:                    make(chan string, channelCapacity),
		store:                    store,
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
		done:                     make(chan struct{}),
	}
}

// ListenErrors calls callback for every failed removal.
func (c *Cleaner) ListenErrors(callback func(error)) {
	go func() {
		for err := range c.errorChannel {
			callback(err)
		}
	}()
}

// EnqueueImage schedules the image at the stored path for removal. Paths
// outside /uploads/ are ignored. When the queue is full the path is dropped.
func (c *Cleaner) EnqueueImage(imagePath string) {
	name, ok := imageName(imagePath)
	if !ok {
		return
	}

	select {
	case c.queue <- name:
	default:
		logger.Log.Warnw("image cleanup queue is full, dropping", "image", name)
	}
}

func imageName(imagePath string) (string, bool) {
	if !strings.HasPrefix(imagePath, "/uploads/") {
		return "", false
	}

	name := path.Base(path.Clean(imagePath))
	if name == "uploads" || name == "/" || name == "." {
		return "", false
	}

	return name, true
}

// Run starts the removal loop. When ctx is done the pending paths are removed
// once more and Wait returns.
func (c *Cleaner) Run(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.loop(ctx)
	})
}

// Wait blocks until the loop started by Run has finished.
func (c *Cleaner) Wait() {
	<-c.done
}

func (c *Cleaner) loop(ctx context.Context) {
	defer close(c.done)
	defer close(c.errorChannel)

	ticker := time.NewTicker(c.delayBetweenQueueFetches)
	defer ticker.Stop()

	var names []string
	for {
		select {
		case name := <-c.queue:
			names = append(names, name)

		case <-ticker.C:
			c.flush(context.Background(), names)
			names = nil

		case <-ctx.Done():
			c.flush(context.Background(), c.drain(names))
			return
		}
	}
}

func (c *Cleaner) drain(names []string) []string {
	for {
		select {
		case name := <-c.queue:
			names = append(names, name)
		default:
			return names
		}
	}
}

// flush removes names once. Failures are reported, not retried.
func (c *Cleaner) flush(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}

	var errs []error
	for _, name := range names {
		if err := c.store.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		select {
		case c.errorChannel <- errors.Join(errs...):
		default:
		}
	}

	logger.Log.Infof("processed removing of %d images", len(names)-len(errs))
}
