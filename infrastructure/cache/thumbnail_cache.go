package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Renderer downloads a thumbnail and turns it into terminal output of width x height cells.
type Renderer interface {
	Render(ctx context.Context, url string, width, height int) (string, error)
}

type ThumbnailOptions struct {
	Capacity   int
	GroupSize  int
	GroupPause time.Duration
	// RemoteTTL is how long entries live in the shared store.
	RemoteTTL time.Duration
}

// ThumbnailCache keeps at most Capacity rendered previews in memory and evicts the
// oldest insertion first. An optional Store sits behind it.
type ThumbnailCache struct {
	renderer Renderer
	remote   Store
	opts     ThumbnailOptions

	mu      sync.Mutex
	entries map[string]string
	order   []string

	group singleflight.Group
}

func NewThumbnailCache(renderer Renderer, remote Store, opts ThumbnailOptions) *ThumbnailCache {
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	if opts.GroupSize <= 0 {
		opts.GroupSize = 2
	}
	return &ThumbnailCache{
		renderer: renderer,
		remote:   remote,
		opts:     opts,
		entries:  make(map[string]string, opts.Capacity),
	}
}

// Key identifies a preview of videoID rendered at width x height.
func Key(videoID string, width, height int) string {
	return fmt.Sprintf("thumb:%s:%dx%d", videoID, width, height)
}

func (c *ThumbnailCache) Get(video model.Video, width, height int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.entries[Key(video.VideoID, width, height)]
	return val, ok
}

// Len is the number of previews held in memory.
func (c *ThumbnailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ThumbnailCache) put(key, val string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = val
		return
	}
	if len(c.order) >= c.opts.Capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = val
	c.order = append(c.order, key)
}

// LoadOrFetch returns the cached preview or renders it. A video without a thumbnail
// or a failed download yields false; the failure is not remembered.
func (c *ThumbnailCache) LoadOrFetch(ctx context.Context, video model.Video, width, height int) (string, bool) {
	if val, ok := c.Get(video, width, height); ok {
		return val, true
	}
	url := video.Thumbnail()
	if url == "" {
		return "", false
	}

	key := Key(video.VideoID, width, height)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if val, ok := c.fromRemote(ctx, key); ok {
			c.put(key, val)
			return val, nil
		}
		rendered, err := c.renderer.Render(ctx, url, width, height)
		if err != nil {
			return "", err
		}
		c.put(key, rendered)
		c.toRemote(ctx, key, rendered)
		return rendered, nil
	})
	if err != nil {
		logger.GetLogger().WithField("videoId", video.VideoID).WithField("error", err).Debug("Preview unavailable")
		return "", false
	}
	return val.(string), true
}

func (c *ThumbnailCache) fromRemote(ctx context.Context, key string) (string, bool) {
	if c.remote == nil {
		return "", false
	}
	val, err := c.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.GetLogger().WithField("error", err).Debug("Shared thumbnail store unavailable")
		}
		return "", false
	}
	return val, true
}

func (c *ThumbnailCache) toRemote(ctx context.Context, key, val string) {
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, key, val, c.opts.RemoteTTL); err != nil {
		logger.GetLogger().WithField("error", err).Debug("Shared thumbnail store write failed")
	}
}

// Prefetch renders up to limit of videos in the background and returns immediately.
// Videos already cached are skipped.
func (c *ThumbnailCache) Prefetch(ctx context.Context, videos []model.Video, width, height, limit int) {
	if limit <= 0 || len(videos) == 0 {
		return
	}
	pending := make([]model.Video, 0, limit)
	for _, v := range videos[:min(limit, len(videos))] {
		if _, ok := c.Get(v, width, height); ok {
			continue
		}
		pending = append(pending, v)
	}
	if len(pending) == 0 {
		return
	}
	go c.prefetch(ctx, pending, width, height)
}

func (c *ThumbnailCache) prefetch(ctx context.Context, videos []model.Video, width, height int) {
	for start := 0; start < len(videos); start += c.opts.GroupSize {
		if ctx.Err() != nil {
			return
		}
		if start > 0 && c.opts.GroupPause > 0 {
			t := time.NewTimer(c.opts.GroupPause)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}

		var g errgroup.Group
		for _, v := range videos[start:min(start+c.opts.GroupSize, len(videos))] {
			g.Go(func() error {
				c.LoadOrFetch(ctx, v, width, height)
				return nil
			})
		}
		_ = g.Wait()
	}
}

var _ repository.IThumbnailCache = (*ThumbnailCache)(nil)
