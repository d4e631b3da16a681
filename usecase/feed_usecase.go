package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/dto"
	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchScheduler fetches every subscription's feed in paced, concurrent batches.
type BatchScheduler struct {
	fetcher    repository.IFeedFetcher
	batchSize  int
	batchPause time.Duration
}

func NewBatchScheduler(fetcher repository.IFeedFetcher, batchSize int, batchPause time.Duration) *BatchScheduler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &BatchScheduler{fetcher: fetcher, batchSize: batchSize, batchPause: batchPause}
}

// Run fetches all subs and returns their videos in subscription order.
// events receives (dispatched, total) before each batch and (total, total) at the end;
// it may be nil. A cancelled ctx stops dispatching further batches.
func (b *BatchScheduler) Run(ctx context.Context, subs []model.Subscription, events chan<- dto.Progress) []model.Video {
	total := len(subs)
	all := make([]model.Video, 0, total*15)

	for start := 0; start < total; start += b.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+b.batchSize, total)
		emit(ctx, events, dto.Progress{Current: start, Total: total})

		batch := subs[start:end]
		results := make([][]model.Video, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, sub := range batch {
			g.Go(func() error {
				results[i] = b.fetcher.Fetch(gctx, sub.ChannelID, sub.Title)
				return nil
			})
		}
		_ = g.Wait()
		for _, videos := range results {
			all = append(all, videos...)
		}

		if end < total && b.batchPause > 0 {
			if !sleep(ctx, b.batchPause) {
				break
			}
		}
	}

	emit(ctx, events, dto.Progress{Current: total, Total: total})
	return all
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func emit(ctx context.Context, events chan<- dto.Progress, p dto.Progress) {
	if events == nil {
		return
	}
	select {
	case events <- p:
	case <-ctx.Done():
	}
}

// AggregationError reports which phase of a catalog load failed.
type AggregationError struct {
	Phase string
	Err   error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// ICatalogService loads the video catalog for a browse session.
type ICatalogService interface {
	Load(ctx context.Context, force bool, events chan<- dto.Progress) (*dto.Catalog, error)
}

// CatalogOptions tune a CatalogService.
type CatalogOptions struct {
	MaxAge      time.Duration
	MaxChannels int
	// CacheDisabled always refetches, as if every load were forced.
	CacheDisabled bool
}

// CatalogService turns the subscription list into a de-duplicated, cached catalog.
type CatalogService struct {
	subs      repository.ISubscriptionList
	store     repository.IVideoCache
	scheduler *BatchScheduler
	opts      CatalogOptions
	now       func() time.Time
	newCycle  func() string
}

func NewCatalogService(subs repository.ISubscriptionList, store repository.IVideoCache, scheduler *BatchScheduler, opts CatalogOptions) *CatalogService {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * time.Minute
	}
	return &CatalogService{subs: subs, store: store, scheduler: scheduler, opts: opts, now: time.Now, newCycle: newCycleID}
}

// Load returns the fresh cached catalog when there is one, otherwise fetches every feed,
// stores the result and returns it. The caller owns events and closes it afterwards.
func (c *CatalogService) Load(ctx context.Context, force bool, events chan<- dto.Progress) (*dto.Catalog, error) {
	log := logger.GetLogger().WithField("cycleId", c.newCycle()).WithField("force", force)

	emit(ctx, events, dto.Progress{Status: dto.StatusLoadingSubscriptions})
	subs, err := c.subs.Load(ctx)
	if err != nil {
		return nil, &AggregationError{Phase: "subscriptions", Err: err}
	}
	if c.opts.MaxChannels > 0 && len(subs) > c.opts.MaxChannels {
		subs = subs[:c.opts.MaxChannels]
	}

	if !force && !c.opts.CacheDisabled {
		emit(ctx, events, dto.Progress{Status: dto.StatusCheckingCache})
		cached, err := c.store.LoadFresh(ctx, c.opts.MaxAge)
		if err != nil {
			return nil, &AggregationError{Phase: "cache", Err: err}
		}
		if len(cached) > 0 {
			log.WithField("videos", len(cached)).Info("Serving catalog from cache")
			return c.catalog(ctx, cached, subs, true)
		}
	}

	emit(ctx, events, dto.Progress{Status: dto.StatusFetchingVideos})
	started := c.now()
	fetched := c.scheduler.Run(ctx, subs, events)
	if err := ctx.Err(); err != nil {
		return nil, &AggregationError{Phase: "fetch", Err: err}
	}
	videos := Dedupe(fetched)

	emit(ctx, events, dto.Progress{Status: dto.StatusSavingToCache})
	if err := c.store.UpsertAll(ctx, videos); err != nil {
		return nil, &AggregationError{Phase: "save", Err: err}
	}
	log.WithFields(map[string]interface{}{
		"channels": len(subs),
		"videos":   len(videos),
		"elapsed":  c.now().Sub(started).String(),
	}).Info("Fetched catalog")

	sortAscending(videos)
	return c.catalog(ctx, videos, subs, false)
}

func (c *CatalogService) catalog(ctx context.Context, videos []model.Video, subs []model.Subscription, fromCache bool) (*dto.Catalog, error) {
	later, err := c.store.LoadWatchLaterSet(ctx)
	if err != nil {
		return nil, &AggregationError{Phase: "watch later", Err: err}
	}
	watched, err := c.store.LoadWatchedSet(ctx)
	if err != nil {
		return nil, &AggregationError{Phase: "watch history", Err: err}
	}
	return &dto.Catalog{
		Videos:        videos,
		Subscriptions: subs,
		WatchLater:    later,
		Watched:       watched,
		LoadedAt:      c.now(),
		FromCache:     fromCache,
	}, nil
}

// Dedupe keeps the first occurrence of every video id.
func Dedupe(videos []model.Video) []model.Video {
	seen := make(map[string]struct{}, len(videos))
	out := make([]model.Video, 0, len(videos))
	for _, v := range videos {
		if _, ok := seen[v.VideoID]; ok {
			continue
		}
		seen[v.VideoID] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sortAscending(videos []model.Video) {
	sortVideos(videos, func(a, b model.Video) bool {
		if !a.Published.Equal(b.Published) {
			return a.Published.Before(b.Published)
		}
		return a.VideoID < b.VideoID
	})
}

func sortVideos(videos []model.Video, less func(a, b model.Video) bool) {
	sort.SliceStable(videos, func(i, j int) bool { return less(videos[i], videos[j]) })
}

func newCycleID() string { return uuid.NewString() }

var _ ICatalogService = (*CatalogService)(nil)
