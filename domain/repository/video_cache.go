package repository

import (
	"context"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
)

// IVideoCache defines the local store for feed videos and per-user watch state
type IVideoCache interface {
	// EnsureSchema creates or migrates tables. Safe to call on every start.
	EnsureSchema(ctx context.Context) error
	// LoadFresh returns every video cached within maxAge, oldest publication first.
	LoadFresh(ctx context.Context, maxAge time.Duration) ([]model.Video, error)
	// UpsertAll stores or replaces videos atomically, stamping them with the current time.
	UpsertAll(ctx context.Context, videos []model.Video) error

	LoadWatchLaterSet(ctx context.Context) (model.VideoIDSet, error)
	LoadWatchedSet(ctx context.Context) (model.VideoIDSet, error)
	// ToggleWatchLater flips membership and returns the new state.
	ToggleWatchLater(ctx context.Context, videoID string) (bool, error)
	// ToggleWatched flips watch history and returns the new state.
	ToggleWatched(ctx context.Context, videoID string) (bool, error)
	// MarkWatched records a watch; repeated calls only refresh the timestamp.
	MarkWatched(ctx context.Context, videoID string) error
}
