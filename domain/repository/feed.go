package repository

import (
	"context"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
)

// IFeedFetcher retrieves the recent uploads of one channel.
// Implementations absorb every failure and return an empty slice instead.
type IFeedFetcher interface {
	Fetch(ctx context.Context, channelID, channelName string) []model.Video
}

// ISubscriptionList is the source of followed channels
type ISubscriptionList interface {
	Load(ctx context.Context) ([]model.Subscription, error)
	Add(ctx context.Context, sub model.Subscription) error
}

// IThumbnailCache holds rendered previews keyed by video and target size
type IThumbnailCache interface {
	Get(video model.Video, width, height int) (string, bool)
	LoadOrFetch(ctx context.Context, video model.Video, width, height int) (string, bool)
	Prefetch(ctx context.Context, videos []model.Video, width, height, limit int)
}
