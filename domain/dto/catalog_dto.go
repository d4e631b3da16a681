package dto

import (
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
)

// Status labels emitted while a catalog load runs
const (
	StatusLoadingSubscriptions = "Loading subscriptions…"
	StatusCheckingCache        = "Checking cache…"
	StatusFetchingVideos       = "Fetching videos…"
	StatusSavingToCache        = "Saving to cache…"
)

// Progress is one event of a load: either a status label or a channel counter.
type Progress struct {
	Status  string `json:"status,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// IsStatus reports whether the event carries a label rather than a counter.
func (p Progress) IsStatus() bool { return p.Status != "" }

// Catalog is the result of a successful load
type Catalog struct {
	Videos        []model.Video        `json:"videos"`
	Subscriptions []model.Subscription `json:"subscriptions"`
	WatchLater    model.VideoIDSet     `json:"-"`
	Watched       model.VideoIDSet     `json:"-"`
	LoadedAt      time.Time            `json:"loaded_at"`
	FromCache     bool                 `json:"from_cache"`
}
