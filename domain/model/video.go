package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Video represents a single entry of a channel feed as cached locally
type Video struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Channel      string    `json:"channel"`
	Link         string    `json:"link"`
	Published    time.Time `json:"published"`
	IsShort      bool      `json:"is_short"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	ViewCount    *int64    `json:"view_count,omitempty"`
	LikeCount    *int64    `json:"like_count,omitempty"`
	Description  *string   `json:"description,omitempty"`
	CachedAt     time.Time `json:"cached_at"`
}

// Subscription is one followed channel
type Subscription struct {
	ChannelID  string `json:"channel_id"`
	ChannelURL string `json:"channel_url"`
	Title      string `json:"title"`
}

// WatchLaterEntry is a membership row of the watch-later list
type WatchLaterEntry struct {
	ListID  string    `json:"list_id"`
	VideoID string    `json:"video_id"`
	AddedAt time.Time `json:"added_at"`
}

// WatchHistoryEntry records that a video was watched
type WatchHistoryEntry struct {
	VideoID   string    `json:"video_id"`
	WatchedAt time.Time `json:"watched_at"`
}

const thumbnailFallbackFormat = "https://img.youtube.com/vi/%s/mqdefault.jpg"

// DefaultThumbnailURL returns the medium quality still YouTube serves for every video.
func DefaultThumbnailURL(videoID string) string {
	return fmt.Sprintf(thumbnailFallbackFormat, videoID)
}

// Thumbnail returns the feed supplied thumbnail or the default one.
func (v Video) Thumbnail() string {
	if v.ThumbnailURL != nil && *v.ThumbnailURL != "" {
		return *v.ThumbnailURL
	}
	if v.VideoID == "" {
		return ""
	}
	return DefaultThumbnailURL(v.VideoID)
}

// IsShortLink reports whether the link points at the shorts player.
func IsShortLink(link string) bool {
	return strings.Contains(link, "/shorts/")
}

// VideoIDFromLink extracts the id from a watch or shorts link.
func VideoIDFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 2 && parts[0] == "shorts" {
		return parts[1]
	}
	return ""
}

// VideoIDSet is a set of video ids
type VideoIDSet map[string]struct{}

func NewVideoIDSet(ids ...string) VideoIDSet {
	s := make(VideoIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s VideoIDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone copies the set, a nil set clones to an empty one.
func (s VideoIDSet) Clone() VideoIDSet {
	out := make(VideoIDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// With returns a copy containing id.
func (s VideoIDSet) With(id string) VideoIDSet {
	out := s.Clone()
	out[id] = struct{}{}
	return out
}

// Without returns a copy lacking id.
func (s VideoIDSet) Without(id string) VideoIDSet {
	out := s.Clone()
	delete(out, id)
	return out
}
