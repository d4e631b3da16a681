package youtube

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// FeedClient reads the public Atom feed YouTube publishes for every channel.
type FeedClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

type feedQuery struct {
	ChannelID string `url:"channel_id"`
}

func NewFeedClient(httpClient *http.Client, baseURL, userAgent string) *FeedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultFeedURL
	}
	return &FeedClient{httpClient: httpClient, baseURL: baseURL, userAgent: userAgent}
}

// FeedURL returns the feed address of a channel.
func (c *FeedClient) FeedURL(channelID string) (string, error) {
	v, err := query.Values(feedQuery{ChannelID: channelID})
	if err != nil {
		return "", err
	}
	return c.baseURL + "?" + v.Encode(), nil
}

// Fetch returns the channel's recent videos. Every failure is logged and yields an empty slice.
func (c *FeedClient) Fetch(ctx context.Context, channelID, channelName string) []model.Video {
	feed, err := c.feed(ctx, channelID)
	if err != nil {
		logger.GetLogger().WithField("channelId", channelID).WithField("error", err).Debug("Feed fetch failed")
		return []model.Video{}
	}
	videos := make([]model.Video, 0, len(feed.Items))
	for _, item := range feed.Items {
		v, ok := toVideo(item, channelName)
		if !ok {
			continue
		}
		videos = append(videos, v)
	}
	return videos
}

// ChannelTitle returns the feed title without the " - YouTube" suffix.
func (c *FeedClient) ChannelTitle(ctx context.Context, channelID string) (string, error) {
	feed, err := c.feed(ctx, channelID)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(strings.TrimSuffix(feed.Title, " - YouTube"))
	if title == "" {
		return "", fmt.Errorf("channel %s: %w", channelID, repository.ErrNotFound)
	}
	return title, nil
}

func (c *FeedClient) feed(ctx context.Context, channelID string) (*gofeed.Feed, error) {
	u, err := c.FeedURL(channelID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return gofeed.NewParser().Parse(resp.Body)
}

// entryFields holds the YouTube specific parts of an entry; nil means absent.
type entryFields struct {
	videoID     *string
	thumbnail   *string
	views       *int64
	likes       *int64
	description *string
}

func toVideo(item *gofeed.Item, channelName string) (model.Video, bool) {
	f := extractFields(item.Extensions)

	id := ""
	switch {
	case f.videoID != nil && *f.videoID != "":
		id = *f.videoID
	case strings.HasPrefix(item.GUID, "yt:video:"):
		id = strings.TrimPrefix(item.GUID, "yt:video:")
	default:
		id = model.VideoIDFromLink(item.Link)
	}
	if id == "" {
		return model.Video{}, false
	}

	channel := channelName
	if item.Author != nil && item.Author.Name != "" {
		channel = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		channel = item.Authors[0].Name
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	thumb := f.thumbnail
	if thumb == nil {
		fallback := model.DefaultThumbnailURL(id)
		thumb = &fallback
	}

	return model.Video{
		VideoID:      id,
		Title:        strings.TrimSpace(item.Title),
		Channel:      channel,
		Link:         item.Link,
		Published:    published,
		IsShort:      model.IsShortLink(item.Link),
		ThumbnailURL: thumb,
		ViewCount:    f.views,
		LikeCount:    f.likes,
		Description:  f.description,
	}, true
}

func extractFields(e ext.Extensions) entryFields {
	var f entryFields
	if id := first(e["yt"]["videoId"]); id != nil && id.Value != "" {
		v := strings.TrimSpace(id.Value)
		f.videoID = &v
	}
	group := first(e["media"]["group"])
	if group == nil {
		return f
	}
	f.thumbnail = largestThumbnail(group.Children["thumbnail"])
	if d := first(group.Children["description"]); d != nil {
		v := d.Value
		f.description = &v
	}
	if community := first(group.Children["community"]); community != nil {
		if stats := first(community.Children["statistics"]); stats != nil {
			f.views = parseCount(stats.Attrs["views"])
		}
		if rating := first(community.Children["starRating"]); rating != nil {
			f.likes = parseCount(rating.Attrs["count"])
		}
	}
	return f
}

// largestThumbnail picks the biggest declared area; on ties the later entry wins.
func largestThumbnail(thumbs []ext.Extension) *string {
	type candidate struct {
		url   string
		area  int
		index int
	}
	var cs []candidate
	for i, t := range thumbs {
		u := t.Attrs["url"]
		if u == "" {
			continue
		}
		w, _ := strconv.Atoi(t.Attrs["width"])
		h, _ := strconv.Atoi(t.Attrs["height"])
		cs = append(cs, candidate{url: u, area: w * h, index: i})
	}
	if len(cs) == 0 {
		return nil
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].area != cs[j].area {
			return cs[i].area > cs[j].area
		}
		return cs[i].index > cs[j].index
	})
	return &cs[0].url
}

func first(list []ext.Extension) *ext.Extension {
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

var _ repository.IFeedFetcher = (*FeedClient)(nil)
