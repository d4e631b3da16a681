package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"golang.org/x/net/html"
)

var (
	channelPathRe   = regexp.MustCompile(`youtube\.com/channel/([^/?&#]+)`)
	handlePathRe    = regexp.MustCompile(`youtube\.com/(@[^/?&#]+|c/[^/?&#]+)`)
	channelInPageRe = regexp.MustCompile(`channel/([a-zA-Z0-9_-]{24})`)
	channelJSONRe   = regexp.MustCompile(`"channelId":"([^"]+)"`)
)

const maxPageBytes = 4 << 20

// ChannelResolver turns a channel, handle or custom URL into a Subscription.
type ChannelResolver struct {
	httpClient *http.Client
	feeds      *FeedClient
	userAgent  string
}

func NewChannelResolver(httpClient *http.Client, feeds *FeedClient, userAgent string) *ChannelResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ChannelResolver{httpClient: httpClient, feeds: feeds, userAgent: userAgent}
}

func (r *ChannelResolver) Resolve(ctx context.Context, rawURL string) (model.Subscription, error) {
	var channelID string
	switch {
	case channelPathRe.MatchString(rawURL):
		channelID = channelPathRe.FindStringSubmatch(rawURL)[1]
	case handlePathRe.MatchString(rawURL):
		id, err := r.channelIDFromPage(ctx, rawURL)
		if err != nil {
			return model.Subscription{}, err
		}
		channelID = id
	default:
		return model.Subscription{}, fmt.Errorf("unrecognised channel URL %q", rawURL)
	}

	title, err := r.feeds.ChannelTitle(ctx, channelID)
	if err != nil {
		return model.Subscription{}, fmt.Errorf("read channel title: %w", err)
	}
	return model.Subscription{
		ChannelID:  channelID,
		ChannelURL: "https://www.youtube.com/channel/" + channelID,
		Title:      title,
	}, nil
}

func (r *ChannelResolver) channelIDFromPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	if id := channelIDFromHead(string(body)); id != "" {
		return id, nil
	}
	page := string(body)
	for _, re := range []*regexp.Regexp{channelInPageRe, channelJSONRe} {
		if m := re.FindStringSubmatch(page); m != nil {
			logger.GetLogger().WithField("url", pageURL).Debug("Channel id taken from page body")
			return m[1], nil
		}
	}
	return "", fmt.Errorf("channel id in %s: %w", pageURL, repository.ErrNotFound)
}

// channelIDFromHead looks at the canonical link first, then og:url.
func channelIDFromHead(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	var canonical, ogURL string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "link":
				if attr(n, "rel") == "canonical" && canonical == "" {
					canonical = attr(n, "href")
				}
			case "meta":
				if attr(n, "property") == "og:url" && ogURL == "" {
					ogURL = attr(n, "content")
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, u := range []string{canonical, ogURL} {
		if m := channelPathRe.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
