package youtube

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Test Channel - YouTube</title>
 <entry>
  <id>yt:video:vid00000001</id>
  <yt:videoId>vid00000001</yt:videoId>
  <yt:channelId>UCtest0000000000000000001</yt:channelId>
  <title>First Video</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000001"/>
  <author><name>Test Channel</name></author>
  <published>2024-05-01T10:00:00+00:00</published>
  <updated>2024-05-01T11:00:00+00:00</updated>
  <media:group>
   <media:title>First Video</media:title>
   <media:thumbnail url="https://i1.ytimg.com/vi/vid00000001/default.jpg" width="120" height="90"/>
   <media:thumbnail url="https://i1.ytimg.com/vi/vid00000001/hqdefault.jpg" width="480" height="360"/>
   <media:thumbnail url="https://i1.ytimg.com/vi/vid00000001/mqdefault.jpg" width="320" height="180"/>
   <media:description>Description one</media:description>
   <media:community>
    <media:starRating count="42" average="5.00" min="1" max="5"/>
    <media:statistics views="1000"/>
   </media:community>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:short0000001</id>
  <title>A Short</title>
  <link rel="alternate" href="https://www.youtube.com/shorts/short0000001"/>
  <published>2024-05-02T10:00:00+00:00</published>
 </entry>
 <entry>
  <id>tag:other</id>
  <title>No id anywhere</title>
  <link rel="alternate" href="https://www.youtube.com/channel/UC1"/>
  <published>2024-05-03T10:00:00+00:00</published>
 </entry>
</feed>`

// mockTransport answers every request with a fixed status and body.
type mockTransport struct {
	statusCode int
	body       string
	err        error
	requests   []*http.Request
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestFeedClient_FeedURL(t *testing.T) {
	c := NewFeedClient(nil, "", "")
	u, err := c.FeedURL("UC_x5XG1OV2P6uZZ5FSM9Ttw")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/feeds/videos.xml?channel_id=UC_x5XG1OV2P6uZZ5FSM9Ttw", u)
}

func TestFeedClient_Fetch(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("channel_id")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = io.WriteString(w, sampleAtomFeed)
	}))
	defer srv.Close()

	c := NewFeedClient(srv.Client(), srv.URL, "test-agent")
	videos := c.Fetch(context.Background(), "UCtest0000000000000000001", "Fallback Name")

	assert.Equal(t, "UCtest0000000000000000001", gotQuery)
	assert.Equal(t, "test-agent", gotUA)
	require.Len(t, videos, 2)

	first := videos[0]
	assert.Equal(t, "vid00000001", first.VideoID)
	assert.Equal(t, "First Video", first.Title)
	assert.Equal(t, "Test Channel", first.Channel)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid00000001", first.Link)
	assert.True(t, first.Published.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.False(t, first.IsShort)
	require.NotNil(t, first.ThumbnailURL)
	assert.Equal(t, "https://i1.ytimg.com/vi/vid00000001/hqdefault.jpg", *first.ThumbnailURL)
	require.NotNil(t, first.ViewCount)
	assert.Equal(t, int64(1000), *first.ViewCount)
	require.NotNil(t, first.LikeCount)
	assert.Equal(t, int64(42), *first.LikeCount)
	require.NotNil(t, first.Description)
	assert.Equal(t, "Description one", *first.Description)

	short := videos[1]
	assert.Equal(t, "short0000001", short.VideoID)
	assert.True(t, short.IsShort)
	assert.Equal(t, "Fallback Name", short.Channel)
	assert.Equal(t, "https://img.youtube.com/vi/short0000001/mqdefault.jpg", *short.ThumbnailURL)
	assert.Nil(t, short.ViewCount)
	assert.Nil(t, short.Description)
}

func TestFeedClient_Fetch_Failures(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
	}{
		{"not found", &mockTransport{statusCode: http.StatusNotFound, body: "nope"}},
		{"server error", &mockTransport{statusCode: http.StatusInternalServerError}},
		{"invalid xml", &mockTransport{statusCode: http.StatusOK, body: "<feed><entry>"}},
		{"transport error", &mockTransport{err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFeedClient(&http.Client{Transport: tt.transport}, "", "")
			videos := c.Fetch(context.Background(), "UC1", "Name")
			assert.NotNil(t, videos)
			assert.Empty(t, videos)
			assert.Len(t, tt.transport.requests, 1)
		})
	}
}

func TestFeedClient_Fetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleAtomFeed)
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	videos := NewFeedClient(srv.Client(), srv.URL, "").Fetch(ctx, "UC1", "Name")
	assert.Empty(t, videos)
}

func TestFeedClient_ChannelTitle(t *testing.T) {
	c := NewFeedClient(&http.Client{Transport: &mockTransport{statusCode: http.StatusOK, body: sampleAtomFeed}}, "", "")
	title, err := c.ChannelTitle(context.Background(), "UC1")
	require.NoError(t, err)
	assert.Equal(t, "Test Channel", title)

	empty := strings.Replace(sampleAtomFeed, "<title>Test Channel - YouTube</title>", "", 1)
	c = NewFeedClient(&http.Client{Transport: &mockTransport{statusCode: http.StatusOK, body: empty}}, "", "")
	_, err = c.ChannelTitle(context.Background(), "UC1")
	assert.Error(t, err)
}

func TestLargestThumbnail_TiesPreferLater(t *testing.T) {
	c := NewFeedClient(&http.Client{Transport: &mockTransport{statusCode: http.StatusOK, body: strings.Replace(sampleAtomFeed,
		`<media:thumbnail url="https://i1.ytimg.com/vi/vid00000001/mqdefault.jpg" width="320" height="180"/>`,
		`<media:thumbnail url="https://i1.ytimg.com/vi/vid00000001/tie.jpg" width="480" height="360"/>`, 1)}}, "", "")

	videos := c.Fetch(context.Background(), "UC1", "Name")
	require.NotEmpty(t, videos)
	assert.Equal(t, "https://i1.ytimg.com/vi/vid00000001/tie.jpg", *videos[0].ThumbnailURL)
}
