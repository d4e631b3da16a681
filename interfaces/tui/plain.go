package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/dto"
	"github.com/frankmarazita/yt-subscription-cli/usecase"
)

const plainMinWidth = 60

// WritePlain prints the catalog as grouped, uncoloured text for output that is
// not an interactive terminal.
func WritePlain(w io.Writer, catalog *dto.Catalog, now time.Time, width int) error {
	videos := usecase.DeriveView(catalog.Videos, catalog.WatchLater, false)

	available := max(width-10, plainMinWidth)
	channelWidth := available * 25 / 100
	titleWidth := available * 55 / 100

	var b strings.Builder
	fmt.Fprintf(&b, "📺 YouTube Subscription Feed  %s\n\n", updatedLabel(catalog.LoadedAt, now, catalog.FromCache))
	fmt.Fprintf(&b, "Found %d videos\n", len(videos))

	var day string
	for i, v := range videos {
		if label := dayLabel(v.Published, now); label != day {
			day = label
			n := 0
			for _, rest := range videos[i:] {
				if dayLabel(rest.Published, now) != label {
					break
				}
				n++
			}
			fmt.Fprintf(&b, "\n%s (%d videos)\n", label, n)
		}
		marker := ""
		if catalog.WatchLater.Contains(v.VideoID) {
			marker = " ★"
		}
		fmt.Fprintf(&b, "  %s | %s | %s%s\n", truncate(v.Channel, channelWidth), truncate(v.Title, titleWidth), TimeAgo(v.Published, now), marker)
		fmt.Fprintf(&b, "    🔗 %s\n", v.Link)
	}

	fmt.Fprintf(&b, "\n%s\nShowing %d videos\n", strings.Repeat("=", max(width-4, 40)), len(videos))
	_, err := io.WriteString(w, b.String())
	return err
}

func dayLabel(published, now time.Time) string {
	p := published.In(now.Location())
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch {
	case !p.Before(today):
		return "Today"
	case !p.Before(today.AddDate(0, 0, -1)):
		return "Yesterday"
	}
	return p.Format("Monday, 2 January 2006")
}
