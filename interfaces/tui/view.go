package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/usecase"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	columnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("11")).Foreground(lipgloss.Color("0")).Bold(true)
	previewStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

const progressBarWidth = 30

var compactAge = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: humanize.Day, Format: "%dh %s", DivBy: time.Hour},
	{D: humanize.Week, Format: "%dd %s", DivBy: humanize.Day},
	{D: humanize.Month, Format: "%dw %s", DivBy: humanize.Week},
	{D: humanize.Year, Format: "%dmo %s", DivBy: humanize.Month},
	{D: humanize.LongTime, Format: "%dy %s", DivBy: humanize.Year},
}

// TimeAgo formats published relative to now, e.g. "3h ago".
func TimeAgo(published, now time.Time) string {
	return humanize.CustomRelTime(published, now, "ago", "from now", compactAge)
}

// AgeColor highlights recent uploads.
func AgeColor(published, now time.Time) lipgloss.Color {
	age := now.Sub(published)
	switch {
	case age < 2*time.Hour:
		return lipgloss.Color("9")
	case age < 24*time.Hour:
		return lipgloss.Color("11")
	case age < 7*24*time.Hour:
		return lipgloss.Color("14")
	}
	return lipgloss.Color("10")
}

// ChannelColor derives a stable, light colour from a channel name.
func ChannelColor(name string) lipgloss.Color {
	var hash int32
	for _, r := range name {
		hash = int32(r) + (hash << 5) - hash
	}
	var rgb [3]int
	for i := range rgb {
		rgb[i] = min(255, int((hash>>(i*8))&0xff)+100)
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]))
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	var sb strings.Builder
	used := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width-1 {
			break
		}
		sb.WriteRune(r)
		used += w
	}
	sb.WriteString("…")
	return sb.String()
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func fit(s string, width int) string { return pad(truncate(s, width), width) }

func (m Model) View() string {
	s := m.state
	if s.Viewport.Width == 0 {
		return "Loading…"
	}

	var body string
	switch {
	case !s.HasCatalog && s.Phase == usecase.PhaseError:
		body = errorStyle.Render("Failed to load videos: "+s.Err) + "\n" + mutedStyle.Render("Press r to retry or q to quit.")
	case !s.HasCatalog:
		body = m.loadingView()
	case s.ShowPreview && s.Viewport.PreviewWidth > 0:
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.listView(), m.previewView())
	default:
		body = m.listView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m Model) headerView() string {
	s := m.state
	left := titleStyle.Render("📺 YouTube Subscription Feed")

	var right string
	switch {
	case s.InFlight:
		status := s.Status
		if status == "" {
			status = "Refreshing…"
		}
		right = warnStyle.Render(fmt.Sprintf("🔄 %s %d/%d", status, s.Progress.Current, s.Progress.Total))
	case s.Phase == usecase.PhaseError:
		right = errorStyle.Render("Refresh failed: " + s.Err)
	case s.HasCatalog:
		right = mutedStyle.Render(m.updatedLabel())
	}

	gap := max(1, s.Viewport.Width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) updatedLabel() string {
	return updatedLabel(m.state.LoadedAt, m.opts.Now(), m.state.FromCache)
}

func updatedLabel(loadedAt, now time.Time, fromCache bool) string {
	minutes := int(now.Sub(loadedAt) / time.Minute)
	label := "Updated just now"
	if minutes > 0 {
		label = fmt.Sprintf("Updated %dm ago", minutes)
	}
	if fromCache {
		label += " (cached)"
	}
	return label
}

func (m Model) loadingView() string {
	s := m.state
	status := s.Status
	if status == "" {
		status = "Loading…"
	}
	lines := []string{warnStyle.Render(status)}
	if s.Progress.Total > 0 {
		filled := s.Progress.Current * progressBarWidth / s.Progress.Total
		bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
		lines = append(lines, fmt.Sprintf("%s %d/%d channels", accentStyle.Render(bar), s.Progress.Current, s.Progress.Total))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

// rowPrefix is the selection marker plus the watch later and watched markers.
const rowPrefix = 6

func (m Model) listView() string {
	s := m.state
	c := s.Viewport.Columns

	lines := make([]string, 0, s.Viewport.ListHeight+1)
	lines = append(lines, columnStyle.Render(strings.Repeat(" ", rowPrefix)+fit("Channel", c.Channel)+" "+fit("Title", c.Title)+" "+fit("Published", c.Date)))

	if len(s.View) == 0 {
		msg := "No videos found."
		if s.WatchLaterOnly {
			msg = "No videos in Watch Later. Press l to show all videos."
		}
		lines = append(lines, mutedStyle.Render(msg))
	}
	now := m.opts.Now()
	for i, v := range s.Visible() {
		lines = append(lines, m.rowView(v, s.Offset+i == s.Selected, now))
	}
	for len(lines) < s.Viewport.ListHeight+1 {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(s.Viewport.ListWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) rowView(v model.Video, selected bool, now time.Time) string {
	s := m.state
	c := s.Viewport.Columns

	marker := "  "
	if selected {
		marker = "▶ "
	}
	later, seen := " ", " "
	if s.WatchLater.Contains(v.VideoID) {
		later = "★"
	}
	if s.Watched.Contains(v.VideoID) {
		seen = "●"
	}
	prefix := marker + later + " " + seen + " "
	channel := fit(v.Channel, c.Channel)
	title := fit(v.Title, c.Title)
	date := fit(TimeAgo(v.Published, now), c.Date)

	if selected {
		return selectedStyle.Render(prefix + channel + " " + title + " " + date)
	}
	titleRendered := title
	if s.Watched.Contains(v.VideoID) {
		titleRendered = mutedStyle.Render(title)
	}
	return warnStyle.Render(marker+later) + " " + mutedStyle.Render(seen) + " " +
		lipgloss.NewStyle().Foreground(ChannelColor(v.Channel)).Render(channel) + " " +
		titleRendered + " " +
		lipgloss.NewStyle().Foreground(AgeColor(v.Published, now)).Render(date)
}

func (m Model) previewView() string {
	s := m.state
	inner := max(1, s.Viewport.PreviewWidth-4)
	box := previewStyle.Width(inner + 2).MaxHeight(s.Viewport.ListHeight + 1)

	v, ok := s.SelectedVideo()
	if !ok {
		return box.Render(mutedStyle.Render("Nothing selected"))
	}

	w, h := s.PreviewSize()
	image, ok := m.opts.Thumbnails.Get(v, w, h)
	if !ok {
		image = lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, mutedStyle.Render("Loading preview…"))
	}

	details := []string{
		image,
		"",
		accentStyle.Bold(true).Render(truncate(v.Title, inner*2)),
		lipgloss.NewStyle().Foreground(ChannelColor(v.Channel)).Render(truncate(v.Channel, inner)),
		mutedStyle.Render(v.Published.Local().Format("Mon 2 Jan 2006 15:04")),
	}
	var stats []string
	if v.ViewCount != nil {
		stats = append(stats, humanize.Comma(*v.ViewCount)+" views")
	}
	if v.LikeCount != nil {
		stats = append(stats, humanize.Comma(*v.LikeCount)+" likes")
	}
	if len(stats) > 0 {
		details = append(details, mutedStyle.Render(strings.Join(stats, " · ")))
	}
	if v.Description != nil && *v.Description != "" {
		details = append(details, "", truncate(strings.Join(strings.Fields(*v.Description), " "), inner*3))
	}
	return box.Render(strings.Join(details, "\n"))
}

func (m Model) footerView() string {
	s := m.state
	width := s.Viewport.ListWidth
	lines := []string{mutedStyle.Render(strings.Repeat("=", max(0, width)))}

	filter := ""
	if s.WatchLaterOnly {
		filter = fmt.Sprintf("Watch Later Filter: ON (%d/%d)", len(s.View), len(s.Catalog))
	}
	if v, ok := s.SelectedVideo(); ok {
		lines = append(lines, accentStyle.Render(truncate(v.Title, width*8/10)))
		detail := mutedStyle.Render(fmt.Sprintf("%s | Date: %s", v.Channel, v.Published.Local().Format("2006-01-02 15:04")))
		if filter != "" {
			detail += warnStyle.Render(" | " + filter)
		}
		lines = append(lines, detail)
	} else if filter != "" {
		lines = append(lines, warnStyle.Render(filter))
	}

	if s.Notice != "" {
		lines = append(lines, errorStyle.Render(s.Notice))
	}
	lines = append(lines, mutedStyle.Render(truncate("↑↓/jk: Navigate | PgUp/PgDn: Jump | Enter/o: Open | w: Watch Later | m: Toggle Watched | l: Filter Watch Later | r: Refresh | p: Preview | q/Esc: Quit", s.Viewport.Width)))
	return strings.Join(lines, "\n")
}
