package usecase

import "math"

// Preferred column widths; extra space is shared out only above their sum.
const (
	ChannelMinWidth = 20
	TitleMinWidth   = 40
	DateMinWidth    = 12

	// Floors applied to the scaled widths when the terminal is narrower than the
	// preferred widths.
	ChannelShrinkFloor = 15
	TitleShrinkFloor   = 30
	DateShrinkFloor    = 10

	// Absolute floors while overflow is clawed back.
	ChannelFloor = 12
	TitleFloor   = 15
	DateFloor    = 8

	// Columns consumed by the row's markers, separators and padding.
	RowChrome = 15
	// Rows taken by the header, footer and list chrome.
	ScreenChrome = 10

	PreviewMaxWidth = 60
)

// Columns are the widths of the three text columns of a row.
type Columns struct {
	Channel int
	Title   int
	Date    int
}

func (c Columns) Sum() int { return c.Channel + c.Title + c.Date }

// ColumnWidths splits the available width between channel, title and date.
//
// Above the preferred total the surplus goes 20% to channel, 65% to title and the
// rest to date, so the columns fill the width exactly. Below it every column is
// scaled down with a generous floor, and any overflow is then taken back from the
// title first and split between date and channel, down to the absolute floors.
func ColumnWidths(available int) Columns {
	if r := available - (ChannelMinWidth + TitleMinWidth + DateMinWidth); r > 0 {
		extraChannel := r * 20 / 100
		extraTitle := r * 65 / 100
		return Columns{
			Channel: ChannelMinWidth + extraChannel,
			Title:   TitleMinWidth + extraTitle,
			Date:    DateMinWidth + r - extraChannel - extraTitle,
		}
	}

	scale := math.Min(1, float64(available)/float64(ChannelMinWidth+TitleMinWidth+DateMinWidth))
	c := Columns{
		Channel: max(ChannelShrinkFloor, int(math.Floor(ChannelMinWidth*scale))),
		Title:   max(TitleShrinkFloor, int(math.Floor(TitleMinWidth*scale))),
		Date:    max(DateShrinkFloor, int(math.Floor(DateMinWidth*scale))),
	}

	if overflow := c.Sum() - available; overflow > 0 {
		c.Title = max(TitleFloor, c.Title-overflow)
	}
	if overflow := c.Sum() - available; overflow > 0 {
		c.Date = max(DateFloor, c.Date-(overflow+1)/2)
		c.Channel = max(ChannelFloor, c.Channel-overflow/2)
	}
	return c
}

// Viewport is the derived geometry of the list and preview panels.
type Viewport struct {
	Width, Height int
	PreviewWidth  int
	ListWidth     int
	ListHeight    int
	Columns       Columns
}

// PageStep is how far a page key moves the selection.
func (v Viewport) PageStep() int { return max(1, v.ListHeight-1) }

// ComputeViewport lays out a terminal of width x height.
func ComputeViewport(width, height int, showPreview bool) Viewport {
	v := Viewport{Width: width, Height: height}
	if showPreview {
		v.PreviewWidth = min(PreviewMaxWidth, width/2)
	}
	v.ListWidth = width - v.PreviewWidth
	v.ListHeight = max(1, height-ScreenChrome)
	v.Columns = ColumnWidths(v.ListWidth - RowChrome)
	return v
}

// ThumbnailSizing derives the rendered thumbnail size from the preview panel size.
type ThumbnailSizing struct {
	SmallBreakpoint  int
	MediumBreakpoint int
	LargeBreakpoint  int
	MaxWidth         int
	MaxHeight        int
}

func DefaultThumbnailSizing() ThumbnailSizing {
	return ThumbnailSizing{SmallBreakpoint: 30, MediumBreakpoint: 45, LargeBreakpoint: 70, MaxWidth: 60, MaxHeight: 20}
}

// panelBorder is the border plus padding of the preview panel on each axis.
const panelBorder = 4

// Target quantizes the panel (width to tens, height to fives) so small resizes
// keep hitting the same cache entries, then applies the width step function.
func (s ThumbnailSizing) Target(panelWidth, panelHeight int) (int, int) {
	qw := panelWidth / 10 * 10
	qh := panelHeight / 5 * 5

	a := qw - panelBorder
	var w int
	switch {
	case a < s.SmallBreakpoint:
		w = a
	case a < s.MediumBreakpoint:
		w = a * 90 / 100
	case a < s.LargeBreakpoint:
		w = a * 80 / 100
	default:
		w = min(a*70/100, s.MaxWidth)
	}
	h := min(qh-panelBorder, s.MaxHeight)
	return max(1, w), max(1, h)
}
