package usecase

import (
	"sort"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/dto"
	"github.com/frankmarazita/yt-subscription-cli/domain/model"
)

// NoSelection is the selection index of an empty view.
const NoSelection = -1

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseRefreshing
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// BrowseState is everything the browse session shows. It is a value: Transition
// returns a new state and never mutates the sets it was given.
type BrowseState struct {
	Phase    Phase
	InFlight bool

	// Catalog is the last successfully loaded set of videos, replaced wholesale.
	Catalog    []model.Video
	HasCatalog bool
	// Generation increases with every successful load.
	Generation int
	LoadedAt   time.Time
	FromCache  bool

	WatchLater model.VideoIDSet
	Watched    model.VideoIDSet

	WatchLaterOnly bool
	ShowPreview    bool
	AutoRefresh    bool

	// View is the filtered, newest-first list derived from the fields above.
	View     []model.Video
	Selected int
	Offset   int

	Viewport Viewport
	Sizing   ThumbnailSizing

	Status        string
	Progress      dto.Progress
	Err           string
	Notice        string
	PrefetchLimit int
}

// BrowseOptions seeds a new session.
type BrowseOptions struct {
	ShowPreview   bool
	AutoRefresh   bool
	PrefetchLimit int
	Sizing        ThumbnailSizing
	Width, Height int
}

func NewBrowseState(opts BrowseOptions) BrowseState {
	s := BrowseState{
		Phase:         PhaseLoading,
		WatchLater:    model.NewVideoIDSet(),
		Watched:       model.NewVideoIDSet(),
		ShowPreview:   opts.ShowPreview,
		AutoRefresh:   opts.AutoRefresh,
		Selected:      NoSelection,
		Sizing:        opts.Sizing,
		PrefetchLimit: opts.PrefetchLimit,
	}
	if s.Sizing == (ThumbnailSizing{}) {
		s.Sizing = DefaultThumbnailSizing()
	}
	s.Viewport = ComputeViewport(opts.Width, opts.Height, s.ShowPreview)
	return s
}

// SelectedVideo returns the highlighted video, if any.
func (s BrowseState) SelectedVideo() (model.Video, bool) {
	if s.Selected < 0 || s.Selected >= len(s.View) {
		return model.Video{}, false
	}
	return s.View[s.Selected], true
}

// Visible returns the slice of the view inside the scroll window.
func (s BrowseState) Visible() []model.Video {
	if len(s.View) == 0 {
		return nil
	}
	end := min(len(s.View), s.Offset+s.Viewport.ListHeight)
	return s.View[s.Offset:end]
}

// PreviewSize is the rendered thumbnail size for the current viewport.
func (s BrowseState) PreviewSize() (int, int) {
	return s.Sizing.Target(s.Viewport.PreviewWidth, s.Viewport.ListHeight)
}

// DeriveView drops shorts, optionally keeps only watch-later entries and sorts newest first.
func DeriveView(catalog []model.Video, watchLater model.VideoIDSet, watchLaterOnly bool) []model.Video {
	view := make([]model.Video, 0, len(catalog))
	for _, v := range catalog {
		if v.IsShort {
			continue
		}
		if watchLaterOnly && !watchLater.Contains(v.VideoID) {
			continue
		}
		view = append(view, v)
	}
	sort.SliceStable(view, func(i, j int) bool {
		if !view[i].Published.Equal(view[j].Published) {
			return view[i].Published.After(view[j].Published)
		}
		return view[i].VideoID < view[j].VideoID
	})
	return view
}

// refilter recomputes the view, keeping the selected video when it survives and
// clamping the old index otherwise.
func (s *BrowseState) refilter() {
	prev, had := s.SelectedVideo()
	oldIndex := s.Selected
	s.View = DeriveView(s.Catalog, s.WatchLater, s.WatchLaterOnly)

	if len(s.View) == 0 {
		s.Selected, s.Offset = NoSelection, 0
		return
	}
	if had {
		for i, v := range s.View {
			if v.VideoID == prev.VideoID {
				s.Selected = i
				s.scroll()
				return
			}
		}
	}
	s.Selected = clamp(oldIndex, 0, len(s.View)-1)
	s.scroll()
}

// reset recomputes the view for a new catalog with the selection on the first row.
func (s *BrowseState) reset() {
	s.View = DeriveView(s.Catalog, s.WatchLater, s.WatchLaterOnly)
	s.Offset = 0
	if len(s.View) == 0 {
		s.Selected = NoSelection
		return
	}
	s.Selected = 0
}

// scroll moves the window the least distance that keeps the selection visible.
func (s *BrowseState) scroll() {
	if s.Selected < 0 {
		s.Offset = 0
		return
	}
	page := max(1, s.Viewport.ListHeight)
	if s.Selected < s.Offset {
		s.Offset = s.Selected
	} else if s.Selected >= s.Offset+page {
		s.Offset = s.Selected - page + 1
	}
	s.Offset = clamp(s.Offset, 0, max(0, len(s.View)-page))
	if s.Selected < s.Offset {
		s.Offset = s.Selected
	}
}

func (s *BrowseState) moveTo(index int) {
	if len(s.View) == 0 {
		return
	}
	s.Selected = clamp(index, 0, len(s.View)-1)
	s.scroll()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
