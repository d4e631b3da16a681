package usecase

import (
	"fmt"

	"github.com/frankmarazita/yt-subscription-cli/domain/dto"
	"github.com/frankmarazita/yt-subscription-cli/domain/model"
)

// Event is an input to Transition: a key press, a timer or the result of an Effect.
type Event interface{ event() }

type (
	LoadRequested   struct{ Force bool }
	AutoRefreshTick struct{}
	LoadProgressed  struct{ Progress dto.Progress }
	LoadSucceeded   struct{ Catalog *dto.Catalog }
	LoadFailed      struct{ Err error }
	Resized         struct{ Width, Height int }
	MoveSelection   struct{ Delta int }
	// MovePage moves by one page; Direction is -1 or 1.
	MovePage struct{ Direction int }
	// JumpTo moves to the first or, when Last is set, the final row.
	JumpTo                    struct{ Last bool }
	ToggleWatchLaterOnly      struct{}
	TogglePreview             struct{}
	ToggleWatchLaterRequested struct{}
	WatchLaterToggled         struct {
		VideoID string
		Added   bool
	}
	ToggleWatchedRequested struct{}
	WatchedToggled         struct {
		VideoID string
		Watched bool
	}
	OpenSelected      struct{}
	WatchedMarked     struct{ VideoID string }
	PersistenceFailed struct {
		Op  string
		Err error
	}
	PreferencesChanged struct{ ThumbnailPreview, AutoRefresh bool }
	PreviewReady       struct{ VideoID string }
	DismissNotice      struct{}
	ExitRequested      struct{}
)

func (LoadRequested) event()             {}
func (AutoRefreshTick) event()           {}
func (LoadProgressed) event()            {}
func (LoadSucceeded) event()             {}
func (LoadFailed) event()                {}
func (Resized) event()                   {}
func (MoveSelection) event()             {}
func (MovePage) event()                  {}
func (JumpTo) event()                    {}
func (ToggleWatchLaterOnly) event()      {}
func (TogglePreview) event()             {}
func (ToggleWatchLaterRequested) event() {}
func (WatchLaterToggled) event()         {}
func (ToggleWatchedRequested) event()    {}
func (WatchedToggled) event()            {}
func (OpenSelected) event()              {}
func (WatchedMarked) event()             {}
func (PersistenceFailed) event()         {}
func (PreferencesChanged) event()        {}
func (PreviewReady) event()              {}
func (DismissNotice) event()             {}
func (ExitRequested) event()             {}

// Effect is work the host performs on behalf of Transition.
type Effect interface{ effect() }

type (
	LoadCatalog      struct{ Force bool }
	ToggleWatchLater struct{ VideoID string }
	ToggleWatched    struct{ VideoID string }
	MarkWatched      struct{ VideoID string }
	OpenVideo        struct{ Video model.Video }
	LoadPreview      struct {
		Video         model.Video
		Width, Height int
	}
	PrefetchPreviews struct {
		Videos        []model.Video
		Width, Height int
		Limit         int
	}
	SavePreferences struct{ ThumbnailPreview, AutoRefresh bool }
	// NotifyRefresh tells the host a user or timer refresh started.
	NotifyRefresh struct{}
	Exit          struct{}
)

func (LoadCatalog) effect()      {}
func (ToggleWatchLater) effect() {}
func (ToggleWatched) effect()    {}
func (MarkWatched) effect()      {}
func (OpenVideo) effect()        {}
func (LoadPreview) effect()      {}
func (PrefetchPreviews) effect() {}
func (SavePreferences) effect()  {}
func (NotifyRefresh) effect()    {}
func (Exit) effect()             {}

// Transition applies e to s. It performs no I/O; the returned effects do.
func Transition(s BrowseState, e Event) (BrowseState, []Effect) {
	switch ev := e.(type) {
	case LoadRequested:
		return startLoad(s, ev.Force)

	case AutoRefreshTick:
		if s.Phase != PhaseReady || !s.AutoRefresh || s.InFlight {
			return s, nil
		}
		return startLoad(s, true)

	case LoadProgressed:
		if !s.InFlight {
			return s, nil
		}
		if ev.Progress.IsStatus() {
			s.Status = ev.Progress.Status
		} else {
			s.Progress = ev.Progress
		}
		return s, nil

	case LoadSucceeded:
		if !s.InFlight || ev.Catalog == nil {
			return s, nil
		}
		c := ev.Catalog
		s.InFlight = false
		s.Phase = PhaseReady
		s.Err = ""
		s.Status = ""
		s.Catalog = c.Videos
		s.HasCatalog = true
		s.Generation++
		s.LoadedAt = c.LoadedAt
		s.FromCache = c.FromCache
		if c.WatchLater != nil {
			s.WatchLater = c.WatchLater.Clone()
		}
		if c.Watched != nil {
			s.Watched = c.Watched.Clone()
		}
		s.reset()
		return s, previewEffects(s, true)

	case LoadFailed:
		if !s.InFlight {
			return s, nil
		}
		s.InFlight = false
		s.Phase = PhaseError
		s.Status = ""
		s.Err = errorMessage(ev.Err)
		return s, nil

	case Resized:
		s.Viewport = ComputeViewport(ev.Width, ev.Height, s.ShowPreview)
		s.scroll()
		return s, previewEffects(s, false)

	case MoveSelection:
		if len(s.View) == 0 || ev.Delta == 0 {
			return s, nil
		}
		s.moveTo(s.Selected + ev.Delta)
		return s, previewEffects(s, true)

	case MovePage:
		if len(s.View) == 0 || ev.Direction == 0 {
			return s, nil
		}
		step := s.Viewport.PageStep()
		if ev.Direction < 0 {
			step = -step
		}
		s.moveTo(s.Selected + step)
		return s, previewEffects(s, true)

	case JumpTo:
		if len(s.View) == 0 {
			return s, nil
		}
		if ev.Last {
			s.moveTo(len(s.View) - 1)
		} else {
			s.moveTo(0)
		}
		return s, previewEffects(s, true)

	case ToggleWatchLaterOnly:
		s.WatchLaterOnly = !s.WatchLaterOnly
		s.refilter()
		return s, previewEffects(s, true)

	case TogglePreview:
		s.ShowPreview = !s.ShowPreview
		s.Viewport = ComputeViewport(s.Viewport.Width, s.Viewport.Height, s.ShowPreview)
		s.scroll()
		effects := []Effect{SavePreferences{ThumbnailPreview: s.ShowPreview, AutoRefresh: s.AutoRefresh}}
		return s, append(effects, previewEffects(s, true)...)

	case PreferencesChanged:
		previewChanged := s.ShowPreview != ev.ThumbnailPreview
		s.ShowPreview = ev.ThumbnailPreview
		s.AutoRefresh = ev.AutoRefresh
		if !previewChanged {
			return s, nil
		}
		s.Viewport = ComputeViewport(s.Viewport.Width, s.Viewport.Height, s.ShowPreview)
		s.scroll()
		return s, previewEffects(s, true)

	case ToggleWatchLaterRequested:
		if v, ok := s.SelectedVideo(); ok {
			return s, []Effect{ToggleWatchLater{VideoID: v.VideoID}}
		}
		return s, nil

	case WatchLaterToggled:
		if ev.Added {
			s.WatchLater = s.WatchLater.With(ev.VideoID)
		} else {
			s.WatchLater = s.WatchLater.Without(ev.VideoID)
		}
		if s.WatchLaterOnly {
			s.refilter()
			return s, previewEffects(s, true)
		}
		return s, nil

	case ToggleWatchedRequested:
		if v, ok := s.SelectedVideo(); ok {
			return s, []Effect{ToggleWatched{VideoID: v.VideoID}}
		}
		return s, nil

	case WatchedToggled:
		if ev.Watched {
			s.Watched = s.Watched.With(ev.VideoID)
		} else {
			s.Watched = s.Watched.Without(ev.VideoID)
		}
		return s, nil

	case OpenSelected:
		if v, ok := s.SelectedVideo(); ok {
			return s, []Effect{MarkWatched{VideoID: v.VideoID}, OpenVideo{Video: v}}
		}
		return s, nil

	case WatchedMarked:
		s.Watched = s.Watched.With(ev.VideoID)
		return s, nil

	case PersistenceFailed:
		s.Notice = fmt.Sprintf("Could not %s: %s", ev.Op, errorMessage(ev.Err))
		return s, nil

	case DismissNotice:
		s.Notice = ""
		return s, nil

	case PreviewReady:
		return s, nil

	case ExitRequested:
		return s, []Effect{Exit{}}
	}
	return s, nil
}

// startLoad dispatches a load unless one is already running.
func startLoad(s BrowseState, force bool) (BrowseState, []Effect) {
	if s.InFlight {
		return s, nil
	}
	s.InFlight = true
	s.Status = ""
	s.Progress = dto.Progress{}
	if s.HasCatalog {
		s.Phase = PhaseRefreshing
		return s, []Effect{NotifyRefresh{}, LoadCatalog{Force: force}}
	}
	s.Phase = PhaseLoading
	return s, []Effect{LoadCatalog{Force: force}}
}

// previewEffects asks for the selected thumbnail and, when prefetch is set, the next few.
func previewEffects(s BrowseState, prefetch bool) []Effect {
	if !s.ShowPreview {
		return nil
	}
	v, ok := s.SelectedVideo()
	if !ok {
		return nil
	}
	w, h := s.PreviewSize()
	effects := []Effect{LoadPreview{Video: v, Width: w, Height: h}}
	if prefetch && s.PrefetchLimit > 0 && s.Selected+1 < len(s.View) {
		end := min(len(s.View), s.Selected+1+s.PrefetchLimit)
		upcoming := append([]model.Video(nil), s.View[s.Selected+1:end]...)
		effects = append(effects, PrefetchPreviews{Videos: upcoming, Width: w, Height: h, Limit: s.PrefetchLimit})
	}
	return effects
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
