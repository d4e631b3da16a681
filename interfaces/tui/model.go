package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/frankmarazita/yt-subscription-cli/domain/dto"
	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"
	"github.com/frankmarazita/yt-subscription-cli/usecase"
)

const noticeTimeout = 4 * time.Second

// Options wires the browse session to its collaborators. Catalog, Store and
// Thumbnails are required; the callbacks are optional.
type Options struct {
	Catalog    usecase.ICatalogService
	Store      repository.IVideoCache
	Thumbnails repository.IThumbnailCache

	Browse          usecase.BrowseOptions
	RefreshInterval time.Duration

	// OnSelect opens a video; it runs off the event loop.
	OnSelect        func(model.Video) error
	OnExit          func()
	OnRefresh       func()
	SavePreferences func(thumbnailPreview, autoRefresh bool) error

	Now func() time.Time
}

type progressMsg struct {
	progress dto.Progress
	events   <-chan dto.Progress
	done     <-chan usecase.Event
}

type tickMsg time.Time

type clearNoticeMsg struct{ id int }

// Model hosts a usecase.BrowseState inside a bubbletea program. Any usecase.Event
// sent to the program, for example a preferences change, is applied as is.
type Model struct {
	ctx      context.Context
	opts     Options
	state    usecase.BrowseState
	noticeID int
}

func NewModel(ctx context.Context, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 5 * time.Minute
	}
	return Model{ctx: ctx, opts: opts, state: usecase.NewBrowseState(opts.Browse)}
}

// State is the current browse state.
func (m Model) State() usecase.BrowseState { return m.state }

func (m Model) Init() tea.Cmd {
	return tea.Batch(func() tea.Msg { return usecase.LoadRequested{} }, m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.apply(usecase.Resized{Width: msg.Width, Height: msg.Height})

	case tea.KeyMsg:
		if e := keyEvent(msg); e != nil {
			return m.apply(e)
		}
		return m, nil

	case progressMsg:
		next, _ := m.apply(usecase.LoadProgressed{Progress: msg.progress})
		return next, waitForLoad(msg.events, msg.done)

	case tickMsg:
		next, cmd := m.apply(usecase.AutoRefreshTick{})
		return next, tea.Batch(cmd, m.tick())

	case clearNoticeMsg:
		if msg.id != m.noticeID {
			return m, nil
		}
		return m.apply(usecase.DismissNotice{})

	case usecase.Event:
		return m.apply(msg)
	}
	return m, nil
}

func keyEvent(msg tea.KeyMsg) usecase.Event {
	switch msg.String() {
	case "up", "k":
		return usecase.MoveSelection{Delta: -1}
	case "down", "j":
		return usecase.MoveSelection{Delta: 1}
	case "pgup":
		return usecase.MovePage{Direction: -1}
	case "pgdown":
		return usecase.MovePage{Direction: 1}
	case "home", "g":
		return usecase.JumpTo{}
	case "end", "G":
		return usecase.JumpTo{Last: true}
	case "enter", "o":
		return usecase.OpenSelected{}
	case "w":
		return usecase.ToggleWatchLaterRequested{}
	case "m":
		return usecase.ToggleWatchedRequested{}
	case "l":
		return usecase.ToggleWatchLaterOnly{}
	case "p":
		return usecase.TogglePreview{}
	case "r":
		return usecase.LoadRequested{Force: true}
	case "q", "esc", "ctrl+c":
		return usecase.ExitRequested{}
	}
	return nil
}

// apply runs one transition and turns its effects into commands.
func (m Model) apply(e usecase.Event) (tea.Model, tea.Cmd) {
	prevNotice := m.state.Notice
	state, effects := usecase.Transition(m.state, e)
	m.state = state

	cmds := make([]tea.Cmd, 0, len(effects)+1)
	for _, effect := range effects {
		if cmd := m.run(effect); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if m.state.Notice != "" && m.state.Notice != prevNotice {
		m.noticeID++
		id := m.noticeID
		cmds = append(cmds, tea.Tick(noticeTimeout, func(time.Time) tea.Msg { return clearNoticeMsg{id: id} }))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) run(effect usecase.Effect) tea.Cmd {
	switch ef := effect.(type) {
	case usecase.LoadCatalog:
		return m.load(ef.Force)

	case usecase.NotifyRefresh:
		if m.opts.OnRefresh == nil {
			return nil
		}
		return func() tea.Msg {
			m.opts.OnRefresh()
			return nil
		}

	case usecase.ToggleWatchLater:
		store, ctx := m.opts.Store, m.ctx
		return func() tea.Msg {
			added, err := store.ToggleWatchLater(ctx, ef.VideoID)
			if err != nil {
				return usecase.PersistenceFailed{Op: "update watch later", Err: err}
			}
			return usecase.WatchLaterToggled{VideoID: ef.VideoID, Added: added}
		}

	case usecase.ToggleWatched:
		store, ctx := m.opts.Store, m.ctx
		return func() tea.Msg {
			watched, err := store.ToggleWatched(ctx, ef.VideoID)
			if err != nil {
				return usecase.PersistenceFailed{Op: "update watch history", Err: err}
			}
			return usecase.WatchedToggled{VideoID: ef.VideoID, Watched: watched}
		}

	case usecase.MarkWatched:
		store, ctx := m.opts.Store, m.ctx
		return func() tea.Msg {
			if err := store.MarkWatched(ctx, ef.VideoID); err != nil {
				return usecase.PersistenceFailed{Op: "mark as watched", Err: err}
			}
			return usecase.WatchedMarked{VideoID: ef.VideoID}
		}

	case usecase.OpenVideo:
		if m.opts.OnSelect == nil {
			return nil
		}
		onSelect := m.opts.OnSelect
		return func() tea.Msg {
			if err := onSelect(ef.Video); err != nil {
				return usecase.PersistenceFailed{Op: "open video", Err: err}
			}
			return nil
		}

	case usecase.LoadPreview:
		thumbs, ctx := m.opts.Thumbnails, m.ctx
		if _, ok := thumbs.Get(ef.Video, ef.Width, ef.Height); ok {
			return nil
		}
		return func() tea.Msg {
			thumbs.LoadOrFetch(ctx, ef.Video, ef.Width, ef.Height)
			return usecase.PreviewReady{VideoID: ef.Video.VideoID}
		}

	case usecase.PrefetchPreviews:
		m.opts.Thumbnails.Prefetch(m.ctx, ef.Videos, ef.Width, ef.Height, ef.Limit)
		return nil

	case usecase.SavePreferences:
		if m.opts.SavePreferences == nil {
			return nil
		}
		save := m.opts.SavePreferences
		return func() tea.Msg {
			if err := save(ef.ThumbnailPreview, ef.AutoRefresh); err != nil {
				return usecase.PersistenceFailed{Op: "save preferences", Err: err}
			}
			return nil
		}

	case usecase.Exit:
		if m.opts.OnExit != nil {
			m.opts.OnExit()
		}
		return tea.Quit
	}

	logger.GetLogger().WithField("effect", effect).Warn("Unhandled effect")
	return nil
}

// load starts a catalog load and streams its progress back into the program.
func (m Model) load(force bool) tea.Cmd {
	catalog, ctx := m.opts.Catalog, m.ctx
	events := make(chan dto.Progress, 16)
	done := make(chan usecase.Event, 1)

	return func() tea.Msg {
		go func() {
			defer close(events)
			result, err := catalog.Load(ctx, force, events)
			if err != nil {
				logger.GetLogger().WithField("error", err).Error("Failed to load catalog")
				done <- usecase.LoadFailed{Err: err}
				return
			}
			done <- usecase.LoadSucceeded{Catalog: result}
		}()
		return waitForLoad(events, done)()
	}
}

func waitForLoad(events <-chan dto.Progress, done <-chan usecase.Event) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return <-done
		}
		return progressMsg{progress: p, events: events, done: done}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
