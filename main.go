package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/cache"
	youtubeclient "github.com/frankmarazita/yt-subscription-cli/infrastructure/clients/youtube"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/configuration"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/filecsv"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/imaging"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/persistence"
	"github.com/frankmarazita/yt-subscription-cli/interfaces/tui"
	"github.com/frankmarazita/yt-subscription-cli/usecase"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"

	"golang.org/x/sync/errgroup"
)

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
		os.Exit(2)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	flags, fs, err := configuration.ParseFlags(viper.GetViper(), args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.PrintDefaults()
		return 2
	}
	if flags.Help {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", configuration.AppName)
		fs.PrintDefaults()
		return 0
	}

	if err := configuration.LoadConfig(flags.ConfigFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := configuration.C

	if err := logger.Configure(logger.Options{
		Level:  cfg.Logger.Level,
		Output: cfg.Logger.Output,
		Dir:    filepath.Join(cfg.App.DataDir, "logs"),
	}); err != nil {
		fmt.Fprintln(os.Stderr, "logging disabled:", err)
	}
	defer logger.Close()

	httpClient := &http.Client{Timeout: cfg.Feed.Timeout}
	feeds := youtubeclient.NewFeedClient(httpClient, cfg.Feed.BaseURL, cfg.Feed.UserAgent)
	subscriptions := filecsv.NewSubscriptionFile(cfg.App.SubscriptionsFile)

	if flags.AddURL != "" {
		resolver := youtubeclient.NewChannelResolver(httpClient, feeds, cfg.Feed.UserAgent)
		return addSubscription(ctx, resolver, subscriptions, flags.AddURL)
	}

	db, dialect, err := persistence.OpenDatabase(cfg.Database)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		fmt.Fprintln(os.Stderr, "Failed to open the video cache:", err)
		return 1
	}
	defer db.Close()

	store := persistence.NewVideoCacheRepository(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Error("Schema initialization failed")
		fmt.Fprintln(os.Stderr, "Failed to prepare the video cache:", err)
		return 1
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"driver":        dialect,
		"subscriptions": subscriptions.Path(),
	}).Info("Database connected.")

	var remote cache.Store
	if cfg.RedisClient.Enabled() {
		redisClient, err := cache.NewCache(ctx, cfg.RedisClient.Addr(), cfg.RedisClient.Username, cfg.RedisClient.Password)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - continuing with in-memory thumbnails only")
		} else {
			defer redisClient.Close()
			remote = cache.NewRedisStore(redisClient)
			logger.GetLogger().Info("Redis client initialized successfully.")
		}
	}

	renderer := imaging.NewRenderer(httpClient, cfg.Thumbnail.RequestsPerSecond, cfg.Thumbnail.Burst, cfg.Feed.UserAgent)
	thumbnails := cache.NewThumbnailCache(renderer, remote, cache.ThumbnailOptions{
		Capacity:   cfg.Thumbnail.Capacity,
		GroupSize:  cfg.Thumbnail.GroupSize,
		GroupPause: cfg.Thumbnail.GroupPause,
		RemoteTTL:  cfg.Thumbnail.RedisTTL,
	})

	prefs := configuration.NewPreferenceStore(cfg.App.DataDir, configuration.Preferences{
		ThumbnailPreview: cfg.UserPreferences.ThumbnailPreview,
		AutoRefresh:      cfg.UserPreferences.AutoRefresh,
	})
	current, err := prefs.Load()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Preferences could not be saved, continuing with defaults")
	}

	scheduler := usecase.NewBatchScheduler(feeds, cfg.Feed.BatchSize, cfg.Feed.BatchPause)
	catalog := usecase.NewCatalogService(subscriptions, store, scheduler, usecase.CatalogOptions{
		MaxAge:        cfg.Cache.MaxAge,
		MaxChannels:   cfg.Feed.MaxChannels,
		CacheDisabled: cfg.Cache.Disabled,
	})

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return printCatalog(ctx, catalog)
	}

	session := tui.NewModel(ctx, tui.Options{
		Catalog:    catalog,
		Store:      store,
		Thumbnails: thumbnails,
		Browse: usecase.BrowseOptions{
			ShowPreview:   current.ThumbnailPreview,
			AutoRefresh:   current.AutoRefresh,
			PrefetchLimit: cfg.Thumbnail.PrefetchLimit,
			Sizing: usecase.ThumbnailSizing{
				SmallBreakpoint:  cfg.Thumbnail.SmallBreakpoint,
				MediumBreakpoint: cfg.Thumbnail.MediumBreakpoint,
				LargeBreakpoint:  cfg.Thumbnail.LargeBreakpoint,
				MaxWidth:         cfg.Thumbnail.MaxWidth,
				MaxHeight:        cfg.Thumbnail.MaxHeight,
			},
		},
		RefreshInterval: cfg.UserPreferences.AutoRefreshInterval,
		OnSelect: func(v model.Video) error {
			logger.GetLogger().WithField("videoId", v.VideoID).Info("Opening video")
			return openInBrowser(v.Link)
		},
		OnExit: func() {
			logger.GetLogger().Info("Session ended")
		},
		OnRefresh: func() {
			logger.GetLogger().Info("Refreshing catalog")
		},
		SavePreferences: func(thumbnailPreview, autoRefresh bool) error {
			return prefs.Save(configuration.Preferences{ThumbnailPreview: thumbnailPreview, AutoRefresh: autoRefresh})
		},
	})

	program := tea.NewProgram(session, tea.WithAltScreen(), tea.WithContext(ctx))
	prefs.Watch(func(p configuration.Preferences) {
		program.Send(usecase.PreferencesChanged{ThumbnailPreview: p.ThumbnailPreview, AutoRefresh: p.AutoRefresh})
	})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-interrupt:
			logger.GetLogger().Info("Application shutdown requested")
			program.Quit()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Session returned an error")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func addSubscription(ctx context.Context, resolver *youtubeclient.ChannelResolver, list repository.ISubscriptionList, rawURL string) int {
	sub, err := resolver.Resolve(ctx, rawURL)
	if err != nil {
		logger.GetLogger().WithField("url", rawURL).WithField("error", err).Error("Could not resolve channel")
		fmt.Fprintf(os.Stderr, "Could not resolve a channel from %s: %v\n", rawURL, err)
		return 1
	}

	if err := list.Add(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrAlreadySubscribed) {
			fmt.Printf("Already subscribed to %s\n", sub.Title)
			return 0
		}
		fmt.Fprintf(os.Stderr, "Could not save subscription: %v\n", err)
		return 1
	}
	fmt.Printf("Subscribed to %s (%s)\n", sub.Title, sub.ChannelID)
	return 0
}

// printCatalog loads once and prints a plain list when there is no terminal to drive.
func printCatalog(ctx context.Context, catalog usecase.ICatalogService) int {
	loaded, err := catalog.Load(ctx, false, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Catalog load failed")
		fmt.Fprintln(os.Stderr, "Failed to load videos:", err)
		return 1
	}
	if err := tui.WritePlain(os.Stdout, loaded, time.Now(), 80); err != nil {
		return 1
	}
	return 0
}

func openInBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Run()
}
