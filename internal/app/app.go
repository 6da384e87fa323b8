// Package app assembles the download queue and its collaborators from
// Settings. The binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/audio"
	"github.com/handiism/dlqueue/internal/config"
	"github.com/handiism/dlqueue/internal/download"
	httpclient "github.com/handiism/dlqueue/internal/http"
	"github.com/handiism/dlqueue/internal/model"
	"github.com/handiism/dlqueue/internal/playlist"
	"github.com/handiism/dlqueue/internal/postprocess"
	"github.com/handiism/dlqueue/internal/verify"
	"github.com/handiism/dlqueue/internal/ytdlp"
)

// App holds the wired components.
type App struct {
	Settings *config.Settings
	Logger   zerolog.Logger
	Fetcher  *ytdlp.Client
	Manager  *download.Manager
	Queue    *playlist.Queue
}

// New builds an App from validated settings.
func New(settings *config.Settings, logger zerolog.Logger) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	fetcher := ytdlp.NewClient(
		ytdlp.WithBinary(settings.YTDLPPath),
		ytdlp.WithFFmpeg(settings.FFmpegPath),
		ytdlp.WithLogger(logger.With().Str("component", "ytdlp").Logger()),
	)

	coverSize := 0
	if settings.ThumbnailResize {
		coverSize = settings.ThumbnailMaxSize
	}
	artwork := postprocess.NewArtwork(
		postprocess.WithLogger(logger.With().Str("component", "artwork").Logger()),
		postprocess.WithMaxSize(coverSize),
		postprocess.WithTagger(audio.NewTagger(audio.DefaultTagConfig())),
		postprocess.WithHTTPOptions(httpclient.WithTimeout(30*time.Second)),
	)

	manager := download.NewManager(fetcher,
		download.WithLogger(logger.With().Str("component", "download").Logger()),
		download.WithConcurrency(settings.MaxConcurrent),
		download.WithMaxAttempts(settings.MaxAttempts),
		download.WithBackoffBase(settings.RetryBackoff()),
		download.WithSites(settings.Sites()),
		download.WithVerifier(verify.NewChecker(
			verify.WithFFmpeg(settings.FFmpegPath),
			verify.WithLogger(logger.With().Str("component", "verify").Logger()),
		)),
		download.WithPostProcessor(artwork),
	)

	expander := playlist.NewExpander(playlist.WithLogger(logger.With().Str("component", "playlist").Logger()))

	return &App{
		Settings: settings,
		Logger:   logger,
		Fetcher:  fetcher,
		Manager:  manager,
		Queue:    playlist.NewQueue(expander, manager),
	}, nil
}

// ExportPlaylist writes the completed jobs of the session as a playlist
// in the downloads directory when the settings ask for it. It returns the
// written path, or "" if nothing was written.
func (a *App) ExportPlaylist(ctx context.Context, title string) (string, error) {
	if !a.Settings.ExportPlaylist {
		return "", nil
	}
	format, err := audio.ParsePlaylistFormat(a.Settings.ExportPlaylistType)
	if err != nil {
		return "", err
	}
	jobs := a.Manager.Jobs()
	if !slices.ContainsFunc(jobs, func(j model.Job) bool { return j.Status == model.StatusCompleted }) {
		return "", nil
	}
	creator := audio.NewPlaylistCreator(format, true)
	return creator.WritePlaylist(ctx, a.Settings.DownloadsPath, title, jobs)
}

// Shutdown stops the manager, waiting at most timeout for workers to exit.
func (a *App) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Manager.Shutdown(ctx)
}
