// Package playlist expands YouTube playlist URLs into the URLs of their
// videos before they are submitted to the download manager.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ytget/ytdlp/v2"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/dlqueue/internal/model"
)

const (
	// DefaultTimeout bounds the lookup of one playlist.
	DefaultTimeout = 60 * time.Second

	// DefaultParallelism is how many playlists are fetched at once.
	DefaultParallelism = 4

	videoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Item is one video of a playlist.
type Item struct {
	VideoID string
	Title   string
}

// Source lists the videos of a playlist by ID.
type Source interface {
	Items(ctx context.Context, playlistID string) ([]Item, error)
}

// YouTubeSource reads playlists through github.com/ytget/ytdlp/v2.
type YouTubeSource struct{}

// Items implements Source.
func (YouTubeSource) Items(ctx context.Context, playlistID string) ([]Item, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		out = append(out, Item{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// Expander replaces playlist URLs with video URLs.
type Expander struct {
	source      Source
	timeout     time.Duration
	parallelism int
	logger      zerolog.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithSource replaces the YouTube source, mainly for tests.
func WithSource(s Source) Option {
	return func(e *Expander) { e.source = s }
}

// WithTimeout sets the per-playlist timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Expander) { e.timeout = d }
}

// WithParallelism sets how many playlists are fetched concurrently.
func WithParallelism(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Expander) { e.logger = logger }
}

// NewExpander creates an Expander backed by YouTubeSource.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		source:      YouTubeSource{},
		timeout:     DefaultTimeout,
		parallelism: DefaultParallelism,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns urls with every YouTube playlist URL replaced by its
// videos, in order and without duplicates. Nothing is expanded unless
// opts.Playlist is set.
//
// A playlist that cannot be read keeps its original URL; the failures are
// returned joined alongside the complete result.
func (e *Expander) Expand(ctx context.Context, urls []string, opts model.Options) ([]string, error) {
	if !opts.Playlist {
		return urls, nil
	}

	expanded := make([][]string, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, raw := range urls {
		id := PlaylistID(raw)
		if id == "" {
			expanded[i] = []string{raw}
			continue
		}
		g.Go(func() error {
			videos, err := e.expandOne(ctx, id)
			if err != nil {
				e.logger.Warn().Err(err).Str("url", raw).Msg("playlist expansion failed")
				errs[i] = fmt.Errorf("%s: %w", raw, err)
				expanded[i] = []string{raw}
				return nil
			}
			e.logger.Info().Str("url", raw).Int("videos", len(videos)).Msg("playlist expanded")
			expanded[i] = videos
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var out []string
	for _, group := range expanded {
		for _, u := range group {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out, errors.Join(errs...)
}

func (e *Expander) expandOne(ctx context.Context, playlistID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	items, err := e.source.Items(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("playlist is empty")
	}
	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, fmt.Sprintf(videoURLTemplate, it.VideoID))
	}
	return urls, nil
}

// PlaylistID returns the list= parameter of a YouTube URL, or "".
func PlaylistID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if model.SiteName(raw, model.DefaultSites) != "YouTube" {
		return ""
	}
	return u.Query().Get("list")
}
