// Package postprocess runs side tasks after a download finishes: saving
// the thumbnail as cover art and tagging audio files.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/audio"
	httpclient "github.com/handiism/dlqueue/internal/http"
	ioutils "github.com/handiism/dlqueue/internal/io"
	"github.com/handiism/dlqueue/internal/model"
)

// Artwork fetches a job's thumbnail, writes it next to the output and
// embeds it into MP3 tags. It implements download.PostProcessor.
type Artwork struct {
	images      *ioutils.ImageService
	tagger      *audio.Tagger
	logger      zerolog.Logger
	maxSize     int
	httpOptions []httpclient.ClientOption
}

// Option configures Artwork.
type Option func(*Artwork)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Artwork) { a.logger = logger }
}

// WithMaxSize bounds the cover to size x size pixels; 0 keeps the original size.
func WithMaxSize(size int) Option {
	return func(a *Artwork) { a.maxSize = max(size, 0) }
}

// WithTagger replaces the default tagger.
func WithTagger(t *audio.Tagger) Option {
	return func(a *Artwork) { a.tagger = t }
}

// WithHTTPOptions adds options to the per-job HTTP client.
func WithHTTPOptions(opts ...httpclient.ClientOption) Option {
	return func(a *Artwork) { a.httpOptions = append(a.httpOptions, opts...) }
}

// NewArtwork creates an Artwork post-processor.
func NewArtwork(opts ...Option) *Artwork {
	a := &Artwork{
		images: ioutils.NewImageService(),
		tagger: audio.NewTagger(nil),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process saves <output>.jpg when job.Options.Thumbnail is set and tags
// MP3 outputs of audio-only jobs when job.Options.TagAudio is set.
func (a *Artwork) Process(ctx context.Context, job model.Job) error {
	opts := job.Options
	tagAudio := opts.TagAudio && opts.AudioOnly && strings.EqualFold(filepath.Ext(job.FilePath), ".mp3")
	if !opts.Thumbnail && !tagAudio {
		return nil
	}

	cover, err := a.cover(ctx, job)
	if err != nil {
		a.logger.Warn().Err(err).Str("url", job.ID).Msg("thumbnail unavailable")
	}

	var errs []error
	if opts.Thumbnail && cover != nil {
		path := ioutils.ReplaceExt(job.FilePath, ".jpg")
		if err := ioutils.WriteFile(ctx, path, cover); err != nil {
			errs = append(errs, fmt.Errorf("save thumbnail: %w", err))
		} else {
			a.logger.Debug().Str("path", path).Msg("thumbnail saved")
		}
	}
	if tagAudio {
		if err := a.tagger.SaveTags(job, cover); err != nil {
			errs = append(errs, fmt.Errorf("tag %s: %w", job.FilePath, err))
		}
	}
	return errors.Join(errs...)
}

// cover downloads the probed thumbnail and returns it as JPEG, or nil if
// the job has none.
func (a *Artwork) cover(ctx context.Context, job model.Job) ([]byte, error) {
	if job.Metadata == nil || job.Metadata.Thumbnail == "" {
		return nil, nil
	}

	opts := append([]httpclient.ClientOption{httpclient.WithProxy(job.Options.Proxy)}, a.httpOptions...)
	client, err := httpclient.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	data, err := client.DownloadBytes(ctx, job.Metadata.Thumbnail)
	if err != nil {
		return nil, err
	}

	if a.maxSize > 0 {
		return a.images.ResizeImage(ctx, data, a.maxSize, a.maxSize)
	}
	return a.images.ConvertToJPEG(ctx, data)
}
