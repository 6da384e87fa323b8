package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/download"
	ioutils "github.com/handiism/dlqueue/internal/io"
	"github.com/handiism/dlqueue/internal/model"
)

// DefaultInterval is how often the Poller checks for due schedules.
const DefaultInterval = 30 * time.Second

// Submitter queues a batch of URLs; *playlist.Queue satisfies it.
type Submitter interface {
	Submit(ctx context.Context, urls []string, opts model.Options) ([]download.Result, error)
}

// Poller periodically fires due schedules.
type Poller struct {
	store     *Store
	submitter Submitter
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// NewPoller creates a Poller.
func NewPoller(store *Store, submitter Submitter, opts ...Option) *Poller {
	p := &Poller{
		store:     store,
		submitter: submitter,
		interval:  DefaultInterval,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run checks for due schedules right away and then every interval until
// ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.interval).Msg("schedule poller started")

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("schedule poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll fires every schedule due now and returns how many fired.
func (p *Poller) Poll(ctx context.Context) int {
	due, err := p.store.Fire(p.now())
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to save schedules")
	}

	for _, sc := range due {
		logger := p.logger.With().Str("schedule", sc.ID).Logger()
		if err := ioutils.EnsureDir(sc.Options.OutputDir); err != nil {
			logger.Error().Err(err).Str("path", sc.Options.OutputDir).Msg("failed to create output directory")
			continue
		}

		results, err := p.submitter.Submit(ctx, sc.URLs, sc.Options)
		if err != nil {
			logger.Warn().Err(err).Msg("scheduled batch submitted with errors")
		}
		accepted := 0
		for _, r := range results {
			if r.Accepted {
				accepted++
			} else {
				logger.Warn().Err(r.Err).Str("url", r.URL).Msg("scheduled URL rejected")
			}
		}
		logger.Info().Int("urls", len(sc.URLs)).Int("accepted", accepted).Bool("repeat", sc.Repeat).
			Msg("scheduled download started")
	}
	return len(due)
}
