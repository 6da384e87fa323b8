package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/download"
)

// Recorder writes an Entry for every job that completes or fails.
type Recorder struct {
	store  *Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store *Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Run records events until ctx is done or events is closed. Subscribe
// before submitting work so no completion is missed:
//
//	events, unsubscribe := manager.Events()
//	defer unsubscribe()
//	go recorder.Run(ctx, events)
func (r *Recorder) Run(ctx context.Context, events <-chan download.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != download.DownloadCompleted && ev.Kind != download.DownloadError {
				continue
			}
			if _, err := r.store.Record(ctx, EntryFromJob(ev.Job, r.now())); err != nil {
				r.logger.Error().Err(err).Str("url", ev.ID).Msg("failed to record history")
				continue
			}
			r.logger.Debug().Str("url", ev.ID).Str("status", ev.Job.Status.String()).Msg("history recorded")
		}
	}
}
