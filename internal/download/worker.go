package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ioutils "github.com/handiism/dlqueue/internal/io"
	"github.com/handiism/dlqueue/internal/model"
)

var errEmptyOutput = errors.New("output file is missing or empty")

// worker drives exactly one job through its lifecycle.
//
// All job state lives behind mu. Events for the job are published while mu
// is held, which keeps them in the order the worker produced them and
// guarantees nothing follows DownloadCancelled except WorkerFinished.
type worker struct {
	fetcher     Fetcher
	verifier    Verifier
	post        PostProcessor
	bus         *Bus
	logger      zerolog.Logger
	maxAttempts int
	backoffBase time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	job       model.Job
	started   bool
	paused    bool
	cancelled bool
	wake      chan struct{}
	lastBytes int64
	lastTick  time.Time
}

func (w *worker) id() string {
	return w.job.ID // immutable after construction
}

func (w *worker) snapshot() model.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job
}

func (w *worker) isStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *worker) isCancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// publishLocked sends a job event; w.mu must be held.
func (w *worker) publishLocked(kind EventKind, err error) {
	w.bus.Publish(Event{
		Kind:  kind,
		ID:    w.job.ID,
		Token: w.job.Token,
		Job:   w.job,
		Err:   err,
		Time:  w.now(),
	})
}

// broadcastLocked wakes everything waiting on the current wake channel.
func (w *worker) broadcastLocked() {
	close(w.wake)
	w.wake = make(chan struct{})
}

// begin marks the job downloading. Called by the manager at admission.
func (w *worker) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || w.started {
		return false
	}
	if err := w.job.Transition(model.StatusDownloading); err != nil {
		return false
	}
	w.started = true
	if w.job.StartedAt.IsZero() {
		w.job.StartedAt = w.now()
	}
	return true
}

func (w *worker) pause() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || w.paused || w.job.Status != model.StatusDownloading {
		return false
	}
	if err := w.job.Transition(model.StatusPaused); err != nil {
		return false
	}
	w.paused = true
	w.job.Speed = 0
	w.publishLocked(DownloadPaused, nil)
	w.broadcastLocked()
	return true
}

func (w *worker) resume() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || !w.paused {
		return false
	}
	if err := w.job.Transition(model.StatusDownloading); err != nil {
		return false
	}
	w.paused = false
	w.lastTick = w.now()
	w.publishLocked(DownloadResumed, nil)
	w.broadcastLocked()
	return true
}

// abort cancels the job in whatever non-terminal state it is in.
func (w *worker) abort() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || w.job.Status.IsTerminal() {
		return false
	}
	if err := w.job.Transition(model.StatusCancelled); err != nil {
		return false
	}
	w.cancelled = true
	w.paused = false
	w.job.Speed = 0
	w.job.Err = model.ErrCancelled
	w.publishLocked(DownloadCancelled, nil)
	w.broadcastLocked()
	w.cancel()
	return true
}

// checkpoint blocks while the job is paused and reports cancellation.
func (w *worker) checkpoint() error {
	for {
		w.mu.Lock()
		if w.cancelled {
			w.mu.Unlock()
			return model.ErrCancelled
		}
		if !w.paused {
			w.mu.Unlock()
			return nil
		}
		ch := w.wake
		w.mu.Unlock()

		select {
		case <-ch:
		case <-w.ctx.Done():
			return model.ErrCancelled
		}
	}
}

// settle waits out a pause and applies fn to the job under the lock.
// It returns false if the job was cancelled first.
func (w *worker) settle(fn func()) bool {
	for {
		if err := w.checkpoint(); err != nil {
			return false
		}
		w.mu.Lock()
		if w.cancelled {
			w.mu.Unlock()
			return false
		}
		if w.paused {
			w.mu.Unlock()
			continue
		}
		fn()
		w.mu.Unlock()
		return true
	}
}

func (w *worker) sleep(d time.Duration) error {
	if d <= 0 {
		return w.checkpoint()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return w.checkpoint()
	case <-w.ctx.Done():
		return model.ErrCancelled
	}
}

// run executes the job: probe, up to maxAttempts transfers with linear
// backoff, optional verification, then a terminal transition.
func (w *worker) run() {
	url := w.id()
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := w.checkpoint(); err != nil {
			return
		}

		path, err := w.attempt(attempt)
		if err == nil {
			w.finish(path)
			return
		}
		if w.isCancelled() || errors.Is(err, model.ErrCancelled) {
			return
		}
		if model.IsKind(err, model.KindEnvironment) {
			w.fail(err)
			return
		}

		lastErr = err
		w.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", w.maxAttempts).Msg("download attempt failed")

		if attempt < w.maxAttempts {
			if err := w.sleep(w.backoffBase * time.Duration(attempt)); err != nil {
				return
			}
		}
	}

	if lastErr == nil {
		lastErr = model.NewTransferError(url, w.maxAttempts, errors.New("no attempts made"))
	}
	w.fail(lastErr)
}

func (w *worker) attempt(n int) (string, error) {
	job := w.snapshot()
	url := job.ID

	w.mu.Lock()
	w.job.Attempts = n
	w.mu.Unlock()

	if job.Metadata == nil {
		meta, total, err := w.fetcher.Probe(w.ctx, url, job.Options)

		// Checked under the lock so no metadata event can follow a cancellation.
		w.mu.Lock()
		if w.cancelled {
			w.mu.Unlock()
			return "", model.ErrCancelled
		}
		if err != nil {
			w.mu.Unlock()
			return "", asTransferError(url, n, err)
		}
		w.job.Metadata = &meta
		if total > 0 {
			w.job.TotalBytes = total
		}
		w.publishLocked(MetadataReceived, nil)
		w.mu.Unlock()
	}

	if err := w.checkpoint(); err != nil {
		return "", err
	}
	if err := ioutils.EnsureDir(job.Options.OutputDir); err != nil {
		return "", model.NewTransferError(url, n, err)
	}

	w.mu.Lock()
	w.lastBytes = w.job.BytesDownloaded
	w.lastTick = w.now()
	w.mu.Unlock()

	path, err := w.fetcher.Transfer(w.ctx, url, job.Options, w.onProgress)
	if w.isCancelled() {
		return "", model.ErrCancelled
	}
	if err != nil {
		return "", asTransferError(url, n, err)
	}
	if size, err := ioutils.FileSize(path); err != nil || size == 0 {
		return "", model.NewTransferError(url, n, errEmptyOutput)
	}
	return path, nil
}

// onProgress is handed to the fetcher. It is a pause/cancel checkpoint.
func (w *worker) onProgress(downloaded, total int64, eta time.Duration) error {
	if err := w.checkpoint(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return model.ErrCancelled
	}
	if w.paused {
		return nil
	}

	now := w.now()
	if total > 0 {
		w.job.TotalBytes = total
	}
	w.job.Progress = nextProgress(w.job.Progress, downloaded, w.job.TotalBytes)
	w.job.Speed = tickSpeed(downloaded, w.lastBytes, now.Sub(w.lastTick))
	w.job.BytesDownloaded = downloaded
	w.job.ETA = eta
	w.lastBytes = downloaded
	w.lastTick = now

	w.publishLocked(ProgressUpdated, nil)
	return nil
}

func (w *worker) finish(path string) {
	job := w.snapshot()

	if job.Options.Verify && w.verifier != nil {
		if err := w.verifier.Verify(w.ctx, path, job.TotalBytes, job.Options.AudioOnly); err != nil {
			if w.isCancelled() {
				return
			}
			w.mu.Lock()
			w.job.FilePath = path
			w.mu.Unlock()
			w.fail(model.NewIntegrityError(job.ID, err))
			return
		}
	}

	if w.post != nil {
		job.FilePath = path
		if err := w.post.Process(w.ctx, job); err != nil && !w.isCancelled() {
			w.logger.Warn().Err(err).Str("path", path).Msg("post-processing failed")
		}
	}

	ok := w.settle(func() {
		if err := w.job.Transition(model.StatusCompleted); err != nil {
			return
		}
		w.job.FinishedAt = w.now()
		w.job.FilePath = path
		w.job.Progress = 100
		w.job.Speed = 0
		w.job.ETA = 0
		if w.job.TotalBytes > w.job.BytesDownloaded {
			w.job.BytesDownloaded = w.job.TotalBytes
		}
		w.publishLocked(DownloadCompleted, nil)
	})
	if ok {
		w.logger.Info().Str("path", path).Msg("download completed")
	}
}

func (w *worker) fail(err error) {
	ok := w.settle(func() {
		if terr := w.job.Transition(model.StatusError); terr != nil {
			return
		}
		w.job.FinishedAt = w.now()
		w.job.Speed = 0
		w.job.Err = err
		w.publishLocked(DownloadError, err)
	})
	if ok {
		w.logger.Error().Err(err).Msg("download failed")
	}
}

// asTransferError keeps environment errors intact and wraps everything else.
func asTransferError(url string, attempt int, err error) error {
	if errors.Is(err, model.ErrCancelled) || model.IsKind(err, model.KindEnvironment) {
		return err
	}
	return model.NewTransferError(url, attempt, err)
}

// nextProgress clamps the new percentage to [0,100] and never goes backwards.
func nextProgress(prev float64, downloaded, total int64) float64 {
	p := float64(downloaded) / float64(max(total, 1)) * 100
	p = min(max(p, 0), 100)
	return max(p, prev)
}

// tickSpeed is bytes per second since the previous tick, with the interval
// floored at 100ms.
func tickSpeed(downloaded, last int64, elapsed time.Duration) float64 {
	secs := max(elapsed.Seconds(), 0.1)
	speed := float64(downloaded-last) / secs
	return max(speed, 0)
}
