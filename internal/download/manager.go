package download

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/dlqueue/internal/model"
)

const (
	// DefaultConcurrency is the number of jobs downloading at once.
	DefaultConcurrency = 5

	// DefaultMaxAttempts is the transfer attempt budget per job.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase is multiplied by the attempt number between retries.
	DefaultBackoffBase = 5 * time.Second
)

var (
	// ErrDuplicate rejects a URL that is already queued, active or paused.
	ErrDuplicate = errors.New("already queued")

	// ErrClosed rejects submissions after Shutdown.
	ErrClosed = errors.New("download manager is shut down")
)

// Result is the per-URL outcome of Submit.
type Result struct {
	URL      string `json:"url"`
	Token    string `json:"token,omitempty"`
	Accepted bool   `json:"accepted"`
	Err      error  `json:"-"`
}

// Counts is a point-in-time view of the scheduler tables.
type Counts struct {
	Queued      int `json:"queued"`
	Active      int `json:"active"`
	Paused      int `json:"paused"`
	Finished    int `json:"finished"`
	Concurrency int `json:"concurrency"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithConcurrency sets the initial concurrency limit; values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrency = n
		}
	}
}

// WithMaxAttempts sets the transfer attempt budget; values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the linear retry backoff base.
func WithBackoffBase(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.backoffBase = d
		}
	}
}

// WithSites sets the sites whose URLs are accepted.
func WithSites(sites []model.Site) Option {
	return func(m *Manager) { m.sites = sites }
}

// WithVerifier enables post-download verification for jobs that request it.
func WithVerifier(v Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// WithPostProcessor runs p after each successful download.
func WithPostProcessor(p PostProcessor) Option {
	return func(m *Manager) { m.post = p }
}

// WithBus publishes events on an externally owned bus, which Shutdown leaves open.
func WithBus(b *Bus) Option {
	return func(m *Manager) {
		m.bus = b
		m.ownsBus = false
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is the download scheduler.
//
// Jobs wait in a FIFO backlog until a concurrency slot is free. Paused jobs
// keep their worker but give up their slot. A single mutex guards the
// backlog, active and paused tables; workers never take it while holding
// their own lock.
type Manager struct {
	fetcher  Fetcher
	verifier Verifier
	post     PostProcessor
	bus      *Bus
	ownsBus  bool
	logger   zerolog.Logger
	sites    []model.Site
	now      func() time.Time

	maxAttempts int
	backoffBase time.Duration

	ctx    context.Context
	stop   context.CancelFunc
	group  errgroup.Group
	closed bool

	mu             sync.Mutex
	maxConcurrency int
	backlog        []*worker
	active         map[string]*worker
	paused         map[string]*worker
	finished       map[string]*worker
	changed        chan struct{}
}

// NewManager creates a Manager that downloads through fetcher.
func NewManager(fetcher Fetcher, opts ...Option) *Manager {
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		fetcher:        fetcher,
		bus:            NewBus(),
		ownsBus:        true,
		logger:         zerolog.Nop(),
		sites:          model.DefaultSites,
		now:            time.Now,
		maxAttempts:    DefaultMaxAttempts,
		backoffBase:    DefaultBackoffBase,
		ctx:            ctx,
		stop:           stop,
		maxConcurrency: DefaultConcurrency,
		active:         make(map[string]*worker),
		paused:         make(map[string]*worker),
		finished:       make(map[string]*worker),
		changed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bus returns the event bus the manager publishes on.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Events subscribes to the manager's bus. Call the returned function to detach.
func (m *Manager) Events() (<-chan Event, func()) {
	return m.bus.Subscribe()
}

// Submit validates and enqueues each URL with a copy of opts.
//
// Every URL gets its own Result; invalid or duplicate URLs are rejected
// without affecting the rest of the batch.
func (m *Manager) Submit(urls []string, opts model.Options) []Result {
	results := make([]Result, 0, len(urls))

	m.mu.Lock()
	defer m.mu.Unlock()

	enqueued := 0
	for _, raw := range urls {
		url, err := model.ValidateURL(raw, m.sites)
		if err != nil {
			results = append(results, Result{URL: raw, Err: err})
			m.logger.Debug().Err(err).Str("url", raw).Msg("rejected submission")
			continue
		}
		if m.closed {
			results = append(results, Result{URL: url, Err: model.NewValidationError(url, ErrClosed)})
			continue
		}
		if m.trackedLocked(url) != nil {
			results = append(results, Result{URL: url, Err: model.NewValidationError(url, ErrDuplicate)})
			continue
		}

		w := m.newWorker(url, opts)
		delete(m.finished, url)
		m.backlog = append(m.backlog, w)
		enqueued++
		results = append(results, Result{URL: url, Token: w.job.Token, Accepted: true})
		m.logger.Debug().Str("url", url).Str("token", w.job.Token).Msg("queued")
	}

	if enqueued > 0 {
		m.publishDepthLocked()
		m.admitLocked()
		m.broadcastLocked()
	}
	return results
}

// Pause suspends an active job and frees its slot. It reports whether
// anything changed; pausing a job that is not active is a no-op.
func (m *Manager) Pause(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.active[id]
	if !ok || !w.pause() {
		return false
	}
	delete(m.active, id)
	m.paused[id] = w
	m.admitLocked()
	m.broadcastLocked()
	return true
}

// Resume continues a paused job. Without a free slot the job goes to the
// head of the backlog and resumes as soon as capacity frees up.
func (m *Manager) Resume(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.paused[id]
	if !ok {
		return false
	}
	delete(m.paused, id)

	if len(m.active) < m.maxConcurrency && w.resume() {
		m.active[id] = w
	} else {
		m.backlog = slices.Insert(m.backlog, 0, w)
		m.publishDepthLocked()
	}
	m.broadcastLocked()
	return true
}

// Cancel cancels the job wherever it is and drops it from tracking.
// Cancelling an unknown or finished job is a silent no-op.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var w *worker
	if a, ok := m.active[id]; ok {
		w = a
		delete(m.active, id)
	} else if p, ok := m.paused[id]; ok {
		w = p
		delete(m.paused, id)
	} else if i := m.backlogIndexLocked(id); i >= 0 {
		w = m.backlog[i]
		m.backlog = slices.Delete(m.backlog, i, i+1)
		m.publishDepthLocked()
	}
	if w == nil {
		return false
	}

	w.abort()
	m.logger.Info().Str("url", id).Msg("download cancelled")
	m.admitLocked()
	m.broadcastLocked()
	return true
}

// SetConcurrency changes the concurrency limit. Lowering it never preempts
// running jobs; raising it admits backlog jobs immediately.
func (m *Manager) SetConcurrency(n int) error {
	if n < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxConcurrency = n
	m.admitLocked()
	m.broadcastLocked()
	return nil
}

// Concurrency returns the current concurrency limit.
func (m *Manager) Concurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrency
}

// StatusOf returns the job's status, or false if the URL is not tracked.
func (m *Manager) StatusOf(id string) (model.Status, bool) {
	job, ok := m.Job(id)
	if !ok {
		return "", false
	}
	return job.Status, true
}

// Job returns a snapshot of the tracked job for id.
func (m *Manager) Job(id string) (model.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.trackedLocked(id); w != nil {
		return w.snapshot(), true
	}
	if w, ok := m.finished[id]; ok {
		return w.snapshot(), true
	}
	return model.Job{}, false
}

// Jobs returns snapshots of every tracked job, oldest submission first.
func (m *Manager) Jobs() []model.Job {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.backlog)+len(m.active)+len(m.paused)+len(m.finished))
	workers = append(workers, m.backlog...)
	for _, w := range m.active {
		workers = append(workers, w)
	}
	for _, w := range m.paused {
		workers = append(workers, w)
	}
	for _, w := range m.finished {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	jobs := make([]model.Job, 0, len(workers))
	for _, w := range workers {
		jobs = append(jobs, w.snapshot())
	}
	slices.SortStableFunc(jobs, func(a, b model.Job) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return jobs
}

// Archive forgets a completed or failed job, e.g. once history has it.
func (m *Manager) Archive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.finished[id]; !ok {
		return false
	}
	delete(m.finished, id)
	return true
}

// QueueDepth returns the number of backlog jobs.
func (m *Manager) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backlog)
}

// Counts returns the sizes of the scheduler tables.
func (m *Manager) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counts{
		Queued:      len(m.backlog),
		Active:      len(m.active),
		Paused:      len(m.paused),
		Finished:    len(m.finished),
		Concurrency: m.maxConcurrency,
	}
}

// Drain blocks until no job is queued, active or paused, or ctx ends.
func (m *Manager) Drain(ctx context.Context) error {
	for {
		m.mu.Lock()
		if len(m.backlog) == 0 && len(m.active) == 0 && len(m.paused) == 0 {
			m.mu.Unlock()
			return nil
		}
		ch := m.changed
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown cancels every unfinished job and waits for the workers to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pending := slices.Clone(m.backlog)
	for _, w := range m.active {
		pending = append(pending, w)
	}
	for _, w := range m.paused {
		pending = append(pending, w)
	}
	m.backlog = nil
	clear(m.active)
	clear(m.paused)
	m.broadcastLocked()
	m.mu.Unlock()

	for _, w := range pending {
		w.abort()
	}
	m.stop()

	done := make(chan struct{})
	go func() {
		_ = m.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if m.ownsBus {
		m.bus.Close()
	}
	return nil
}

func (m *Manager) newWorker(url string, opts model.Options) *worker {
	token := newToken()
	ctx, cancel := context.WithCancel(m.ctx)
	return &worker{
		fetcher:     m.fetcher,
		verifier:    m.verifier,
		post:        m.post,
		bus:         m.bus,
		logger:      m.logger.With().Str("url", url).Str("token", token).Logger(),
		maxAttempts: m.maxAttempts,
		backoffBase: m.backoffBase,
		now:         m.now,
		ctx:         ctx,
		cancel:      cancel,
		job:         *model.NewJob(url, token, opts, m.now()),
		wake:        make(chan struct{}),
	}
}

// admitLocked promotes backlog jobs while slots are free.
func (m *Manager) admitLocked() {
	admitted := false
	for len(m.active) < m.maxConcurrency && len(m.backlog) > 0 {
		w := m.backlog[0]
		m.backlog[0] = nil
		m.backlog = m.backlog[1:]
		admitted = true

		if w.isStarted() {
			// A paused job requeued by Resume.
			if w.resume() {
				m.active[w.id()] = w
			}
			continue
		}
		if !w.begin() {
			continue
		}
		m.active[w.id()] = w
		m.group.Go(func() error {
			w.run()
			m.workerDone(w)
			return nil
		})
	}
	if admitted {
		m.publishDepthLocked()
	}
}

// workerDone is the terminal notification every worker sends exactly once.
func (m *Manager) workerDone(w *worker) {
	job := w.snapshot()

	m.mu.Lock()
	if m.active[job.ID] == w {
		delete(m.active, job.ID)
	}
	if m.paused[job.ID] == w {
		delete(m.paused, job.ID)
	}
	if job.Status == model.StatusCompleted || job.Status == model.StatusError {
		if m.trackedLocked(job.ID) == nil {
			m.finished[job.ID] = w
		}
	}
	m.bus.Publish(Event{Kind: WorkerFinished, ID: job.ID, Token: job.Token, Job: job, Time: m.now()})
	m.admitLocked()
	m.broadcastLocked()
	m.mu.Unlock()

	w.cancel()
}

func (m *Manager) trackedLocked(id string) *worker {
	if w, ok := m.active[id]; ok {
		return w
	}
	if w, ok := m.paused[id]; ok {
		return w
	}
	if i := m.backlogIndexLocked(id); i >= 0 {
		return m.backlog[i]
	}
	return nil
}

func (m *Manager) backlogIndexLocked(id string) int {
	return slices.IndexFunc(m.backlog, func(w *worker) bool { return w.id() == id })
}

func (m *Manager) publishDepthLocked() {
	m.bus.Publish(Event{Kind: QueueDepthChanged, Depth: len(m.backlog), Time: m.now()})
}

// broadcastLocked wakes Drain callers after any table change.
func (m *Manager) broadcastLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func newToken() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
