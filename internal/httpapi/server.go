// Package httpapi exposes the download queue over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/download"
	"github.com/handiism/dlqueue/internal/history"
	"github.com/handiism/dlqueue/internal/model"
	"github.com/handiism/dlqueue/internal/schedule"
)

const maxBodySize = 1 << 20

// Server wires the HTTP routes to the queue. History and Schedules are
// optional; their routes answer 404 when nil.
type Server struct {
	Manager   *download.Manager
	Submitter schedule.Submitter
	History   *history.Store
	Schedules *schedule.Store

	// Defaults fills in submissions that carry no options.
	Defaults model.Options
	Logger   zerolog.Logger
}

// Router builds the chi router.
func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/downloads", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/", s.handleListJobs)
			r.Delete("/", s.handleCancel)
			r.Get("/status", s.handleStatus)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/archive", s.handleArchive)
		})
		r.Get("/concurrency", s.handleGetConcurrency)
		r.Put("/concurrency", s.handleSetConcurrency)
		r.Get("/history", s.handleListHistory)
		r.Delete("/history", s.handleDeleteHistory)
		r.Get("/schedules", s.handleListSchedules)
		r.Post("/schedules", s.handleAddSchedule)
		r.Delete("/schedules/{id}", s.handleRemoveSchedule)
	})

	return r
}

func (s Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

type submitRequest struct {
	URLs    []string       `json:"urls"`
	Options *model.Options `json:"options,omitempty"`
}

type resultResponse struct {
	URL      string `json:"url"`
	Token    string `json:"token,omitempty"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func (s Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// Options absent from the body keep their server defaults.
	opts := s.Defaults
	req := submitRequest{Options: &opts}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(req.URLs) == 0 {
		writeErr(w, http.StatusBadRequest, errors.New("no URLs given"))
		return
	}
	results, expandErr := s.Submitter.Submit(r.Context(), req.URLs, opts)

	resp := make([]resultResponse, 0, len(results))
	accepted := 0
	var firstErr error
	for _, res := range results {
		rr := resultResponse{URL: res.URL, Token: res.Token, Accepted: res.Accepted}
		if res.Accepted {
			accepted++
		} else if res.Err != nil {
			rr.Error = res.Err.Error()
			if kind, ok := model.KindOf(res.Err); ok {
				rr.Kind = kind.String()
			}
			if firstErr == nil {
				firstErr = res.Err
			}
		}
		resp = append(resp, rr)
	}

	code := http.StatusAccepted
	if accepted == 0 {
		code = statusFor(firstErr)
	}
	body := map[string]any{"results": resp}
	if expandErr != nil {
		body["playlist_error"] = expandErr.Error()
	}
	writeJSON(w, code, body)
}

func (s Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.Manager.Jobs()
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := model.Status(raw)
		if !model.IsKnownStatus(status) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid status: %s", raw))
			return
		}
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.Status == status {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	resp := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   resp,
		"counts": s.Manager.Counts(),
	})
}

func (s Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	url, ok := requireURL(w, r)
	if !ok {
		return
	}
	job, found := s.Manager.Job(url)
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not tracked: %s", url))
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Manager.Pause)
}

func (s Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Manager.Resume)
}

func (s Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Manager.Cancel)
}

func (s Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Manager.Archive)
}

// control runs a per-URL queue operation. Operations that do not apply to
// the job's current state are no-ops and report changed=false.
func (s Server) control(w http.ResponseWriter, r *http.Request, op func(string) bool) {
	url, ok := requireURL(w, r)
	if !ok {
		return
	}
	if _, found := s.Manager.StatusOf(url); !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not tracked: %s", url))
		return
	}
	changed := op(url)
	resp := map[string]any{"url": url, "changed": changed}
	if status, found := s.Manager.StatusOf(url); found {
		resp["status"] = status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) handleGetConcurrency(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"concurrency": s.Manager.Concurrency()})
}

func (s Server) handleSetConcurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Concurrency int `json:"concurrency"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Manager.SetConcurrency(req.Concurrency); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"concurrency": s.Manager.Concurrency()})
}

func (s Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeErr(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", raw))
			return
		}
		limit = value
	}
	entries, err := s.History.List(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeErr(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	var err error
	if url := strings.TrimSpace(r.URL.Query().Get("url")); url != "" {
		err = s.History.Delete(r.Context(), url)
	} else {
		err = s.History.Clear(r.Context())
	}
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case err != nil:
		writeErr(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	if s.Schedules == nil {
		writeErr(w, http.StatusNotFound, errors.New("scheduling is disabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.Schedules.List())
}

func (s Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	if s.Schedules == nil {
		writeErr(w, http.StatusNotFound, errors.New("scheduling is disabled"))
		return
	}
	var req struct {
		Time    time.Time     `json:"time"`
		URLs    []string      `json:"urls"`
		Repeat  bool          `json:"repeat"`
		Options model.Options `json:"options"`
	}
	req.Options = s.Defaults
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sc := schedule.Schedule{Time: req.Time, URLs: req.URLs, Repeat: req.Repeat, Options: req.Options}
	added, err := s.Schedules.Add(sc)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s Server) handleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	if s.Schedules == nil {
		writeErr(w, http.StatusNotFound, errors.New("scheduling is disabled"))
		return
	}
	err := s.Schedules.Remove(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case err != nil:
		writeErr(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func jobResponse(job model.Job) map[string]any {
	resp := map[string]any{
		"id":               job.ID,
		"token":            job.Token,
		"title":            job.Title(),
		"status":           job.Status,
		"progress":         job.Progress,
		"bytes_downloaded": job.BytesDownloaded,
		"total_bytes":      job.TotalBytes,
		"speed":            job.Speed,
		"eta_seconds":      job.ETA.Seconds(),
		"attempts":         job.Attempts,
		"submitted_at":     job.SubmittedAt,
		"options":          job.Options,
	}
	if job.Metadata != nil {
		resp["metadata"] = job.Metadata
	}
	if !job.StartedAt.IsZero() {
		resp["started_at"] = job.StartedAt
	}
	if !job.FinishedAt.IsZero() {
		resp["finished_at"] = job.FinishedAt
	}
	if job.FilePath != "" {
		resp["file_path"] = job.FilePath
	}
	if job.Err != nil {
		resp["error"] = job.Err.Error()
		if kind, ok := model.KindOf(job.Err); ok {
			resp["kind"] = kind.String()
		}
	}
	return resp
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	kind, ok := model.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindEnvironment:
		return http.StatusServiceUnavailable
	case model.KindIntegrity:
		return http.StatusUnprocessableEntity
	case model.KindTransfer:
		return http.StatusBadGateway
	case model.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeErr(w, http.StatusBadRequest, errors.New("missing 'url' query parameter"))
		return "", false
	}
	return url, true
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
