// Package schedule stores download batches planned for a later time and
// hands them to the queue when they fall due.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ioutils "github.com/handiism/dlqueue/internal/io"
	"github.com/handiism/dlqueue/internal/model"
)

// ErrNotFound is returned for an unknown schedule ID.
var ErrNotFound = errors.New("schedule not found")

// Schedule is a batch of URLs to submit at Time.
type Schedule struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
	URLs []string  `json:"urls"`

	// Repeat moves Time forward one day each time the schedule fires.
	Repeat bool `json:"repeat"`

	// Completed is set once a non-repeating schedule has fired.
	Completed bool `json:"completed"`

	Options model.Options `json:"options"`
}

// Due reports whether s should fire at now.
func (s Schedule) Due(now time.Time) bool {
	return !s.Completed && !s.Time.IsZero() && !now.Before(s.Time)
}

// Store keeps schedules in a JSON file.
type Store struct {
	path string

	mu        sync.Mutex
	schedules []Schedule
}

// Open loads the schedules at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load rereads the file, replacing the in-memory schedules.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var schedules []Schedule
	if len(data) > 0 {
		if err := json.Unmarshal(data, &schedules); err != nil {
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.schedules = schedules
	s.mu.Unlock()
	return nil
}

// Save writes the schedules to the file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := ioutils.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	schedules := s.schedules
	if schedules == nil {
		schedules = []Schedule{}
	}
	data, err := json.MarshalIndent(schedules, "", "  ")
	if err != nil {
		return err
	}
	return ioutils.WriteFile(context.Background(), s.path, data)
}

// List returns a copy of all schedules in insertion order.
func (s *Store) List() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Schedule, len(s.schedules))
	for i, sc := range s.schedules {
		out[i] = sc.clone()
	}
	return out
}

// Add validates sc, assigns it an ID and persists it.
func (s *Store) Add(sc Schedule) (Schedule, error) {
	var urls []string
	for _, u := range sc.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return Schedule{}, errors.New("no URLs to schedule")
	}
	if sc.Time.IsZero() {
		return Schedule{}, errors.New("schedule time is required")
	}
	sc.URLs = urls
	sc.ID = uuid.NewString()
	sc.Completed = false

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, sc)
	if err := s.saveLocked(); err != nil {
		s.schedules = s.schedules[:len(s.schedules)-1]
		return Schedule{}, err
	}
	return sc.clone(), nil
}

// Remove deletes the schedule with id and persists the change.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.schedules, func(sc Schedule) bool { return sc.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.schedules = slices.Delete(s.schedules, i, i+1)
	return s.saveLocked()
}

// Fire returns the schedules due at now, as they were before firing, and
// advances them: repeating schedules move forward one day, the rest are
// marked completed. The store is saved when anything fired.
func (s *Store) Fire(now time.Time) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Schedule
	for i := range s.schedules {
		sc := &s.schedules[i]
		if !sc.Due(now) {
			continue
		}
		due = append(due, sc.clone())
		if sc.Repeat {
			sc.Time = sc.Time.AddDate(0, 0, 1)
		} else {
			sc.Completed = true
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	return due, s.saveLocked()
}

func (s Schedule) clone() Schedule {
	s.URLs = slices.Clone(s.URLs)
	return s
}
