package model

import "fmt"

// Status is the lifecycle state of a download job.
type Status string

const (
	// StatusQueued means the job is waiting in the backlog.
	StatusQueued Status = "queued"

	// StatusDownloading means a worker is driving the job.
	StatusDownloading Status = "downloading"

	// StatusPaused means the job's worker is suspended at a checkpoint.
	StatusPaused Status = "paused"

	// StatusCompleted means the transfer (and verification, if requested) succeeded.
	StatusCompleted Status = "completed"

	// StatusError means the job failed for good.
	StatusError Status = "error"

	// StatusCancelled means the job was cancelled by the caller.
	StatusCancelled Status = "cancelled"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusDownloading: true,
		StatusCancelled:   true,
	},
	StatusDownloading: {
		StatusPaused:    true,
		StatusCompleted: true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusPaused: {
		StatusDownloading: true,
		StatusCancelled:   true,
	},
	StatusCompleted: {},
	StatusError:     {},
	StatusCancelled: {},
}

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// IsActive reports whether the job currently owns a worker that is not suspended.
func (s Status) IsActive() bool {
	return s == StatusDownloading
}

// IsKnownStatus reports whether s is one of the defined states.
func IsKnownStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Transition moves the job to status to, or returns an error if the move is illegal.
func (j *Job) Transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("invalid job status transition: %q -> %q (url=%s)", j.Status, to, j.ID)
	}
	j.Status = to
	return nil
}
