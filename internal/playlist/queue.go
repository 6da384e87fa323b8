package playlist

import (
	"context"

	"github.com/handiism/dlqueue/internal/download"
	"github.com/handiism/dlqueue/internal/model"
)

// Manager is the part of *download.Manager that Queue needs.
type Manager interface {
	Submit(urls []string, opts model.Options) []download.Result
}

// Queue expands playlist URLs and submits the result to a Manager.
type Queue struct {
	expander *Expander
	manager  Manager
}

// NewQueue creates a Queue.
func NewQueue(expander *Expander, manager Manager) *Queue {
	return &Queue{expander: expander, manager: manager}
}

// Submit expands urls and submits every resulting URL. The error reports
// playlists that could not be expanded; their URLs are still submitted as
// single items.
func (q *Queue) Submit(ctx context.Context, urls []string, opts model.Options) ([]download.Result, error) {
	expanded, err := q.expander.Expand(ctx, urls, opts)
	return q.manager.Submit(expanded, opts), err
}
