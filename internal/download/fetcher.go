package download

import (
	"context"

	"github.com/handiism/dlqueue/internal/model"
)

// Fetcher performs metadata lookup and byte transfer for a URL.
//
// onProgress may be called from any goroutine. When it returns an error the
// fetcher should stop the transfer and return promptly.
type Fetcher interface {
	Probe(ctx context.Context, url string, opts model.Options) (model.Metadata, int64, error)
	Transfer(ctx context.Context, url string, opts model.Options, onProgress model.ProgressFunc) (string, error)
}

// Verifier checks a finished file before the job is reported complete.
type Verifier interface {
	Verify(ctx context.Context, path string, expectedSize int64, audioOnly bool) error
}

// PostProcessor runs after a successful, verified transfer. Its failures
// are logged and do not change the job's outcome.
type PostProcessor interface {
	Process(ctx context.Context, job model.Job) error
}
