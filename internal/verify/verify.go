// Package verify checks downloaded files before a job is reported complete.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ioutils "github.com/handiism/dlqueue/internal/io"
)

// SizeTolerance is how far a file may differ from the probed size before a
// warning is logged. Probed sizes are often estimates, so a mismatch alone
// does not fail verification.
const SizeTolerance = 0.10

var (
	ErrEmptyFile = errors.New("downloaded file is empty")
	ErrCorrupted = errors.New("downloaded file is corrupted")
)

// Checker verifies files with a size check and, for video, an ffmpeg
// decode pass.
type Checker struct {
	ffmpeg  string
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithFFmpeg sets the ffmpeg executable.
func WithFFmpeg(path string) Option {
	return func(c *Checker) {
		if path != "" {
			c.ffmpeg = path
		}
	}
}

// WithTimeout bounds the ffmpeg pass (default 10 minutes).
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// WithLogger sets the logger used for size mismatch warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// NewChecker creates a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{ffmpeg: "ffmpeg", timeout: 10 * time.Minute, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify checks that path exists and is non-empty. When expectedSize is
// known, a size off by more than SizeTolerance is logged. Unless audioOnly
// is set, ffmpeg must decode the whole file without errors.
func (c *Checker) Verify(ctx context.Context, path string, expectedSize int64, audioOnly bool) error {
	size, err := ioutils.FileSize(path)
	if err != nil {
		return fmt.Errorf("downloaded file not found: %w", err)
	}
	if size == 0 {
		return ErrEmptyFile
	}
	if sizeMismatch(size, expectedSize) {
		c.logger.Warn().Str("path", path).Int64("expected", expectedSize).Int64("actual", size).Msg("file size mismatch")
	}
	if audioOnly {
		return nil
	}
	return c.decode(ctx, path)
}

func (c *Checker) decode(ctx context.Context, path string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.ffmpeg, "-v", "error", "-i", path, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("run %s: %w", c.ffmpeg, err)
		}
		return fmt.Errorf("%w: %s", ErrCorrupted, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func sizeMismatch(actual, expected int64) bool {
	if expected <= 0 {
		return false
	}
	return math.Abs(float64(actual-expected)) > SizeTolerance*float64(expected)
}
