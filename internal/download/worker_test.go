package download

import (
	"errors"
	"testing"
	"time"

	"github.com/handiism/dlqueue/internal/model"
)

func TestNextProgress(t *testing.T) {
	tests := []struct {
		name              string
		prev              float64
		downloaded, total int64
		want              float64
	}{
		{"half", 0, 50, 100, 50},
		{"never decreases", 60, 50, 100, 60},
		{"clamped high", 0, 150, 100, 100},
		{"unknown total", 0, 0, 0, 0},
		{"negative bytes", 10, -5, 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextProgress(tt.prev, tt.downloaded, tt.total); got != tt.want {
				t.Errorf("nextProgress(%v, %d, %d) = %v, want %v", tt.prev, tt.downloaded, tt.total, got, tt.want)
			}
		})
	}
}

func TestTickSpeed(t *testing.T) {
	tests := []struct {
		name       string
		downloaded int64
		last       int64
		elapsed    time.Duration
		want       float64
	}{
		{"one second", 2048, 1024, time.Second, 1024},
		{"floored interval", 1000, 0, time.Millisecond, 10000},
		{"zero interval", 1000, 0, 0, 10000},
		{"restarted transfer", 0, 500, time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tickSpeed(tt.downloaded, tt.last, tt.elapsed); got != tt.want {
				t.Errorf("tickSpeed(%d, %d, %v) = %v, want %v", tt.downloaded, tt.last, tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestAsTransferError(t *testing.T) {
	env := model.NewEnvironmentError(errors.New("yt-dlp not found"))

	if got := asTransferError("u", 1, env); got != error(env) {
		t.Errorf("environment error was rewrapped: %v", got)
	}
	if got := asTransferError("u", 1, model.ErrCancelled); !errors.Is(got, model.ErrCancelled) {
		t.Errorf("cancellation was rewrapped: %v", got)
	}

	cause := errors.New("connection reset")
	got := asTransferError("u", 2, cause)
	if !model.IsKind(got, model.KindTransfer) || !errors.Is(got, cause) {
		t.Errorf("asTransferError() = %v, want transfer error wrapping the cause", got)
	}
}
