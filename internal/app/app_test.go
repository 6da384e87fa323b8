package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/config"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s := config.DefaultSettings()
	s.DownloadsPath = t.TempDir()
	s.DataDir = t.TempDir()
	return s
}

func TestNew(t *testing.T) {
	s := testSettings(t)
	s.MaxConcurrent = 2

	a, err := New(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(time.Second)

	if got := a.Manager.Concurrency(); got != 2 {
		t.Errorf("Concurrency() = %d, want 2", got)
	}
	if a.Queue == nil || a.Fetcher == nil {
		t.Error("components not wired")
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	s := testSettings(t)
	s.MaxConcurrent = 0
	if _, err := New(s, zerolog.Nop()); err == nil {
		t.Error("New() error = nil for zero concurrency")
	}
}

func TestExportPlaylist_NothingCompleted(t *testing.T) {
	s := testSettings(t)
	s.ExportPlaylist = true

	a, err := New(s, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(time.Second)

	path, err := a.ExportPlaylist(context.Background(), "Session")
	if err != nil || path != "" {
		t.Errorf("ExportPlaylist() = %q, %v, want nothing written", path, err)
	}
}

func TestExportPlaylist_BadFormat(t *testing.T) {
	s := testSettings(t)
	s.ExportPlaylist = true
	s.ExportPlaylistType = "xspf"

	a, err := New(s, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(time.Second)

	if _, err := a.ExportPlaylist(context.Background(), "Session"); err == nil {
		t.Error("ExportPlaylist() error = nil for unknown format")
	}
}
