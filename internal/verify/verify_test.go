package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVerify(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg needs a POSIX shell")
	}
	dir := t.TempDir()
	good := writeFile(t, dir, "ffmpeg-ok", "#!/bin/sh\nexit 0\n", 0755)
	bad := writeFile(t, dir, "ffmpeg-bad", "#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n", 0755)
	media := writeFile(t, dir, "clip.mp4", "0123456789", 0644)
	empty := writeFile(t, dir, "empty.mp4", "", 0644)

	tests := []struct {
		name      string
		ffmpeg    string
		path      string
		expected  int64
		audioOnly bool
		wantErr   error
		ok        bool
	}{
		{"valid video", good, media, 10, false, nil, true},
		{"size mismatch only warns", good, media, 1000, false, nil, true},
		{"corrupted video", bad, media, 0, false, ErrCorrupted, false},
		{"audio skips decode", bad, media, 0, true, nil, true},
		{"empty file", good, empty, 0, true, ErrEmptyFile, false},
		{"missing file", good, filepath.Join(dir, "nope.mp4"), 0, true, nil, false},
		{"missing ffmpeg", filepath.Join(dir, "none"), media, 0, false, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewChecker(WithFFmpeg(tt.ffmpeg)).Verify(context.Background(), tt.path, tt.expected, tt.audioOnly)
			if (err == nil) != tt.ok {
				t.Fatalf("Verify() error = %v, want ok=%v", err, tt.ok)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSizeMismatch(t *testing.T) {
	tests := []struct {
		actual, expected int64
		want             bool
	}{
		{100, 0, false},
		{105, 100, false},
		{110, 100, false},
		{111, 100, true},
		{80, 100, true},
	}
	for _, tt := range tests {
		if got := sizeMismatch(tt.actual, tt.expected); got != tt.want {
			t.Errorf("sizeMismatch(%d, %d) = %v, want %v", tt.actual, tt.expected, got, tt.want)
		}
	}
}
