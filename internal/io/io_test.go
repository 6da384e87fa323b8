package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Song: Part 1/2", "Song_ Part 1_2"},
		{"Track...", "Track"},
		{"Name   with  spaces", "Name with spaces"},
		{"  padded  ", "padded"},
		{`a<b>c"d|e?f*g`, "a_b_c_d_e_f_g"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.input); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeFileName_Truncates(t *testing.T) {
	long := strings.Repeat("é", 150) // 300 bytes
	got := SanitizeFileName(long)
	if len(got) > maxFileNameSize {
		t.Errorf("len = %d, want <= %d", len(got), maxFileNameSize)
	}
	if !strings.HasPrefix(long, got) || len(got)%2 != 0 {
		t.Errorf("truncation split a rune: %q", got)
	}
}

func TestWriteFileAndSize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir on existing dir: %v", err)
	}

	path := filepath.Join(dir, "cover.jpg")
	if err := WriteFile(context.Background(), path, []byte("12345")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	size, err := FileSize(path)
	if err != nil || size != 5 {
		t.Errorf("FileSize() = %d, %v, want 5", size, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the target file", len(entries))
	}

	if _, err := FileSize(dir); err == nil {
		t.Error("FileSize(dir) error = nil, want error")
	}
	if _, err := FileSize(filepath.Join(dir, "missing")); err == nil {
		t.Error("FileSize(missing) error = nil, want error")
	}
}

func TestReplaceExt(t *testing.T) {
	if got := ReplaceExt("/x/Song [720p].mp4", ".jpg"); got != "/x/Song [720p].jpg" {
		t.Errorf("ReplaceExt() = %q", got)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestResizeImage(t *testing.T) {
	svc := NewImageService()
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 1280, 720, 1000, 562},
		{"portrait", 400, 800, 250, 500},
		{"already small", 300, 200, 300, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxSize := 1000
			if tt.name == "portrait" {
				maxSize = 500
			}
			out, err := svc.ResizeImage(context.Background(), testPNG(t, tt.w, tt.h), maxSize, maxSize)
			if err != nil {
				t.Fatalf("ResizeImage() error = %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("output is not JPEG: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestConvertToJPEG_Invalid(t *testing.T) {
	if _, err := NewImageService().ConvertToJPEG(context.Background(), []byte("not an image")); err == nil {
		t.Error("ConvertToJPEG() error = nil for garbage input")
	}
}
