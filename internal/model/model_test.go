package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"https://youtu.be/abc", true},
		{"http://m.youtube.com/watch?v=abc", true},
		{"https://WWW.YouTube.COM/watch?v=abc", true},
		{"https://vm.tiktok.com/xyz", true},
		{"https://clips.twitch.tv/clip", true},
		{"https://x.com/user/status/1", true},
		{"https://music.youtube.com/watch?v=abc", true},
		{"  https://vimeo.com/123  ", true},
		{"ftp://youtube.com/file", false},
		{"youtube.com/watch?v=abc", false},
		{"https://example.com/video", false},
		{"https://notyoutube.com/watch", false},
		{"https://", false},
		{"", false},
		{"::not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ValidateURL(tt.input, DefaultSites)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateURL(%q) error = %v, want ok=%v", tt.input, err, tt.ok)
			}
			if err != nil && !IsKind(err, KindValidation) {
				t.Errorf("ValidateURL(%q) error kind = %v, want validation", tt.input, err)
			}
		})
	}
}

func TestSiteName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.youtube.com/watch?v=abc", "YouTube"},
		{"https://on.soundcloud.com/abc", "SoundCloud"},
		{"https://odysee.com/@x", "Odysee"},
		{"https://example.com", GenericSite},
		{"%%%", GenericSite},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SiteName(tt.input, DefaultSites); got != tt.want {
				t.Errorf("SiteName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseHosts(t *testing.T) {
	sites := ParseHosts([]string{" WWW.Example.com ", "", "media.test"})
	if _, err := ValidateURL("https://example.com/a", sites); err != nil {
		t.Errorf("example.com rejected: %v", err)
	}
	if _, err := ValidateURL("https://cdn.media.test/a", sites); err != nil {
		t.Errorf("subdomain of media.test rejected: %v", err)
	}
	if _, err := ValidateURL("https://youtube.com/a", sites); err == nil {
		t.Error("youtube.com accepted by custom host list")
	}
	if ParseHosts(nil) != nil {
		t.Error("ParseHosts(nil) should be nil")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusDownloading, true},
		{StatusQueued, StatusCancelled, true},
		{StatusDownloading, StatusPaused, true},
		{StatusPaused, StatusDownloading, true},
		{StatusDownloading, StatusCompleted, true},
		{StatusDownloading, StatusError, true},
		{StatusPaused, StatusCancelled, true},
		{StatusQueued, StatusCompleted, false},
		{StatusPaused, StatusCompleted, false},
		{StatusPaused, StatusError, false},
		{StatusCompleted, StatusError, false},
		{StatusCancelled, StatusDownloading, false},
		{Status("bogus"), StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJob_Transition(t *testing.T) {
	job := NewJob("https://youtu.be/a", "tok", Options{}, time.Now())
	if err := job.Transition(StatusCompleted); err == nil {
		t.Fatal("expected illegal transition error")
	}
	if job.Status != StatusQueued {
		t.Errorf("status changed on illegal transition: %q", job.Status)
	}
	if err := job.Transition(StatusDownloading); err != nil {
		t.Fatalf("Transition(downloading) error = %v", err)
	}
	if !job.Status.IsActive() || job.Status.IsTerminal() {
		t.Errorf("downloading: IsActive=%v IsTerminal=%v", job.Status.IsActive(), job.Status.IsTerminal())
	}
}

func TestOptions_FilenameTemplate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"default video", Options{}, "%(title)s [%(resolution)s].%(ext)s"},
		{"default audio", Options{AudioOnly: true}, "%(title)s.%(ext)s"},
		{"custom", Options{FilenameTemplate: "%(id)s.%(ext)s"}, "%(id)s.%(ext)s"},
		{"custom audio", Options{AudioOnly: true, FilenameTemplate: "%(uploader)s - %(title)s[%(resolution)s].%(ext)s"}, "%(uploader)s - %(title)s.%(ext)s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.FilenameTemplateOrDefault(); got != tt.want {
				t.Errorf("FilenameTemplateOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewTransferError("https://youtu.be/a", 2, cause))

	if !IsKind(err, KindTransfer) {
		t.Errorf("IsKind(transfer) = false for %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("transfer error does not unwrap to its cause")
	}
	if errors.Is(err, ErrCancelled) {
		t.Error("transfer error matched ErrCancelled")
	}
	if !errors.Is(fmt.Errorf("x: %w", ErrCancelled), ErrCancelled) {
		t.Error("wrapped ErrCancelled not matched")
	}
	if !errors.Is(&Error{Kind: KindCancelled, URL: "u"}, ErrCancelled) {
		t.Error("cancelled error with URL not matched")
	}

	for _, k := range []ErrorKind{KindValidation, KindTransfer, KindIntegrity, KindEnvironment, KindCancelled} {
		if Message(k) == Message(ErrorKind(99)) {
			t.Errorf("Message(%v) falls through to the default", k)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatSpeed(1536); got != "1.50 KB/s" {
		t.Errorf("FormatSpeed(1536) = %q", got)
	}
	if got := FormatSize(12 * 1024 * 1024); got != "12.00 MB" {
		t.Errorf("FormatSize(12MB) = %q", got)
	}
	if got := FormatSize(3 * 1024 * 1024 * 1024); got != "3.00 GB" {
		t.Errorf("FormatSize(3GB) = %q", got)
	}
	if got := FormatDuration(75 * time.Second); got != "01:15" {
		t.Errorf("FormatDuration(75s) = %q", got)
	}
	if got := FormatDuration(3723 * time.Second); got != "01:02:03" {
		t.Errorf("FormatDuration(3723s) = %q", got)
	}
	if got := FormatDuration(-1); got != "--:--" {
		t.Errorf("FormatDuration(-1) = %q", got)
	}
}

func TestMetadata_UploadTime(t *testing.T) {
	m := Metadata{UploadDate: "20240131"}
	if got := m.UploadTime(); got.Year() != 2024 || got.Month() != time.January || got.Day() != 31 {
		t.Errorf("UploadTime() = %v", got)
	}
	if !(Metadata{UploadDate: "bad"}).UploadTime().IsZero() {
		t.Error("malformed date should give zero time")
	}
}
