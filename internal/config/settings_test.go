package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/handiism/dlqueue/internal/model"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if settings.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", settings.MaxConcurrent)
	}
	if settings.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", settings.MaxAttempts)
	}
	if got := settings.RetryBackoff(); got != 5*time.Second {
		t.Errorf("RetryBackoff() = %v, want 5s", got)
	}
}

func TestSaveLoad_RoundTripKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	settings := DefaultSettings()
	settings.MaxConcurrent = 2
	settings.Quality = "720p"
	settings.AllowedHosts = []string{"example.com"}

	if err := settings.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(settings, loaded) {
		t.Errorf("Load() = %+v, want %+v", loaded, settings)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"max_concurrent": 9}`), 0644); err != nil {
		t.Fatal(err)
	}
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if settings.MaxConcurrent != 9 || settings.MaxAttempts != 3 {
		t.Errorf("MaxConcurrent=%d MaxAttempts=%d, want 9 and 3", settings.MaxConcurrent, settings.MaxAttempts)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"zero concurrency", func(s *Settings) { s.MaxConcurrent = 0 }, true},
		{"zero attempts", func(s *Settings) { s.MaxAttempts = 0 }, true},
		{"negative retries", func(s *Settings) { s.Retries = -1 }, true},
		{"negative backoff", func(s *Settings) { s.RetryBackoffSeconds = -1 }, true},
		{"empty path", func(s *Settings) { s.DownloadsPath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DLQ_MAX_CONCURRENT", "7")
	t.Setenv("DLQ_PROXY", "socks5://127.0.0.1:1080")
	t.Setenv("DLQ_ALLOWED_HOSTS", "example.com, media.test ,")

	s := DefaultSettings()
	if err := s.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if s.MaxConcurrent != 7 {
		t.Errorf("MaxConcurrent = %d, want 7", s.MaxConcurrent)
	}
	if s.Proxy != "socks5://127.0.0.1:1080" {
		t.Errorf("Proxy = %q", s.Proxy)
	}
	if want := []string{"example.com", "media.test"}; !reflect.DeepEqual(s.AllowedHosts, want) {
		t.Errorf("AllowedHosts = %v, want %v", s.AllowedHosts, want)
	}
	if _, err := model.ValidateURL("https://media.test/v", s.Sites()); err != nil {
		t.Errorf("configured host rejected: %v", err)
	}
}

func TestApplyEnv_BadInt(t *testing.T) {
	t.Setenv("DLQ_MAX_CONCURRENT", "lots")
	if err := DefaultSettings().ApplyEnv(); err == nil {
		t.Error("ApplyEnv() accepted non-numeric concurrency")
	}
}

func TestToOptions(t *testing.T) {
	s := DefaultSettings()
	s.AudioOnly = true
	s.Verify = true
	s.SaveThumbnail = true

	opts := s.ToOptions()
	if !opts.AudioOnly || !opts.Verify || !opts.Thumbnail {
		t.Errorf("ToOptions() lost flags: %+v", opts)
	}
	if opts.OutputDir != s.DownloadsPath {
		t.Errorf("OutputDir = %q, want %q", opts.OutputDir, s.DownloadsPath)
	}
	if got := s.Sites(); len(got) != len(model.DefaultSites) {
		t.Errorf("Sites() without hosts = %d sites, want built-in list", len(got))
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	child := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DLQ_TEST_DOTENV=found\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(child)
	t.Setenv("DLQ_TEST_DOTENV", "")
	os.Unsetenv("DLQ_TEST_DOTENV")

	path, err := LoadDotEnv()
	if err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if path != filepath.Join(dir, ".env") {
		t.Errorf("LoadDotEnv() path = %q", path)
	}
	if got := os.Getenv("DLQ_TEST_DOTENV"); got != "found" {
		t.Errorf("DLQ_TEST_DOTENV = %q, want found", got)
	}
}
