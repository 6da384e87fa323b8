package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/handiism/dlqueue/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath       string  `json:"downloads_path"`
	MaxConcurrent       int     `json:"max_concurrent"`
	MaxAttempts         int     `json:"max_attempts"`
	RetryBackoffSeconds float64 `json:"retry_backoff_seconds"`
	Retries             int     `json:"retries"`
	Proxy               string  `json:"proxy"`
	Verify              bool    `json:"verify"`
	Playlist            bool    `json:"playlist"`
	Subtitles           bool    `json:"subtitles"`
	FilenameTemplate    string  `json:"filename_template"`
	YTDLPPath           string  `json:"ytdlp_path"`
	FFmpegPath          string  `json:"ffmpeg_path"`

	// Format selection
	Quality     string `json:"quality"` // Best, 4K, 1440p, 1080p, 720p, 480p, 360p
	AudioOnly   bool   `json:"audio_mode"`
	AudioFormat string `json:"audio_format"` // mp3, wav, ogg, flac, m4a
	VideoFormat string `json:"video_format"` // mp4, mkv, webm, avi, mov

	// Thumbnail and tag settings
	SaveThumbnail      bool   `json:"save_thumbnail"`
	ThumbnailResize    bool   `json:"thumbnail_resize"`
	ThumbnailMaxSize   int    `json:"thumbnail_max_size"`
	TagAudio           bool   `json:"tag_audio"`
	ExportPlaylist     bool   `json:"export_playlist"`
	ExportPlaylistType string `json:"export_playlist_format"` // m3u, pls, wpl, zpl

	// Allowed hosts; empty means the built-in site list
	AllowedHosts []string `json:"allowed_hosts,omitempty"`

	// Persistence and services
	DataDir       string `json:"data_dir"`
	HistoryLimit  int    `json:"history_limit"`
	ListenAddr    string `json:"listen_addr"`
	ScheduleEvery int    `json:"schedule_poll_seconds"`
	LogLevel      string `json:"log_level"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:       filepath.Join(homeDir, "Downloads", "dlqueue"),
		MaxConcurrent:       5,
		MaxAttempts:         3,
		RetryBackoffSeconds: 5,
		Retries:             3,
		Playlist:            false,
		FilenameTemplate:    model.DefaultFilenameTemplate,
		YTDLPPath:           "yt-dlp",
		FFmpegPath:          "ffmpeg",

		Quality:     "1080p",
		AudioFormat: "mp3",
		VideoFormat: "mp4",

		SaveThumbnail:      false,
		ThumbnailResize:    true,
		ThumbnailMaxSize:   1000,
		TagAudio:           true,
		ExportPlaylistType: "m3u",

		DataDir:       filepath.Join(homeDir, ".dlqueue"),
		HistoryLimit:  500,
		ListenAddr:    ":8080",
		ScheduleEvery: 30,
		LogLevel:      "info",
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the download manager cannot run with.
func (s *Settings) Validate() error {
	var errs []error
	if s.DownloadsPath == "" {
		errs = append(errs, errors.New("downloads_path must not be empty"))
	}
	if s.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent must be positive, got %d", s.MaxConcurrent))
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be positive, got %d", s.MaxAttempts))
	}
	if s.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", s.Retries))
	}
	if s.RetryBackoffSeconds < 0 {
		errs = append(errs, fmt.Errorf("retry_backoff_seconds must not be negative, got %v", s.RetryBackoffSeconds))
	}
	return errors.Join(errs...)
}

// ToOptions converts settings to the per-submission options snapshot.
func (s *Settings) ToOptions() model.Options {
	return model.Options{
		AudioOnly:        s.AudioOnly,
		Quality:          s.Quality,
		OutputDir:        s.DownloadsPath,
		Verify:           s.Verify,
		Playlist:         s.Playlist,
		Proxy:            s.Proxy,
		Retries:          s.Retries,
		Subtitles:        s.Subtitles,
		AudioFormat:      s.AudioFormat,
		VideoFormat:      s.VideoFormat,
		FilenameTemplate: s.FilenameTemplate,
		Thumbnail:        s.SaveThumbnail,
		TagAudio:         s.TagAudio,
	}
}

// Sites returns the allowed sites: the configured hosts, or the built-in list.
func (s *Settings) Sites() []model.Site {
	if sites := model.ParseHosts(s.AllowedHosts); len(sites) > 0 {
		return sites
	}
	return model.DefaultSites
}

// RetryBackoff returns the linear backoff base.
func (s *Settings) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffSeconds * float64(time.Second))
}

// HistoryPath is the SQLite history database inside DataDir.
func (s *Settings) HistoryPath() string {
	return filepath.Join(s.DataDir, "history.db")
}

// SchedulesPath is the JSON schedule file inside DataDir.
func (s *Settings) SchedulesPath() string {
	return filepath.Join(s.DataDir, "schedules.json")
}

// SchedulePollInterval returns how often the schedule poller wakes up.
func (s *Settings) SchedulePollInterval() time.Duration {
	if s.ScheduleEvery <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ScheduleEvery) * time.Second
}
