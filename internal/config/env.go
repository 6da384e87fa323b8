package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the nearest .env file, searching the working directory
// and up to four parents. Variables already set in the environment win.
func LoadDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, godotenv.Load(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// ApplyEnv overrides settings from DLQ_* environment variables.
func (s *Settings) ApplyEnv() error {
	s.DownloadsPath = getenv("DLQ_DOWNLOADS_PATH", s.DownloadsPath)
	s.Proxy = getenv("DLQ_PROXY", s.Proxy)
	s.LogLevel = getenv("DLQ_LOG_LEVEL", s.LogLevel)
	s.ListenAddr = getenv("DLQ_ADDR", s.ListenAddr)
	s.DataDir = getenv("DLQ_DATA_DIR", s.DataDir)
	s.YTDLPPath = getenv("DLQ_YTDLP", s.YTDLPPath)
	s.FFmpegPath = getenv("DLQ_FFMPEG", s.FFmpegPath)
	s.AllowedHosts = getenvCSV("DLQ_ALLOWED_HOSTS", s.AllowedHosts)

	var err error
	if s.MaxConcurrent, err = getenvInt("DLQ_MAX_CONCURRENT", s.MaxConcurrent); err != nil {
		return err
	}
	if s.MaxAttempts, err = getenvInt("DLQ_MAX_ATTEMPTS", s.MaxAttempts); err != nil {
		return err
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getenvCSV(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	values := splitCSV(raw)
	if len(values) == 0 {
		return fallback
	}
	return values
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
