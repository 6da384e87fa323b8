// Package config provides configuration management for dlqueue.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Environment overrides (DLQ_*) and .env files
//   - Conversion to model.Options for each submission
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Downloads/dlqueue
//	// Five concurrent downloads, three attempts, 5s linear backoff
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	_, _ = config.LoadDotEnv()
//	err = settings.ApplyEnv()
//
// # Saving Settings
//
//	settings.MaxConcurrent = 3
//	err := settings.Save("/path/to/config.json")
//
// # Environment
//
//	DLQ_DOWNLOADS_PATH, DLQ_MAX_CONCURRENT, DLQ_MAX_ATTEMPTS, DLQ_PROXY,
//	DLQ_LOG_LEVEL, DLQ_ADDR, DLQ_DATA_DIR, DLQ_YTDLP, DLQ_FFMPEG,
//	DLQ_ALLOWED_HOSTS (comma-separated)
package config
