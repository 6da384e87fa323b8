package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/handiism/dlqueue/internal/app"
	"github.com/handiism/dlqueue/internal/config"
	"github.com/handiism/dlqueue/internal/logging"
	"github.com/handiism/dlqueue/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := settings.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file in the data dir.
	var logOut io.Writer = io.Discard
	if err := os.MkdirAll(settings.DataDir, 0755); err == nil {
		if f, err := os.OpenFile(filepath.Join(settings.DataDir, "dlq-tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			defer f.Close()
			logOut = f
		}
	}
	logger := logging.New(logging.Options{Level: settings.LogLevel, Writer: logOut})

	a, err := app.New(settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runErr := tui.Run(a.Manager, a.Queue, settings)
	a.Shutdown(10 * time.Second)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
