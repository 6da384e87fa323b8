package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/handiism/dlqueue/internal/app"
	"github.com/handiism/dlqueue/internal/config"
	"github.com/handiism/dlqueue/internal/download"
	"github.com/handiism/dlqueue/internal/history"
	"github.com/handiism/dlqueue/internal/logging"
	"github.com/handiism/dlqueue/internal/model"
)

func main() {
	// Command line flags
	var (
		urlsFlag        = flag.String("url", "", "URL(s) to download (comma- or space-separated)")
		outputFlag      = flag.String("output", "", "Output directory (overrides config)")
		configFlag      = flag.String("config", "", "Path to config file")
		audioFlag       = flag.Bool("audio", false, "Download audio only")
		qualityFlag     = flag.String("quality", "", "Maximum video quality: "+strings.Join(model.QualityOptions, ", "))
		verifyFlag      = flag.Bool("verify", false, "Verify files after download")
		playlistFlag    = flag.Bool("playlist", false, "Expand playlist URLs")
		proxyFlag       = flag.String("proxy", "", "Proxy URL for yt-dlp and thumbnail requests")
		concurrencyFlag = flag.Int("concurrency", 0, "Maximum simultaneous downloads (overrides config)")
		historyFlag     = flag.Bool("history", false, "Record finished downloads in the history database")
		exportFlag      = flag.String("export-playlist", "", "Write a playlist of completed downloads: m3u, pls, wpl or zpl")
		checkFlag       = flag.Bool("check", false, "Check for yt-dlp and ffmpeg and exit")
		verboseFlag     = flag.Bool("verbose", false, "Show verbose output")
	)

	flag.Parse()

	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	// Load config
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

	// Apply flags
	if *outputFlag != "" {
		settings.DownloadsPath = *outputFlag
	}
	if *audioFlag {
		settings.AudioOnly = true
	}
	if *qualityFlag != "" {
		settings.Quality = *qualityFlag
	}
	if *verifyFlag {
		settings.Verify = true
	}
	if *playlistFlag {
		settings.Playlist = true
	}
	if *proxyFlag != "" {
		settings.Proxy = *proxyFlag
	}
	if *concurrencyFlag > 0 {
		settings.MaxConcurrent = *concurrencyFlag
	}
	if *exportFlag != "" {
		settings.ExportPlaylist = true
		settings.ExportPlaylistType = *exportFlag
	}

	level := settings.LogLevel
	if *verboseFlag {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, Pretty: true})

	a, err := app.New(settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *checkFlag {
		report := a.Fetcher.Dependencies()
		fmt.Printf("yt-dlp: %s\n", found(report.YTDLPFound, report.YTDLPPath))
		fmt.Printf("ffmpeg: %s\n", found(report.FFmpegFound, report.FFmpegPath))
		if err := a.Fetcher.CheckDependencies(settings.ToOptions()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// CLI mode - require URL
	urls := splitURLs(*urlsFlag)
	urls = append(urls, flag.Args()...)
	if len(urls) == 0 {
		fmt.Println("dlq - download queue for yt-dlp supported sites")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  dlq -url <URL>[,<URL>...] [options]")
		fmt.Println("  dlq <URL> [<URL>...] [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: dlq-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	var wg sync.WaitGroup

	// Print events until the manager shuts down
	events, unsubscribe := a.Manager.Events()
	defer unsubscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			printEvent(download.Describe(ev), *verboseFlag)
		}
	}()

	if *historyFlag {
		if err := os.MkdirAll(settings.DataDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating data dir: %v\n", err)
			os.Exit(1)
		}
		store, err := history.Open(settings.HistoryPath(), settings.HistoryLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		recorder := history.NewRecorder(store, logger)
		historyEvents, stop := a.Manager.Events()
		defer stop()
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Run(context.Background(), historyEvents)
		}()
	}

	fmt.Println("dlq")
	fmt.Println(strings.Repeat("━", 40))
	fmt.Println()

	results, err := a.Queue.Submit(ctx, urls, settings.ToOptions())
	if err != nil {
		printEvent(download.ProgressEvent{Message: err.Error(), Level: download.LevelWarning}, true)
	}
	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
			continue
		}
		printEvent(download.ProgressEvent{Message: fmt.Sprintf("Skipping %s: %v", r.URL, r.Err), Level: download.LevelError}, true)
	}
	if accepted == 0 {
		a.Shutdown(5 * time.Second)
		wg.Wait()
		os.Exit(1)
	}

	drainErr := a.Manager.Drain(ctx)

	path, exportErr := a.ExportPlaylist(context.Background(), "dlq "+time.Now().Format("2006-01-02 15-04-05"))

	jobs := a.Manager.Jobs()
	a.Shutdown(10 * time.Second)
	wg.Wait()

	if drainErr != nil {
		fmt.Println("\nDownload cancelled.")
		os.Exit(130)
	}
	if exportErr != nil {
		fmt.Fprintf(os.Stderr, "Error writing playlist: %v\n", exportErr)
	} else if path != "" {
		fmt.Printf("Playlist written to %s\n", path)
	}

	var completed, failed int
	var size int64
	for _, job := range jobs {
		switch job.Status {
		case model.StatusCompleted:
			completed++
			size += job.TotalBytes
		case model.StatusError:
			failed++
		}
	}
	fmt.Println()
	fmt.Println(strings.Repeat("━", 40))
	fmt.Printf("Complete! %d downloaded, %d failed (%s)\n", completed, failed, model.FormatSize(size))
	if failed > 0 {
		os.Exit(1)
	}
}

func printEvent(event download.ProgressEvent, verbose bool) {
	if event.Level == download.LevelVerbose && !verbose {
		return
	}

	prefix := ""
	switch event.Level {
	case download.LevelError:
		prefix = "✗ "
	case download.LevelWarning:
		prefix = "! "
	case download.LevelSuccess:
		prefix = "✓ "
	case download.LevelInfo:
		prefix = "› "
	default:
		prefix = "  "
	}

	fmt.Println(prefix + event.Message)
}

func found(ok bool, path string) string {
	if !ok {
		return "not found"
	}
	return path
}

func splitURLs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}
