package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/dlqueue/internal/model"
)

// Client runs the yt-dlp binary. It implements download.Fetcher.
type Client struct {
	binary string
	ffmpeg string
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBinary sets the yt-dlp executable (name on PATH or absolute path).
func WithBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithFFmpeg sets the ffmpeg executable used for merging and extraction.
func WithFFmpeg(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.ffmpeg = path
		}
	}
}

// WithLogger sets the logger for yt-dlp diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client that runs "yt-dlp" and "ffmpeg" from PATH
// unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{binary: "yt-dlp", ffmpeg: "ffmpeg", logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DependencyReport says which external tools were found.
type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

// Dependencies looks up yt-dlp and ffmpeg.
func (c *Client) Dependencies() DependencyReport {
	var report DependencyReport
	if path, err := exec.LookPath(c.binary); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath(c.ffmpeg); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// CheckDependencies returns an environment error when a tool needed for
// opts is missing.
func (c *Client) CheckDependencies(opts model.Options) error {
	report := c.Dependencies()
	if !report.YTDLPFound {
		return model.NewEnvironmentError(fmt.Errorf("%s is not installed or not on PATH", c.binary))
	}
	if needsFFmpeg(opts) && !report.FFmpegFound {
		return model.NewEnvironmentError(fmt.Errorf("%s is required for merging and audio extraction and was not found on PATH", c.ffmpeg))
	}
	return nil
}

type probeInfo struct {
	Type           string   `json:"_type"`
	Title          string   `json:"title"`
	Duration       float64  `json:"duration"`
	Uploader       string   `json:"uploader"`
	Thumbnail      string   `json:"thumbnail"`
	Resolution     string   `json:"resolution"`
	ViewCount      int64    `json:"view_count"`
	UploadDate     string   `json:"upload_date"`
	Description    string   `json:"description"`
	Ext            string   `json:"ext"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
}

func (p probeInfo) metadata() model.Metadata {
	m := model.Metadata{
		Title:       p.Title,
		Duration:    p.Duration,
		Uploader:    p.Uploader,
		Thumbnail:   p.Thumbnail,
		Resolution:  p.Resolution,
		ViewCount:   p.ViewCount,
		UploadDate:  p.UploadDate,
		Description: p.Description,
		Ext:         p.Ext,
	}
	if m.Title == "" {
		m.Title = "Untitled"
	}
	if m.Uploader == "" {
		m.Uploader = "Unknown"
	}
	if m.Resolution == "" {
		m.Resolution = "N/A"
	}
	return m
}

func (p probeInfo) size() int64 {
	switch {
	case p.Filesize != nil && *p.Filesize > 0:
		return int64(*p.Filesize)
	case p.FilesizeApprox != nil && *p.FilesizeApprox > 0:
		return int64(*p.FilesizeApprox)
	default:
		return 0
	}
}

// Probe fetches metadata and the expected size (0 if unknown) without
// downloading.
func (c *Client) Probe(ctx context.Context, url string, opts model.Options) (model.Metadata, int64, error) {
	if err := c.CheckDependencies(opts); err != nil {
		return model.Metadata{}, 0, err
	}

	cmd := exec.CommandContext(ctx, c.binary, probeArgs(url, opts)...)
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return model.Metadata{}, 0, ctx.Err()
		}
		return model.Metadata{}, 0, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return model.Metadata{}, 0, errors.New("yt-dlp returned empty output")
	}

	var info probeInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return model.Metadata{}, 0, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return info.metadata(), info.size(), nil
}

// Transfer downloads url and returns the final file path.
//
// onProgress runs on the goroutine reading yt-dlp's output. While it
// blocks, yt-dlp blocks on its next write; when it returns an error the
// process is killed and that error is returned.
func (c *Client) Transfer(ctx context.Context, url string, opts model.Options, onProgress model.ProgressFunc) (string, error) {
	if err := c.CheckDependencies(opts); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := transferArgs(url, opts, c.ffmpegLocation(opts))
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("setup stdout pipe: %w", err)
	}
	var stderr tailBuffer
	cmd.Stderr = &stderr

	c.logger.Debug().Str("url", url).Strs("args", args).Msg("starting yt-dlp")
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start yt-dlp: %w", err)
	}

	var (
		finalPath   string
		progressErr error
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		line := scanner.Text()
		if p, ok := parseProgress(line); ok {
			if progressErr != nil || onProgress == nil {
				continue
			}
			if err := onProgress(p.downloaded, p.total, p.eta); err != nil {
				progressErr = err
				cancel()
			}
			continue
		}
		if path := strings.TrimSpace(line); filepath.IsAbs(path) {
			finalPath = path
			continue
		}
		c.logger.Trace().Str("url", url).Msg(line)
	}
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := cmd.Wait()
	switch {
	case progressErr != nil:
		return "", progressErr
	case ctx.Err() != nil:
		return "", ctx.Err()
	case waitErr != nil:
		return "", fmt.Errorf("yt-dlp failed: %w: %s", waitErr, stderr.String())
	case finalPath == "":
		return "", errors.New("yt-dlp did not report an output file")
	}
	if _, err := os.Stat(finalPath); err != nil {
		return "", fmt.Errorf("output file: %w", err)
	}
	return finalPath, nil
}

// ffmpegLocation returns the resolved ffmpeg path to pass to yt-dlp, or ""
// to let yt-dlp find it.
func (c *Client) ffmpegLocation(opts model.Options) string {
	if !needsFFmpeg(opts) {
		return ""
	}
	path, err := exec.LookPath(c.ffmpeg)
	if err != nil {
		return ""
	}
	return path
}

// splitByNewlineOrCR splits on '\n' or '\r' so carriage-return progress
// updates become separate lines.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last 8 KiB written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const tailSize = 8192

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - tailSize; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
