package model

import (
	"strings"
	"time"
)

// DefaultFilenameTemplate is the yt-dlp output template used when Options leaves it empty.
const DefaultFilenameTemplate = "%(title)s [%(resolution)s].%(ext)s"

// Quality presets accepted by Options.Quality.
var QualityOptions = []string{"Best", "4K", "1440p", "1080p", "720p", "480p", "360p"}

// AudioFormats and VideoFormats list the container formats the UIs offer.
var (
	AudioFormats = []string{"mp3", "wav", "ogg", "flac", "m4a"}
	VideoFormats = []string{"mp4", "mkv", "webm", "avi", "mov"}
)

// Options is the configuration snapshot taken when a job is submitted.
//
// Options is copied by value into every Job and never mutated afterwards,
// so a running worker is unaffected by later settings changes.
type Options struct {
	// AudioOnly routes to audio-only format selection and extraction.
	AudioOnly bool `json:"audio_only"`

	// Quality caps the video resolution ("Best", "1080p", ...).
	Quality string `json:"quality"`

	// OutputDir is the destination directory, created lazily.
	OutputDir string `json:"path"`

	// Verify runs the post-download integrity check.
	Verify bool `json:"verify"`

	// Playlist expands playlist URLs instead of downloading a single item.
	Playlist bool `json:"playlist"`

	// Proxy routes fetcher traffic, e.g. "socks5://127.0.0.1:1080".
	Proxy string `json:"proxy,omitempty"`

	// Retries is the fetcher's own per-request retry count.
	Retries int `json:"retries"`

	// Subtitles downloads subtitles and converts them to SRT.
	Subtitles bool `json:"subtitles"`

	AudioFormat      string `json:"audio_format,omitempty"`
	VideoFormat      string `json:"video_format,omitempty"`
	FilenameTemplate string `json:"filename_template,omitempty"`

	// Thumbnail saves the probed thumbnail as a JPEG next to the output.
	Thumbnail bool `json:"thumbnail"`

	// TagAudio writes ID3 tags into MP3 outputs of audio-only jobs.
	TagAudio bool `json:"tag_audio"`
}

// FilenameTemplateOrDefault returns the output template, without the
// resolution segment for audio-only jobs.
func (o Options) FilenameTemplateOrDefault() string {
	tmpl := o.FilenameTemplate
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}
	if o.AudioOnly {
		tmpl = strings.ReplaceAll(tmpl, " [%(resolution)s]", "")
		tmpl = strings.ReplaceAll(tmpl, "[%(resolution)s]", "")
	}
	return tmpl
}

// AudioFormatOrDefault returns the audio codec, "mp3" when unset.
func (o Options) AudioFormatOrDefault() string {
	if o.AudioFormat == "" {
		return "mp3"
	}
	return o.AudioFormat
}

// VideoFormatOrDefault returns the merge container, "mp4" when unset.
func (o Options) VideoFormatOrDefault() string {
	if o.VideoFormat == "" {
		return "mp4"
	}
	return o.VideoFormat
}

// Metadata is what a probe learns about a URL before any bytes move.
type Metadata struct {
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"` // seconds
	Uploader    string  `json:"uploader"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Resolution  string  `json:"resolution"`
	ViewCount   int64   `json:"view_count"`
	UploadDate  string  `json:"upload_date,omitempty"` // YYYYMMDD
	Description string  `json:"description,omitempty"`
	Ext         string  `json:"ext,omitempty"`
}

// UploadTime parses UploadDate, returning the zero time if it is missing or malformed.
func (m Metadata) UploadTime() time.Time {
	t, err := time.Parse("20060102", m.UploadDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ProgressFunc receives transfer progress from a fetcher.
//
// eta is the fetcher's own estimate, or a negative value when unknown.
// A non-nil return asks the fetcher to abort the transfer.
type ProgressFunc func(downloaded, total int64, eta time.Duration) error

// Job is one tracked download request and its runtime state.
//
// A Job value handed out by the download manager is a snapshot; the live
// state is owned by the job's worker.
type Job struct {
	// ID is the URL; unique among jobs that are queued, active or paused.
	ID string `json:"id"`

	// Token distinguishes different submissions of the same URL.
	Token string `json:"token"`

	Options Options `json:"options"`
	Status  Status  `json:"status"`

	// Progress is a percentage in [0,100], never decreasing while downloading.
	Progress        float64 `json:"progress"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	TotalBytes      int64   `json:"total_bytes"`

	// Speed (bytes per second) and ETA are advisory.
	Speed float64       `json:"speed"`
	ETA   time.Duration `json:"eta"`

	// Metadata is nil until the first successful probe.
	Metadata *Metadata `json:"metadata,omitempty"`

	Attempts    int       `json:"attempts"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`

	// FilePath is set on completion, and on integrity failures for inspection.
	FilePath string `json:"file_path,omitempty"`

	// Err is the terminal failure, if any.
	Err error `json:"-"`
}

// NewJob creates a queued job for url.
func NewJob(url, token string, opts Options, now time.Time) *Job {
	return &Job{
		ID:          url,
		Token:       token,
		Options:     opts,
		Status:      StatusQueued,
		SubmittedAt: now,
	}
}

// Title returns the probed title, falling back to the URL.
func (j Job) Title() string {
	if j.Metadata != nil && j.Metadata.Title != "" {
		return j.Metadata.Title
	}
	return j.ID
}

// ErrorMessage returns the terminal error text, or "" if none.
func (j Job) ErrorMessage() string {
	if j.Err == nil {
		return ""
	}
	return j.Err.Error()
}
