package ytdlp

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/handiism/dlqueue/internal/model"
)

// progressPrefix marks the machine-readable progress lines requested with
// --progress-template.
const progressPrefix = "dlq-progress"

const progressTemplate = "download:" + progressPrefix +
	" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s %(progress.eta)s"

var qualityHeights = map[string]int{
	"4K":    2160,
	"1440p": 1440,
	"1080p": 1080,
	"720p":  720,
	"480p":  480,
	"360p":  360,
}

// formatFor returns the -f selector for opts. MP4/M4A streams are preferred
// so merges rarely need re-encoding; any stream is the last resort.
func formatFor(opts model.Options) string {
	if opts.AudioOnly {
		return "bestaudio/best"
	}
	height, ok := qualityHeights[opts.Quality]
	if !ok {
		return "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b"
	}
	h := "[height<=" + strconv.Itoa(height) + "]"
	return "bv*" + h + "[ext=mp4]+ba[ext=m4a]/b" + h + "[ext=mp4]/bv*" + h + "+ba/b" + h
}

// needsFFmpeg reports whether the download involves a merge or a
// conversion step.
func needsFFmpeg(opts model.Options) bool {
	return opts.AudioOnly || opts.Subtitles || strings.Contains(formatFor(opts), "+")
}

func probeArgs(url string, opts model.Options) []string {
	args := []string{"-J", "--no-warnings", "--no-playlist", "--socket-timeout", "60"}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	return append(args, "--", url)
}

func transferArgs(url string, opts model.Options, ffmpeg string) []string {
	retries := strconv.Itoa(max(opts.Retries, 0))
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-playlist",
		"--progress",
		"--progress-template", progressTemplate,
		"--no-simulate",
		"--print", "after_move:filepath",
		"-f", formatFor(opts),
		"-o", filepath.Join(opts.OutputDir, opts.FilenameTemplateOrDefault()),
		"--retries", retries,
		"--fragment-retries", retries,
		"--socket-timeout", "60",
		"--continue",
	}

	if opts.AudioOnly {
		args = append(args, "-x", "--audio-format", opts.AudioFormatOrDefault(), "--audio-quality", "320K")
	} else {
		args = append(args, "--merge-output-format", opts.VideoFormatOrDefault())
	}
	if opts.Subtitles {
		args = append(args,
			"--write-subs",
			"--write-auto-subs",
			"--sub-langs", "all,-live_chat",
			"--convert-subs", "srt",
		)
	}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	if ffmpeg != "" && needsFFmpeg(opts) {
		args = append(args, "--ffmpeg-location", ffmpeg)
	}
	return append(args, "--", url)
}
