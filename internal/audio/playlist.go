package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	ioutils "github.com/handiism/dlqueue/internal/io"
	"github.com/handiism/dlqueue/internal/model"
)

// PlaylistFormat represents supported playlist file formats.
//
//   - M3U: Simple text format, widely supported
//   - PLS: INI-style format, used by Winamp
//   - WPL: XML format, Windows Media Player
//   - ZPL: XML format, Zune/Groove Music
type PlaylistFormat int

const (
	FormatM3U PlaylistFormat = iota
	FormatPLS
	FormatWPL
	FormatZPL
)

var playlistExts = [...]string{
	FormatM3U: "m3u",
	FormatPLS: "pls",
	FormatWPL: "wpl",
	FormatZPL: "zpl",
}

// Ext returns the file extension without the dot.
func (f PlaylistFormat) Ext() string {
	if f < 0 || int(f) >= len(playlistExts) {
		return playlistExts[FormatM3U]
	}
	return playlistExts[f]
}

// ParsePlaylistFormat maps "m3u", "pls", "wpl" or "zpl" to a format.
func ParsePlaylistFormat(s string) (PlaylistFormat, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for i, ext := range playlistExts {
		if ext == s {
			return PlaylistFormat(i), nil
		}
	}
	return FormatM3U, fmt.Errorf("unknown playlist format %q", s)
}

// PlaylistCreator exports finished downloads as a playlist.
//
// Only completed jobs with a file path are included, in the order given.
// Entries are written relative to the playlist's directory when the file
// lives below it.
//
//	creator := NewPlaylistCreator(FormatM3U, true)
//	path, err := creator.WritePlaylist(ctx, "/downloads", "Session", manager.Jobs())
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // M3U only: include #EXTINF lines
}

// NewPlaylistCreator creates a new PlaylistCreator.
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{format: format, extended: extended}
}

type entry struct {
	src      string
	title    string
	artist   string
	duration int // seconds
}

func entries(dir string, jobs []model.Job) []entry {
	var out []entry
	for _, job := range jobs {
		if job.Status != model.StatusCompleted || job.FilePath == "" {
			continue
		}
		e := entry{src: job.FilePath, title: job.Title()}
		if rel, err := filepath.Rel(dir, job.FilePath); err == nil && !strings.HasPrefix(rel, "..") {
			e.src = rel
		}
		if job.Metadata != nil {
			e.artist = job.Metadata.Uploader
			e.duration = int(job.Metadata.Duration)
		}
		out = append(out, e)
	}
	return out
}

// CreatePlaylist renders the playlist for jobs, with paths relative to dir.
func (p *PlaylistCreator) CreatePlaylist(dir, title string, jobs []model.Job) string {
	items := entries(dir, jobs)
	switch p.format {
	case FormatPLS:
		return p.createPLS(items)
	case FormatWPL:
		return p.createSMIL("wpl", "1.0", title, items, false)
	case FormatZPL:
		return p.createSMIL("zpl", "2.0", title, items, true)
	default:
		return p.createM3U(items)
	}
}

// WritePlaylist writes the playlist to dir/<title>.<ext> and returns its path.
func (p *PlaylistCreator) WritePlaylist(ctx context.Context, dir, title string, jobs []model.Job) (string, error) {
	if err := ioutils.EnsureDir(dir); err != nil {
		return "", err
	}
	name := ioutils.SanitizeFileName(title)
	if name == "" {
		name = "playlist"
	}
	path := filepath.Join(dir, name+"."+p.format.Ext())
	if err := ioutils.WriteFile(ctx, path, []byte(p.CreatePlaylist(dir, title, jobs))); err != nil {
		return "", err
	}
	return path, nil
}

func (p *PlaylistCreator) createM3U(items []entry) string {
	var sb strings.Builder
	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}
	for _, e := range items {
		if p.extended {
			label := e.title
			if e.artist != "" {
				label = e.artist + " - " + e.title
			}
			fmt.Fprintf(&sb, "#EXTINF:%d,%s\n", e.duration, label)
		}
		sb.WriteString(e.src + "\n")
	}
	return sb.String()
}

func (p *PlaylistCreator) createPLS(items []entry) string {
	var sb strings.Builder
	sb.WriteString("[playlist]\n")
	for i, e := range items {
		n := i + 1
		fmt.Fprintf(&sb, "File%d=%s\n", n, e.src)
		fmt.Fprintf(&sb, "Title%d=%s\n", n, e.title)
		fmt.Fprintf(&sb, "Length%d=%d\n", n, e.duration)
	}
	fmt.Fprintf(&sb, "NumberOfEntries=%d\n", len(items))
	sb.WriteString("Version=2\n")
	return sb.String()
}

// createSMIL renders the WPL and ZPL flavours, which differ only in the
// header and the per-item attributes.
func (p *PlaylistCreator) createSMIL(kind, version, title string, items []entry, detailed bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<?%s version=\"%s\"?>\n", kind, version)
	sb.WriteString("<smil>\n  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", xmlEscaper.Replace(title))
	if detailed {
		sb.WriteString("    <meta name=\"Generator\" content=\"dlqueue\"/>\n")
		fmt.Fprintf(&sb, "    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(items))
	}
	sb.WriteString("  </head>\n  <body>\n    <seq>\n")
	for _, e := range items {
		if detailed {
			fmt.Fprintf(&sb, "      <media src=\"%s\" trackTitle=\"%s\" trackArtist=\"%s\" duration=\"%d\"/>\n",
				xmlEscaper.Replace(e.src), xmlEscaper.Replace(e.title), xmlEscaper.Replace(e.artist), e.duration*1000)
			continue
		}
		fmt.Fprintf(&sb, "      <media src=\"%s\"/>\n", xmlEscaper.Replace(e.src))
	}
	sb.WriteString("    </seq>\n  </body>\n</smil>\n")
	return sb.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)
