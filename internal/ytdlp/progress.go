package ytdlp

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Fallback patterns for the default "[download]  42.0% of 10.00MiB at
// 1.00MiB/s ETA 00:06" lines, used when the template output is missing.
var (
	rePct  = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reOf   = regexp.MustCompile(`\bof\s+~?\s*([0-9.]+\s*[KMGT]?i?B)`)
	reETA  = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reSize = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?)(i?)B$`)
)

type progress struct {
	downloaded int64
	total      int64
	eta        time.Duration // negative when unknown
}

// parseProgress recognises both the template line and the human one.
func parseProgress(line string) (progress, bool) {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, progressPrefix); ok {
		return parseTemplateLine(rest)
	}
	if strings.HasPrefix(line, "[download]") {
		return parseDownloadLine(line)
	}
	return progress{}, false
}

func parseTemplateLine(rest string) (progress, bool) {
	fields := strings.Fields(rest)
	if len(fields) != 4 {
		return progress{}, false
	}
	downloaded, ok := parseNumber(fields[0])
	if !ok {
		return progress{}, false
	}
	total, ok := parseNumber(fields[1])
	if !ok {
		total, _ = parseNumber(fields[2])
	}
	p := progress{downloaded: downloaded, total: total, eta: -1}
	if secs, ok := parseNumber(fields[3]); ok {
		p.eta = time.Duration(secs) * time.Second
	}
	return p, true
}

func parseDownloadLine(line string) (progress, bool) {
	m := rePct.FindStringSubmatch(line)
	if m == nil {
		return progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return progress{}, false
	}
	of := reOf.FindStringSubmatch(line)
	if of == nil {
		return progress{}, false
	}
	total, ok := parseSize(of[1])
	if !ok || total <= 0 {
		return progress{}, false
	}

	p := progress{
		downloaded: int64(math.Round(float64(total) * pct / 100)),
		total:      total,
		eta:        -1,
	}
	if e := reETA.FindStringSubmatch(line); e != nil {
		if d, ok := parseClock(e[1]); ok {
			p.eta = d
		}
	}
	return p, true
}

// parseNumber accepts yt-dlp template values: integers, floats or "NA".
func parseNumber(s string) (int64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0, false
	}
	return int64(f), true
}

// parseSize converts "10.50MiB" or "3.2MB" to bytes.
func parseSize(s string) (int64, bool) {
	m := reSize.FindStringSubmatch(strings.ReplaceAll(s, " ", ""))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	base := 1000.0
	if m[3] == "i" {
		base = 1024
	}
	exp := 0
	if m[2] != "" {
		exp = strings.Index("KMGT", m[2]) + 1
	}
	return int64(v * math.Pow(base, float64(exp))), true
}

// parseClock converts "mm:ss" or "hh:mm:ss".
func parseClock(s string) (time.Duration, bool) {
	var total int
	for part := range strings.SplitSeq(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, true
}
