package model

import (
	"fmt"
	"time"
)

// FormatSpeed renders bytes per second with a binary unit, e.g. "1.50 MB/s".
func FormatSpeed(bytesPerSec float64) string {
	units := []string{"B/s", "KB/s", "MB/s", "GB/s"}
	unit := 0
	for bytesPerSec >= 1024 && unit < len(units)-1 {
		bytesPerSec /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", bytesPerSec, units[unit])
}

// FormatSize renders a byte count, e.g. "12.00 MB".
func FormatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f GB", size)
}

// FormatDuration renders d as mm:ss or hh:mm:ss; negative durations render as "--:--".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "--:--"
	}
	secs := int(d.Round(time.Second).Seconds())
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
