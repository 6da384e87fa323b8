package download

import (
	"fmt"

	"github.com/handiism/dlqueue/internal/model"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent is a one-line, user-facing rendering of an Event.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Describe renders ev as a leveled message for line-oriented frontends.
func Describe(ev Event) ProgressEvent {
	switch ev.Kind {
	case MetadataReceived:
		return ProgressEvent{Message: fmt.Sprintf("Found: %s (%s)", ev.Job.Title(), model.FormatSize(ev.Job.TotalBytes)), Level: LevelInfo}
	case ProgressUpdated:
		return ProgressEvent{Message: fmt.Sprintf("%5.1f%% %s at %s, ETA %s",
			ev.Job.Progress, ev.Job.Title(), model.FormatSpeed(ev.Job.Speed), model.FormatDuration(ev.Job.ETA)), Level: LevelVerbose}
	case DownloadCompleted:
		return ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", ev.Job.FilePath), Level: LevelSuccess}
	case DownloadError:
		return ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", ev.ID, ev.Err), Level: LevelError}
	case DownloadPaused:
		return ProgressEvent{Message: fmt.Sprintf("Paused: %s", ev.ID), Level: LevelInfo}
	case DownloadResumed:
		return ProgressEvent{Message: fmt.Sprintf("Resumed: %s", ev.ID), Level: LevelInfo}
	case DownloadCancelled:
		return ProgressEvent{Message: fmt.Sprintf("Cancelled: %s", ev.ID), Level: LevelWarning}
	case QueueDepthChanged:
		return ProgressEvent{Message: fmt.Sprintf("Queue: %d waiting", ev.Depth), Level: LevelVerbose}
	case WorkerFinished:
		return ProgressEvent{Message: fmt.Sprintf("Worker finished: %s", ev.ID), Level: LevelVerbose}
	default:
		return ProgressEvent{Message: ev.Kind.String(), Level: LevelVerbose}
	}
}
