// Package download provides the download queue: a scheduler that admits
// jobs into a bounded pool of workers, the worker state machine, and the
// event bus that reports their progress.
//
// # Manager
//
// The Manager owns three tables guarded by one mutex:
//
//  1. backlog: FIFO of jobs waiting for a slot
//  2. active: jobs holding a slot, at most the concurrency limit
//  3. paused: jobs that keep their worker but gave up their slot
//
// Completed and failed jobs are kept for lookup until archived or
// resubmitted.
//
// # Basic Usage
//
//	manager := download.NewManager(ytdlp.NewClient(), download.WithConcurrency(3))
//	events, stop := manager.Events()
//	defer stop()
//
//	for _, r := range manager.Submit(urls, settings.ToOptions()) {
//	    if !r.Accepted {
//	        fmt.Println(r.Err)
//	    }
//	}
//
//	go func() {
//	    for ev := range events {
//	        fmt.Println(download.Describe(ev).Message)
//	    }
//	}()
//
//	err := manager.Drain(ctx)
//
// # Workers
//
// Each admitted job gets one worker goroutine. The worker probes metadata,
// then makes up to MaxAttempts transfer attempts with a linear backoff
// (base * attempt). Pause and cancel are observed in the progress callback
// and between attempts. A paused worker blocks on a wake channel until it
// is resumed or cancelled.
//
// # Events
//
// Every state change is published on the Bus. Publishing never blocks;
// each subscriber drains its own queue, and events of a single job arrive
// in the order the worker produced them.
package download
