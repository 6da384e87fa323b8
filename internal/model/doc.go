// Package model defines the core data structures used throughout dlqueue.
//
// # Job
//
// Job is one download request plus its runtime state:
//
//	job := model.NewJob(url, token, opts, time.Now())
//	fmt.Println(job.Status)   // queued
//	fmt.Println(job.Title())  // URL until the probe fills Metadata
//
// # Status
//
// Status follows a small state machine:
//
//	queued -> downloading <-> paused -> {completed, error, cancelled}
//
// cancelled is reachable from every non-terminal state; completed and error
// only from downloading. Use CanTransition or Job.Transition to enforce it.
//
// # Options
//
// Options is the immutable configuration snapshot attached to each job:
//
//	opts := model.Options{Quality: "1080p", OutputDir: "/videos", Verify: true}
//	opts.FilenameTemplateOrDefault() // "%(title)s [%(resolution)s].%(ext)s"
//
// # URL validation
//
// ValidateURL accepts http(s) URLs on one of the configured sites:
//
//	url, err := model.ValidateURL("https://www.youtube.com/watch?v=x", model.DefaultSites)
//
// # Errors
//
// Error carries an ErrorKind (validation, transfer, integrity, environment,
// cancelled); Message maps each kind to a human-readable sentence.
package model
