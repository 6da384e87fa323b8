// Package ioutils provides file system and image helpers for downloaded
// media.
//
// # File Operations
//
//	// Create the destination directory lazily before a transfer
//	err := ioutils.EnsureDir(opts.OutputDir)
//
//	// Check the transfer produced something
//	size, err := ioutils.FileSize(path)
//
//	// Write a sidecar file atomically
//	err := ioutils.WriteFile(ctx, ioutils.ReplaceExt(path, ".jpg"), cover)
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("Song: Part 1/2") // "Song_ Part 1_2"
//
// # Image Processing
//
// ImageService turns downloaded thumbnails into JPEG cover art:
//
//	svc := ioutils.NewImageService()
//	cover, err := svc.ResizeImage(ctx, thumbnail, 1000, 1000)
package ioutils
