// Package http provides the HTTP client used for side downloads such as
// thumbnails. Media transfers themselves go through yt-dlp.
//
// The Client handles:
//   - the User-Agent header
//   - the job's proxy setting
//   - timeouts and non-200 responses
//   - streamed file downloads with progress reporting
//
// # Basic Usage
//
//	client, err := http.NewClient(http.WithProxy("socks5://127.0.0.1:1080"))
//	if err != nil {
//	    return err
//	}
//	data, err := client.DownloadBytes(ctx, thumbnailURL)
package http
