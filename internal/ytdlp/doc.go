// Package ytdlp adapts the yt-dlp command line tool to the download
// manager's Fetcher interface.
//
// Probe runs "yt-dlp -J" and decodes the JSON metadata. Transfer runs a
// download with a machine-readable --progress-template and reports each
// progress line to the caller; the human "[download] 42.0% of ..." lines
// are understood too. The final path comes from "--print after_move:filepath".
//
//	client := ytdlp.NewClient(ytdlp.WithFFmpeg(settings.FFmpegPath))
//	if err := client.CheckDependencies(opts); err != nil {
//	    return err // KindEnvironment
//	}
package ytdlp
