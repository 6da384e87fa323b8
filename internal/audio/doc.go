// Package audio tags finished audio downloads and exports finished jobs
// as playlists.
//
// # ID3 Tagging
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(job, coverJPEG)
//
// Only MP3 outputs are tagged. Title, artist (the uploader), year, date,
// comment (the description) and the source URL come from the job's
// probed metadata; the cover is embedded as the front picture.
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true)
//	path, err := creator.WritePlaylist(ctx, dir, "Session", manager.Jobs())
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
