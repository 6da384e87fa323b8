package audio

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/handiism/dlqueue/internal/model"
)

// ErrNotMP3 is returned when asked to tag a file that is not an MP3.
var ErrNotMP3 = errors.New("only mp3 files can be tagged")

// TagEditAction defines how to handle individual ID3 tags.
type TagEditAction int

const (
	// TagEmpty clears the frame.
	TagEmpty TagEditAction = iota

	// TagModify writes the value from the job's metadata.
	TagModify

	// TagDoNotModify leaves the existing frame unchanged.
	TagDoNotModify
)

// TagConfig holds the action for each ID3 field the tagger knows about.
type TagConfig struct {
	// ModifyTags is a master switch. If false, no text frames are touched.
	ModifyTags bool

	Artist   TagEditAction // TPE1, from the uploader
	Title    TagEditAction // TIT2
	Year     TagEditAction // TYER (ID3v2.3)
	Date     TagEditAction // TDRC (ID3v2.4)
	Comments TagEditAction // COMM, from the description
	Source   TagEditAction // WOAS, the original URL
}

// DefaultTagConfig modifies every field.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags: true,
		Artist:     TagModify,
		Title:      TagModify,
		Year:       TagModify,
		Date:       TagModify,
		Comments:   TagModify,
		Source:     TagModify,
	}
}

// Tagger writes ID3 tags into the MP3 output of a finished job.
//
//	tagger := NewTagger(nil)
//	err := tagger.SaveTags(job, coverJPEG)
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a Tagger. A nil config means DefaultTagConfig().
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// SaveTags tags job.FilePath from job.Metadata and embeds artwork (JPEG)
// as the front cover when it is non-nil.
func (t *Tagger) SaveTags(job model.Job, artwork []byte) error {
	if !strings.EqualFold(filepath.Ext(job.FilePath), ".mp3") {
		return ErrNotMP3
	}

	tag, err := id3v2.Open(job.FilePath, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	if t.config.ModifyTags {
		meta := model.Metadata{}
		if job.Metadata != nil {
			meta = *job.Metadata
		}
		t.updateTextFrames(tag, job, meta)
	}
	if artwork != nil {
		updateArtwork(tag, artwork)
	}
	return tag.Save()
}

func (t *Tagger) updateTextFrames(tag *id3v2.Tag, job model.Job, meta model.Metadata) {
	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		tag.SetArtist(meta.Uploader)
	}

	switch t.config.Title {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(job.Title())
	}

	uploaded := meta.UploadTime()
	switch t.config.Year {
	case TagEmpty:
		tag.DeleteFrames("TYER")
	case TagModify:
		if !uploaded.IsZero() {
			tag.AddTextFrame("TYER", id3v2.EncodingUTF8, uploaded.Format("2006"))
		}
	}

	switch t.config.Date {
	case TagEmpty:
		tag.DeleteFrames("TDRC")
	case TagModify:
		if !uploaded.IsZero() {
			tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, uploaded.Format("2006-01-02"))
		}
	}

	switch t.config.Comments {
	case TagEmpty:
		tag.DeleteFrames(tag.CommonID("Comments"))
	case TagModify:
		if meta.Description != "" {
			tag.DeleteFrames(tag.CommonID("Comments"))
			tag.AddCommentFrame(id3v2.CommentFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Text:     meta.Description,
			})
		}
	}

	switch t.config.Source {
	case TagEmpty:
		tag.DeleteFrames("WOAS")
	case TagModify:
		tag.DeleteFrames("WOAS")
		tag.AddFrame("WOAS", id3v2.UnknownFrame{Body: []byte(job.ID)})
	}
}

func updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}
