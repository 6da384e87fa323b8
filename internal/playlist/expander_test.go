package playlist

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/handiism/dlqueue/internal/download"
	"github.com/handiism/dlqueue/internal/model"
)

type fakeSource struct {
	mu        sync.Mutex
	playlists map[string][]Item
	calls     []string
}

func (f *fakeSource) Items(ctx context.Context, id string) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	items, ok := f.playlists[id]
	if !ok {
		return nil, errors.New("playlist not found")
	}
	return items, nil
}

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID", "PLAYLIST_ID"},
		{"https://www.youtube.com/playlist?list=PLAYLIST_ID", "PLAYLIST_ID"},
		{"https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&index=1&t=30", "PLAYLIST_ID"},
		{"https://www.youtube.com/watch?v=VIDEO_ID&list=", ""},
		{"https://www.youtube.com/watch?v=VIDEO_ID", ""},
		{"https://vimeo.com/123?list=abc", ""},
	}
	for _, tt := range tests {
		if got := PlaylistID(tt.url); got != tt.want {
			t.Errorf("PlaylistID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExpand(t *testing.T) {
	src := &fakeSource{playlists: map[string][]Item{
		"PL1": {{VideoID: "a"}, {VideoID: "b"}},
		"PL2": {{VideoID: "b"}, {VideoID: "c"}},
	}}
	e := NewExpander(WithSource(src))
	urls := []string{
		"https://www.youtube.com/playlist?list=PL1",
		"https://vimeo.com/1",
		"https://www.youtube.com/playlist?list=PL2",
	}

	got, err := e.Expand(context.Background(), urls, model.Options{Playlist: true})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	want := []string{
		"https://www.youtube.com/watch?v=a",
		"https://www.youtube.com/watch?v=b",
		"https://vimeo.com/1",
		"https://www.youtube.com/watch?v=c",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpand_Disabled(t *testing.T) {
	src := &fakeSource{}
	urls := []string{"https://www.youtube.com/playlist?list=PL1"}

	got, err := NewExpander(WithSource(src)).Expand(context.Background(), urls, model.Options{})
	if err != nil || !slices.Equal(got, urls) {
		t.Errorf("Expand() = %v, %v, want input unchanged", got, err)
	}
	if len(src.calls) != 0 {
		t.Errorf("source called %d times", len(src.calls))
	}
}

func TestExpand_FailureKeepsURL(t *testing.T) {
	src := &fakeSource{playlists: map[string][]Item{}}
	urls := []string{"https://www.youtube.com/playlist?list=MISSING"}

	got, err := NewExpander(WithSource(src)).Expand(context.Background(), urls, model.Options{Playlist: true})
	if err == nil {
		t.Error("Expand() error = nil, want the lookup failure")
	}
	if !slices.Equal(got, urls) {
		t.Errorf("Expand() = %v, want the original URL", got)
	}
}

type recordingManager struct {
	urls []string
}

func (m *recordingManager) Submit(urls []string, opts model.Options) []download.Result {
	m.urls = append(m.urls, urls...)
	results := make([]download.Result, len(urls))
	for i, u := range urls {
		results[i] = download.Result{URL: u, Accepted: true}
	}
	return results
}

func TestQueue_Submit(t *testing.T) {
	src := &fakeSource{playlists: map[string][]Item{"PL1": {{VideoID: "a"}, {VideoID: "b"}}}}
	m := &recordingManager{}
	q := NewQueue(NewExpander(WithSource(src)), m)

	results, err := q.Submit(context.Background(), []string{
		"https://www.youtube.com/playlist?list=PL1",
		"https://www.youtube.com/playlist?list=GONE",
	}, model.Options{Playlist: true})
	if err == nil {
		t.Error("Submit() error = nil, want the failed playlist reported")
	}
	if len(results) != 3 {
		t.Fatalf("Submit() returned %d results, want 3", len(results))
	}
	want := []string{
		"https://www.youtube.com/watch?v=a",
		"https://www.youtube.com/watch?v=b",
		"https://www.youtube.com/playlist?list=GONE",
	}
	if !slices.Equal(m.urls, want) {
		t.Errorf("submitted %v, want %v", m.urls, want)
	}
}
