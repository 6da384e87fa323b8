package tui

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/handiism/dlqueue/internal/config"
	"github.com/handiism/dlqueue/internal/download"
	"github.com/handiism/dlqueue/internal/model"
)

type idleFetcher struct{}

func (idleFetcher) Probe(ctx context.Context, url string, opts model.Options) (model.Metadata, int64, error) {
	return model.Metadata{Title: "Idle"}, 0, nil
}

func (idleFetcher) Transfer(ctx context.Context, url string, opts model.Options, onProgress model.ProgressFunc) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type fakeSubmitter struct {
	urls []string
	opts model.Options
}

func (f *fakeSubmitter) Submit(ctx context.Context, urls []string, opts model.Options) ([]download.Result, error) {
	f.urls, f.opts = urls, opts
	return nil, nil
}

func newTestModel(t *testing.T) (Model, *download.Manager, *fakeSubmitter) {
	t.Helper()
	manager := download.NewManager(idleFetcher{}, download.WithConcurrency(2))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})
	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()
	sub := &fakeSubmitter{}
	return NewModel(manager, sub, settings), manager, sub
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestModel_SubmitUsesToggles(t *testing.T) {
	m, _, sub := newTestModel(t)

	m, _ = press(m, "tab", "a", "l", "tab")
	m.textInput.SetValue("https://youtu.be/a, https://youtu.be/b")
	m, cmd := press(m, "enter")
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	// Run the batch and find the submission result.
	msgs := runCmd(cmd)
	if !slices.ContainsFunc(msgs, func(msg tea.Msg) bool { _, ok := msg.(SubmitDoneMsg); return ok }) {
		t.Fatal("no SubmitDoneMsg produced")
	}

	if want := []string{"https://youtu.be/a", "https://youtu.be/b"}; !slices.Equal(sub.urls, want) {
		t.Errorf("submitted %v, want %v", sub.urls, want)
	}
	if !sub.opts.AudioOnly || !sub.opts.Playlist {
		t.Errorf("options = %+v, want audio only and playlist", sub.opts)
	}
	if m.textInput.Value() != "" {
		t.Errorf("input not cleared: %q", m.textInput.Value())
	}
}

func TestModel_QueueKeys(t *testing.T) {
	m, manager, _ := newTestModel(t)
	manager.Submit([]string{"https://youtu.be/a"}, model.Options{OutputDir: t.TempDir()})

	m, _ = press(m, "tab", "+")
	if got := manager.Concurrency(); got != 3 {
		t.Errorf("concurrency after + = %d, want 3", got)
	}
	m, _ = press(m, "-", "-", "-", "-")
	if got := manager.Concurrency(); got != 1 {
		t.Errorf("concurrency after - = %d, want 1", got)
	}

	m, _ = press(m, "p")
	if st, _ := manager.StatusOf("https://youtu.be/a"); st != model.StatusPaused {
		t.Errorf("status after p = %s, want paused", st)
	}
	m, _ = press(m, "r")
	if st, _ := manager.StatusOf("https://youtu.be/a"); st != model.StatusDownloading {
		t.Errorf("status after r = %s, want downloading", st)
	}
	m, _ = press(m, "x")
	if _, ok := manager.StatusOf("https://youtu.be/a"); ok {
		t.Error("job still tracked after x")
	}
	if !strings.Contains(m.View(), "no downloads") {
		t.Error("view does not show an empty queue")
	}
}

func TestSplitURLs(t *testing.T) {
	got := splitURLs(" a,b  c\nd ")
	if want := []string{"a", "b", "c", "d"}; !slices.Equal(got, want) {
		t.Errorf("splitURLs() = %v, want %v", got, want)
	}
}

// runCmd executes cmd, expanding batches, and skips commands that block
// on timers or the event bus.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(100 * time.Millisecond):
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}
