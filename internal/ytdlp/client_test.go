package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/handiism/dlqueue/internal/model"
)

const fakeYTDLP = `#!/bin/sh
case "$1" in
-J)
	if [ -n "$FAKE_FAIL" ]; then echo "ERROR: unavailable" >&2; exit 1; fi
	echo '{"title":"Clip","duration":12.5,"uploader":"Someone","filesize_approx":2048,"ext":"mp4","upload_date":"20240102","resolution":"1280x720"}'
	exit 0
	;;
esac
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
dir=$(dirname "$out")
if [ -n "$FAKE_FAIL" ]; then echo "ERROR: HTTP Error 403" >&2; exit 1; fi
if [ -n "$FAKE_SLOW" ]; then
	i=0
	while [ $i -lt 200 ]; do
		echo "dlq-progress $i 2048 NA NA"
		i=$((i+1))
		sleep 0.01
	done
fi
echo "[download] Destination: $dir/clip.mp4"
echo "dlq-progress 1024 2048 NA 3"
echo "dlq-progress 2048 2048 NA 0"
printf 'data' > "$dir/clip.mp4"
echo "$dir/clip.mp4"
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFakeClient(t *testing.T) *Client {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp needs a POSIX shell")
	}
	bin := t.TempDir()
	return NewClient(
		WithBinary(writeScript(t, bin, "yt-dlp", fakeYTDLP)),
		WithFFmpeg(writeScript(t, bin, "ffmpeg", "#!/bin/sh\nexit 0\n")),
	)
}

func TestClient_Probe(t *testing.T) {
	c := newFakeClient(t)

	meta, size, err := c.Probe(context.Background(), "https://youtu.be/x", model.Options{})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if meta.Title != "Clip" || meta.Uploader != "Someone" || meta.Duration != 12.5 || meta.Resolution != "1280x720" {
		t.Errorf("Probe() metadata = %+v", meta)
	}
	if size != 2048 {
		t.Errorf("Probe() size = %d, want 2048", size)
	}
}

func TestClient_ProbeFailure(t *testing.T) {
	c := newFakeClient(t)
	t.Setenv("FAKE_FAIL", "1")

	_, _, err := c.Probe(context.Background(), "https://youtu.be/x", model.Options{})
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("Probe() error = %v, want stderr in the message", err)
	}
}

func TestClient_Transfer(t *testing.T) {
	c := newFakeClient(t)
	out := t.TempDir()

	var ticks []int64
	path, err := c.Transfer(context.Background(), "https://youtu.be/x", model.Options{OutputDir: out},
		func(downloaded, total int64, eta time.Duration) error {
			if total != 2048 {
				t.Errorf("total = %d, want 2048", total)
			}
			ticks = append(ticks, downloaded)
			return nil
		})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if want := filepath.Join(out, "clip.mp4"); path != want {
		t.Errorf("Transfer() path = %q, want %q", path, want)
	}
	if len(ticks) != 2 || ticks[1] != 2048 {
		t.Errorf("progress ticks = %v, want [1024 2048]", ticks)
	}
}

func TestClient_TransferFailure(t *testing.T) {
	c := newFakeClient(t)
	t.Setenv("FAKE_FAIL", "1")

	_, err := c.Transfer(context.Background(), "https://youtu.be/x", model.Options{OutputDir: t.TempDir()}, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("Transfer() error = %v, want the yt-dlp error", err)
	}
}

func TestClient_TransferAbortedByProgress(t *testing.T) {
	c := newFakeClient(t)
	t.Setenv("FAKE_SLOW", "1")
	stop := errors.New("stop")

	start := time.Now()
	_, err := c.Transfer(context.Background(), "https://youtu.be/x", model.Options{OutputDir: t.TempDir()},
		func(downloaded, total int64, eta time.Duration) error {
			if downloaded >= 5 {
				return stop
			}
			return nil
		})
	if !errors.Is(err, stop) {
		t.Errorf("Transfer() error = %v, want the progress error", err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("Transfer() took %v after abort", elapsed)
	}
}

func TestClient_CheckDependencies(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(WithBinary(filepath.Join(dir, "missing-yt-dlp")))

	err := c.CheckDependencies(model.Options{})
	if !model.IsKind(err, model.KindEnvironment) {
		t.Errorf("CheckDependencies() error = %v, want environment kind", err)
	}

	_, _, err = c.Probe(context.Background(), "https://youtu.be/x", model.Options{})
	if !model.IsKind(err, model.KindEnvironment) {
		t.Errorf("Probe() error = %v, want environment kind", err)
	}
}

func TestClient_CheckDependenciesFFmpeg(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp needs a POSIX shell")
	}
	dir := t.TempDir()
	c := NewClient(
		WithBinary(writeScript(t, dir, "yt-dlp", fakeYTDLP)),
		WithFFmpeg(filepath.Join(dir, "missing-ffmpeg")),
	)

	if err := c.CheckDependencies(model.Options{AudioOnly: true}); !model.IsKind(err, model.KindEnvironment) {
		t.Errorf("CheckDependencies(audio) error = %v, want environment kind", err)
	}
	report := c.Dependencies()
	if !report.YTDLPFound || report.FFmpegFound {
		t.Errorf("Dependencies() = %+v", report)
	}
}
