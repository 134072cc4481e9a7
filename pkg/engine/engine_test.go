package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"AutoDJ-Go/pkg/engine"
)

// writeScript creates an executable shell script in a temp dir. The engine
// contract passes the title and dataset path as the script's two positional
// arguments.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(t *testing.T, scriptBody string) *engine.Runner {
	t.Helper()
	script := writeScript(t, scriptBody)
	r := engine.NewRunner("/bin/sh", []string{script}, "features.csv", 2, nil)
	r.Timeout = 5 * time.Second
	return r
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Levitating (feat. DaBaby)", "Levitating"},
		{"Song (Remastered 2011)", "Song"},
		{"Plain Title", "Plain Title"},
		{"  Spaced  ", "Spaced"},
		{"Bracketed [Live]", "Bracketed"},
		{"", ""},
	}
	for _, c := range cases {
		if got := engine.SanitizeTitle(c.in); got != c.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRecommendSuccessStripsExtension(t *testing.T) {
	r := newRunner(t, `echo "Physical.mp3"`)
	got, err := r.Recommend(context.Background(), "Levitating (feat. DaBaby)")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Physical" {
		t.Errorf("expected Physical got %q", got)
	}
}

func TestRecommendPassesDiscreteArgs(t *testing.T) {
	// The script echoes its first argument back; a shell-quoted title with
	// spaces must arrive as one argv entry, already sanitized.
	r := newRunner(t, `echo "$1"`)
	got, err := r.Recommend(context.Background(), "Blinding Lights (Remix)")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Blinding Lights" {
		t.Errorf("expected sanitized title as single arg, got %q", got)
	}
}

func TestRecommendStderrDoesNotPolluteResult(t *testing.T) {
	r := newRunner(t, `echo "DEBUG: noise" >&2; echo "Physical.mp3"`)
	got, err := r.Recommend(context.Background(), "Levitating")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Physical" {
		t.Errorf("stderr leaked into result: %q", got)
	}
}

func TestRecommendEmptyOutput(t *testing.T) {
	r := newRunner(t, `exit 0`)
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult got %v", err)
	}
}

func TestRecommendNotFoundMarker(t *testing.T) {
	r := newRunner(t, `echo "Song NOT FOUND in dataset"`)
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestRecommendErrorPrefix(t *testing.T) {
	r := newRunner(t, `echo "ERROR: engine exploded"`)
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestRecommendNonZeroExit(t *testing.T) {
	r := newRunner(t, `echo "ERROR: bad dataset" >&2; exit 1`)
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrFailure) {
		t.Fatalf("expected ErrFailure got %v", err)
	}
}

func TestRecommendMissingExecutable(t *testing.T) {
	r := engine.NewRunner("/nonexistent/engine", nil, "features.csv", 1, nil)
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
}

func TestRecommendTimeoutTerminatesProcess(t *testing.T) {
	r := newRunner(t, `sleep 10; echo "too late"`)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrTimeout) {
		t.Fatalf("expected ErrTimeout got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout did not terminate promptly, took %v", elapsed)
	}
}

func TestRecommendTimeoutKillsChildProcesses(t *testing.T) {
	// The engine script spawns a child that keeps the output pipes open.
	// Killing only the script would leave the child running and Wait
	// blocked until it finished.
	marker := filepath.Join(t.TempDir(), "completed")
	r := newRunner(t, `/bin/sh -c "sleep 1; touch `+marker+`"`)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := r.Recommend(context.Background(), "Anything")
	if !errors.Is(err, engine.ErrTimeout) {
		t.Fatalf("expected ErrTimeout got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("timeout did not terminate promptly, took %v", elapsed)
	}

	time.Sleep(1200 * time.Millisecond)
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("child process survived termination and ran to completion")
	}
}

func TestRecommendAdmissionLimit(t *testing.T) {
	script := writeScript(t, `sleep 2; echo "Late.mp3"`)
	r := engine.NewRunner("/bin/sh", []string{script}, "features.csv", 1, nil)
	r.Timeout = 5 * time.Second

	started := make(chan struct{})
	go func() {
		close(started)
		r.Recommend(context.Background(), "First")
	}()
	<-started
	time.Sleep(100 * time.Millisecond)

	_, err := r.Recommend(context.Background(), "Second")
	if !errors.Is(err, engine.ErrBusy) {
		t.Fatalf("expected ErrBusy while the only slot is taken, got %v", err)
	}
}

func TestRecommendEmptyTitleAfterSanitize(t *testing.T) {
	r := newRunner(t, `echo "never runs"`)
	_, err := r.Recommend(context.Background(), "(Intro)")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty sanitized title, got %v", err)
	}
}

func TestRecommendOutcomeObserver(t *testing.T) {
	r := newRunner(t, `echo "Physical.mp3"`)
	var outcome string
	r.OnRun = func(o string, _ time.Duration) { outcome = o }
	if _, err := r.Recommend(context.Background(), "Levitating"); err != nil {
		t.Fatal(err)
	}
	if outcome != "succeeded" {
		t.Errorf("expected succeeded outcome, got %q", outcome)
	}
}

func TestStripAudioExtension(t *testing.T) {
	exts := []string{".mp3", ".wav"}
	if got := engine.StripAudioExtension("Physical.mp3", exts); got != "Physical" {
		t.Errorf("got %q", got)
	}
	if got := engine.StripAudioExtension("Physical.MP3", exts); got != "Physical" {
		t.Errorf("case-insensitive strip failed: %q", got)
	}
	if got := engine.StripAudioExtension("Mr. Brightside", exts); got != "Mr. Brightside" {
		t.Errorf("unrelated dot must survive: %q", got)
	}
}
