// Package engine supervises the external recommendation process. The engine
// is a long-running computation over a precomputed audio-feature dataset; it
// receives the cleaned source title and the dataset path as discrete argv
// entries and signals success or failure informally through its standard
// output. This package treats that output as an untrusted protocol boundary:
// every invocation ends in exactly one of the classified outcomes below.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Classified invocation outcomes. Exactly one of these (or a successful
// title) results from every run.
var (
	// ErrUnavailable means the computation could not be launched at all,
	// typically a missing interpreter, script or dataset.
	ErrUnavailable = errors.New("recommendation engine unavailable")

	// ErrTimeout means no result arrived within the deadline and the
	// process was terminated.
	ErrTimeout = errors.New("recommendation engine timed out")

	// ErrFailure means the process terminated abnormally or with a
	// non-zero exit status.
	ErrFailure = errors.New("recommendation engine failed")

	// ErrEmptyResult means the process exited cleanly but wrote no usable
	// text to standard output.
	ErrEmptyResult = errors.New("recommendation engine produced no output")

	// ErrNotFound means the engine itself reported that the source title
	// has no match in the dataset.
	ErrNotFound = errors.New("source title not found in dataset")

	// ErrBusy means the concurrent-run admission limit was reached and the
	// invocation was refused without launching anything.
	ErrBusy = errors.New("recommendation engine busy")
)

// killConfirmTimeout bounds how long a caller waits for a terminated process
// to actually exit before giving up on the confirmation.
const killConfirmTimeout = 5 * time.Second

// DefaultTimeout is the wall-clock deadline applied to each invocation when
// the configuration does not override it.
const DefaultTimeout = 30 * time.Second

// trailingParen matches one parenthetical or bracketed annotation at the end
// of a title, e.g. " (Remastered 2011)" or " [Live]".
var trailingParen = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]\s*$`)

// SanitizeTitle strips a trailing parenthetical annotation and surrounding
// whitespace from a title. Normalization happens here, before invocation;
// the engine never sees the raw title.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(trailingParen.ReplaceAllString(title, ""))
}

// Runner launches and supervises engine invocations.
type Runner struct {
	// Command is the interpreter or binary, e.g. "python3". Args holds the
	// fixed leading arguments such as the script path. The source title
	// and dataset path are appended per invocation.
	Command string
	Args    []string

	// Dataset is the path of the feature dataset handed to the engine.
	Dataset string

	// Timeout is the hard wall-clock deadline per run. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// NotFoundMarkers are lowercase substrings of standard output that
	// signal "no match". The exact strings the engine emits are not
	// formally specified, so the list is configuration, not assumption.
	NotFoundMarkers []string

	// ErrorPrefix marks explicit error lines on standard output.
	ErrorPrefix string

	// StripExtensions are trailing file-extension suffixes removed from a
	// successful result, the dataset being keyed by audio filenames.
	StripExtensions []string

	// OnRun, when set, observes each terminal outcome by name. Used to
	// feed metrics.
	OnRun func(outcome string, elapsed time.Duration)

	Log *logrus.Entry

	// slots is the admission semaphore bounding concurrent runs.
	slots chan struct{}
}

// NewRunner returns a Runner with defaults filled in. maxConcurrent bounds
// the number of engine processes alive at once; values below one fall back
// to one.
func NewRunner(command string, args []string, dataset string, maxConcurrent int, log *logrus.Entry) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{
		Command:         command,
		Args:            args,
		Dataset:         dataset,
		Timeout:         DefaultTimeout,
		NotFoundMarkers: []string{"not found", "no suitable match"},
		ErrorPrefix:     "error:",
		StripExtensions: []string{".mp3", ".wav", ".flac", ".m4a", ".ogg"},
		Log:             log,
		slots:           make(chan struct{}, maxConcurrent),
	}
}

// Recommend runs the engine for sourceTitle and returns the recommended
// title. The title is sanitized before launch. When every admission slot is
// taken the call fails immediately with ErrBusy rather than queueing; the
// HTTP layer maps that to 503 so clients can back off.
func (r *Runner) Recommend(ctx context.Context, sourceTitle string) (string, error) {
	title := SanitizeTitle(sourceTitle)
	if title == "" {
		return "", fmt.Errorf("%w: empty source title", ErrNotFound)
	}

	if r.slots != nil {
		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		default:
			return "", ErrBusy
		}
	}

	start := time.Now()
	out, err := r.run(ctx, title)
	if r.OnRun != nil {
		r.OnRun(outcomeName(err), time.Since(start))
	}
	return out, err
}

// run launches one supervised invocation. Standard output and standard error
// are captured separately and in full; diagnostics never pollute the result
// channel.
func (r *Runner) run(ctx context.Context, title string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	argv := append(append([]string{}, r.Args...), title, r.Dataset)
	cmd := exec.Command(r.Command, argv...)
	// The engine runs in its own process group so terminate can kill the
	// whole tree. Any child it spawns inherits the output pipes, and Wait
	// does not return until every holder of those pipes exits.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		return "", r.terminate(cmd, done, ctx.Err())
	case <-timer.C:
		return "", r.terminate(cmd, done, ErrTimeout)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			r.logf(title, stderr.String()).WithField("exit_code", exitErr.ExitCode()).Warn("engine exited abnormally")
			return "", fmt.Errorf("%w: exit status %d: %s", ErrFailure, exitErr.ExitCode(), firstLine(stderr.String()))
		}
		return "", fmt.Errorf("%w: %v", ErrFailure, waitErr)
	}

	return r.classify(title, stdout.String(), stderr.String())
}

// terminate kills the running process and waits for the exit to be confirmed
// before returning cause. The caller must not proceed while the process may
// still be running, so confirmation is synchronous up to killConfirmTimeout.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error, cause error) error {
	if cmd.Process != nil {
		// Negative pid signals the process group; the engine and any
		// children it spawned die together.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	select {
	case <-done:
	case <-time.After(killConfirmTimeout):
		if r.Log != nil {
			r.Log.Warn("engine process did not confirm termination")
		}
	}
	if errors.Is(cause, ErrTimeout) {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrFailure, cause)
}

// classify interprets the engine's informal text protocol. Trimmed empty
// output is EmptyResult; a "not found" marker or explicit error prefix is
// NotFound; anything else is the recommended title with a trailing audio
// extension stripped.
func (r *Runner) classify(title, stdout, stderr string) (string, error) {
	out := strings.TrimSpace(stdout)
	if out == "" {
		r.logf(title, stderr).Warn("engine produced no output")
		return "", ErrEmptyResult
	}
	lower := strings.ToLower(out)
	for _, marker := range r.NotFoundMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, firstLine(out))
		}
	}
	if r.ErrorPrefix != "" && strings.HasPrefix(lower, strings.ToLower(r.ErrorPrefix)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, firstLine(out))
	}
	return StripAudioExtension(out, r.StripExtensions), nil
}

// StripAudioExtension removes one trailing extension from exts, comparing
// case-insensitively. The dataset keys titles by filename, so "Physical.mp3"
// becomes "Physical".
func StripAudioExtension(title string, exts []string) string {
	lower := strings.ToLower(title)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return title[:len(title)-len(ext)]
		}
	}
	return title
}

func (r *Runner) logf(title, stderr string) *logrus.Entry {
	if r.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return r.Log.WithFields(logrus.Fields{
		"source_title": title,
		"stderr":       truncate(stderr, 2000),
	})
}

func outcomeName(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, ErrTimeout):
		return "timed_out"
	case errors.Is(err, ErrUnavailable):
		return "launch_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrBusy):
		return "rejected_busy"
	default:
		return "failed"
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(s, 300)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
