package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
)

const (
	// initialResponseThreshold is the chunk size that proves the engine is
	// producing real output. Chunks at or under it (banner bytes, stray
	// newlines) leave the initial-response timer armed.
	initialResponseThreshold = 10

	// readChunkSize is the stdout read buffer size. Timer decisions are made
	// per read, so this is also the granularity of chunk accounting.
	readChunkSize = 32 * 1024

	// stderrCap bounds captured stderr; engines can dump megabytes of
	// diagnostics on failure.
	stderrCap = 4096

	// stderrPreviewLimit is the maximum preview length attached to a
	// ProcessError.
	stderrPreviewLimit = 500
)

// Config configures a Supervisor.
type Config struct {
	Logger *slog.Logger

	// ScratchDir is where prompt payloads are staged before spawn.
	// Empty means the system temp directory.
	ScratchDir string

	// Now is the clock source, overridable in tests.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Supervisor runs engine subprocesses under the dual-timeout policy.
// It is safe for concurrent use; every Supervise call owns its process,
// timers, and scratch file exclusively.
type Supervisor struct {
	cfg Config
}

// New creates a Supervisor.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg.withDefaults()}
}

// Supervise runs one engine invocation to completion.
//
// The prompt is staged to a scratch file served as the process's stdin, so
// the engine sees the full payload followed by EOF. An initial-response
// timer is armed at spawn and disarmed permanently by the first chunk
// longer than the initial-response threshold; an inactivity timer starts
// with the first chunk and is rearmed on every subsequent one. A timer that
// fires wins the outcome gate, force-kills the process, and fails the call
// with the matching timeout error. Natural process close claims the gate at
// EOF, after which exit status decides between success and ProcessError.
//
// Timers are stopped and the scratch file removed on every exit path.
func (s *Supervisor) Supervise(ctx context.Context, req Request) (Result, error) {
	start := s.cfg.Now()
	logger := s.cfg.Logger.With("engine", req.Engine)

	scratch, err := s.stagePrompt(req.Prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: staging prompt: %v", ErrSpawn, err)
	}
	defer scratch.cleanup()

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Stdin = scratch.file
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), formatEnv(req.Env)...)
	}

	stderr := &cappedBuffer{max: stderrCap}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	var g gate
	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}

	var initialTimer *time.Timer
	if req.Timeouts.FirstOutput > 0 {
		initialTimer = time.AfterFunc(req.Timeouts.FirstOutput, func() {
			if g.resolve(outcomeInitialTimeout) {
				logger.Warn("killing engine: no initial response",
					"deadline", req.Timeouts.FirstOutput,
				)
				kill()
			}
		})
		defer initialTimer.Stop()
	}

	var inactivityTimer *time.Timer
	defer func() {
		if inactivityTimer != nil {
			inactivityTimer.Stop()
		}
	}()

	// Single reader loop: chunk accounting and timer rearms stay ordered
	// relative to each other because they all happen here.
	var accumulated bytes.Buffer
	disarmed := initialTimer == nil
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			accumulated.Write(buf[:n])

			if !disarmed && n > initialResponseThreshold {
				// First substantive chunk: the initial timer is done for
				// good, regardless of later gaps.
				initialTimer.Stop()
				disarmed = true
			}

			if req.Timeouts.Inactivity > 0 {
				if inactivityTimer == nil {
					inactivityTimer = time.AfterFunc(req.Timeouts.Inactivity, func() {
						if g.resolve(outcomeInactivityTimeout) {
							logger.Warn("killing engine: output stalled",
								"gap", req.Timeouts.Inactivity,
							)
							kill()
						}
					})
				} else {
					inactivityTimer.Reset(req.Timeouts.Inactivity)
				}
			}
		}
		if readErr != nil {
			break
		}
	}

	// EOF is the natural process-closed event; claim the gate before
	// reaping so a timer firing during Wait cannot relabel a clean exit.
	g.resolve(outcomeExited)
	waitErr := cmd.Wait()

	duration := s.cfg.Now().Sub(start)
	raw := accumulated.String()

	switch g.state() {
	case outcomeInitialTimeout:
		return Result{RawOutput: raw, Duration: duration, ExitCode: exitCode(cmd)},
			fmt.Errorf("%w (%s)", ErrInitialTimeout, req.Timeouts.FirstOutput)
	case outcomeInactivityTimeout:
		return Result{RawOutput: raw, Duration: duration, ExitCode: exitCode(cmd)},
			fmt.Errorf("%w (%s)", ErrInactivityTimeout, req.Timeouts.Inactivity)
	}

	if err := ctx.Err(); err != nil {
		return Result{RawOutput: raw, Duration: duration, ExitCode: exitCode(cmd)}, err
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			perr := &ProcessError{
				ExitCode:      exitErr.ExitCode(),
				StderrPreview: truncatePreview(stderr.String()),
			}
			return Result{RawOutput: raw, Duration: duration, ExitCode: perr.ExitCode}, perr
		}
		// Wait errors that are not exit statuses are I/O failures between
		// us and the child, not the child failing.
		return Result{RawOutput: raw, Duration: duration, ExitCode: exitCode(cmd)},
			fmt.Errorf("%w: wait: %v", ErrSpawn, waitErr)
	}

	est := stream.EstimateTokens
	if req.DenseEstimation {
		est = stream.EstimateTokensDense
	}
	ext := stream.ParseWithEstimator(raw, req.Prompt, est)

	logger.Debug("engine completed",
		"duration", duration,
		"output_bytes", len(raw),
		"exact_usage", ext.Usage.Exact,
	)

	return Result{
		RawOutput: raw,
		Text:      ext.Text,
		Usage:     ext.Usage,
		Duration:  duration,
		ExitCode:  0,
	}, nil
}

// scratchFile is a staged prompt payload served to the child as stdin.
type scratchFile struct {
	file *os.File
	path string
}

func (f *scratchFile) cleanup() {
	_ = f.file.Close()
	_ = os.Remove(f.path)
}

// stagePrompt writes the prompt to a uniquely named temp file and rewinds it
// so the child reads the payload from the start.
func (s *Supervisor) stagePrompt(prompt string) (*scratchFile, error) {
	f, err := os.CreateTemp(s.cfg.ScratchDir, "consult-*.prompt")
	if err != nil {
		return nil, err
	}
	sf := &scratchFile{file: f, path: f.Name()}

	if _, err := f.WriteString(prompt); err != nil {
		sf.cleanup()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		sf.cleanup()
		return nil, err
	}
	return sf, nil
}

// cappedBuffer keeps the first max bytes written and discards the rest.
// The exec runtime writes stderr from its own goroutine, so access is
// mutex-guarded.
type cappedBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remain := b.max - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			b.buf.Write(p[:remain])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// truncatePreview caps stderr previews, walking back to a UTF-8 rune
// boundary so multi-byte characters never split at the cut.
func truncatePreview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrPreviewLimit {
		return s
	}
	i := stderrPreviewLimit
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

func formatEnv(env map[string]string) []string {
	items := make([]string, 0, len(env))
	for k, v := range env {
		items = append(items, k+"="+v)
	}
	return items
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
