package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
)

// structuredScript emits a well-formed record stream the way an engine CLI
// in JSON mode does.
const structuredScript = `printf '%s\n' '{"id":1,"msg":{"type":"agent_message","message":"hello from engine"}}' '{"id":2,"msg":{"type":"token_count","last_token_usage":{"input":120,"output":45,"total":165}}}'`

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	return New(Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		ScratchDir: t.TempDir(),
	})
}

func shRequest(script string, pol TimeoutPolicy) Request {
	return Request{
		Engine:   "test",
		Command:  "sh",
		Args:     []string{"-c", script},
		Timeouts: pol,
	}
}

func TestSupervise_StructuredOutput(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	res, err := s.Supervise(context.Background(), shRequest(structuredScript, TimeoutPolicy{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Text != "hello from engine" {
		t.Errorf("text: got %q, want %q", res.Text, "hello from engine")
	}
	want := stream.Usage{InputTokens: 120, OutputTokens: 45, TotalTokens: 165, Exact: true}
	if res.Usage != want {
		t.Errorf("usage: got %+v, want %+v", res.Usage, want)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", res.ExitCode)
	}
}

func TestSupervise_SpawnError(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	req := Request{
		Engine:  "test",
		Command: "/definitely/not/an/executable",
	}

	_, err := s.Supervise(context.Background(), req)
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
}

func TestSupervise_EmptyOutputIsSuccess(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	res, err := s.Supervise(context.Background(), shRequest(":", TimeoutPolicy{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Text != "" {
		t.Errorf("text: got %q, want empty", res.Text)
	}
	if res.Usage != (stream.Usage{}) {
		t.Errorf("usage: got %+v, want zero", res.Usage)
	}
}

func TestSupervise_PromptDeliveredOnStdin(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	req := shRequest("cat", TimeoutPolicy{})
	req.Prompt = "the staged prompt payload"

	res, err := s.Supervise(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Text != req.Prompt {
		t.Errorf("text: got %q, want %q", res.Text, req.Prompt)
	}
	if res.Usage.Exact {
		t.Error("echoed plain text should carry estimated usage")
	}
}

func TestSupervise_InitialTimeout(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	started := time.Now()
	_, err := s.Supervise(context.Background(), shRequest("sleep 2; echo too late", TimeoutPolicy{
		FirstOutput: 80 * time.Millisecond,
	}))

	if !errors.Is(err, ErrInitialTimeout) {
		t.Fatalf("expected ErrInitialTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 1500*time.Millisecond {
		t.Errorf("timeout did not kill the process: took %s", elapsed)
	}
}

func TestSupervise_SmallFirstChunkKeepsInitialTimerArmed(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	// Two bytes, then silence: under the threshold, so the initial timer
	// must still fire.
	_, err := s.Supervise(context.Background(), shRequest("printf hi; sleep 2", TimeoutPolicy{
		FirstOutput: 150 * time.Millisecond,
	}))

	if !errors.Is(err, ErrInitialTimeout) {
		t.Fatalf("expected ErrInitialTimeout, got %v", err)
	}
}

func TestSupervise_LargeFirstChunkDisarmsInitialTimerPermanently(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	// The gap after the first chunk exceeds FirstOutput; with the timer
	// disarmed and no inactivity bound, the call must still succeed.
	script := `printf 'a first chunk well over ten bytes\n'; sleep 0.4; printf done`
	res, err := s.Supervise(context.Background(), shRequest(script, TimeoutPolicy{
		FirstOutput: 150 * time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.RawOutput, "done") {
		t.Errorf("raw output missing tail: %q", res.RawOutput)
	}
}

func TestSupervise_InactivityTimeout(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	script := `printf 'a healthy first chunk of output\n'; sleep 2`
	_, err := s.Supervise(context.Background(), shRequest(script, TimeoutPolicy{
		Inactivity: 100 * time.Millisecond,
	}))

	if !errors.Is(err, ErrInactivityTimeout) {
		t.Fatalf("expected ErrInactivityTimeout, got %v", err)
	}
}

func TestSupervise_UnboundedPolicyNeverFailsOnTiming(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	res, err := s.Supervise(context.Background(), shRequest("sleep 0.3; printf late", TimeoutPolicy{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "late" {
		t.Errorf("text: got %q, want %q", res.Text, "late")
	}
}

func TestSupervise_ProcessError(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	res, err := s.Supervise(context.Background(), shRequest("echo boom >&2; exit 3", TimeoutPolicy{}))

	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if perr.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", perr.ExitCode)
	}
	if !strings.Contains(perr.StderrPreview, "boom") {
		t.Errorf("stderr preview: got %q, want it to contain %q", perr.StderrPreview, "boom")
	}
	if res.ExitCode != 3 {
		t.Errorf("result exit code: got %d, want 3", res.ExitCode)
	}
}

func TestSupervise_ConcurrentSupervisionsAreIsolated(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)

	var wg sync.WaitGroup
	var timedOutErr, okErr error
	var okRes Result

	wg.Add(2)
	go func() {
		defer wg.Done()
		script := `printf 'first chunk over the threshold\n'; sleep 2`
		_, timedOutErr = s.Supervise(context.Background(), shRequest(script, TimeoutPolicy{
			Inactivity: 100 * time.Millisecond,
		}))
	}()
	go func() {
		defer wg.Done()
		okRes, okErr = s.Supervise(context.Background(), shRequest("sleep 0.5; "+structuredScript, TimeoutPolicy{}))
	}()
	wg.Wait()

	if !errors.Is(timedOutErr, ErrInactivityTimeout) {
		t.Errorf("stalled supervision: expected ErrInactivityTimeout, got %v", timedOutErr)
	}
	if okErr != nil {
		t.Errorf("healthy supervision failed: %v", okErr)
	}
	if okRes.Text != "hello from engine" {
		t.Errorf("healthy supervision text: got %q, want %q", okRes.Text, "hello from engine")
	}
	if !okRes.Usage.Exact {
		t.Error("healthy supervision should report exact usage")
	}
}

func TestSupervise_ScratchFilesRemovedOnEveryPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		ScratchDir: dir,
	})

	requests := []Request{
		shRequest(structuredScript, TimeoutPolicy{}),
		shRequest("sleep 2", TimeoutPolicy{FirstOutput: 50 * time.Millisecond}),
		{Engine: "test", Command: "/definitely/not/an/executable", Prompt: "x"},
		shRequest("exit 9", TimeoutPolicy{}),
	}
	for _, req := range requests {
		_, _ = s.Supervise(context.Background(), req)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not empty: %d entries left", len(entries))
	}
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		model      string
		bypass     bool
		operations []string
		want       []string
	}{
		{
			name: "bare",
			want: []string{"exec", "--json"},
		},
		{
			name:       "full",
			model:      "o3",
			bypass:     true,
			operations: []string{"code_review", "debug"},
			want:       []string{"exec", "--json", "--model", "o3", "--full-auto", "--operations", "code_review,debug"},
		},
		{
			name:       "operations without bypass",
			operations: []string{"debug"},
			want:       []string{"exec", "--json", "--operations", "debug"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := BuildArgs(tt.model, tt.bypass, tt.operations)
			if len(got) != len(tt.want) {
				t.Fatalf("args: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("args[%d]: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTruncatePreview(t *testing.T) {
	t.Parallel()

	short := "just a short diagnostic"
	if got := truncatePreview(short); got != short {
		t.Errorf("short input: got %q, want unchanged", got)
	}

	long := strings.Repeat("x", stderrPreviewLimit+100)
	if got := truncatePreview(long); len(got) != stderrPreviewLimit {
		t.Errorf("long input: got %d bytes, want %d", len(got), stderrPreviewLimit)
	}

	// 3-byte runes force the cut to land mid-rune; the boundary walk must
	// produce valid UTF-8 strictly under the limit.
	multibyte := strings.Repeat("日", 200)
	got := truncatePreview(multibyte)
	if !utf8.ValidString(got) {
		t.Error("multibyte truncation produced invalid UTF-8")
	}
	if len(got) > stderrPreviewLimit {
		t.Errorf("multibyte truncation: got %d bytes, want <= %d", len(got), stderrPreviewLimit)
	}
}

func TestCappedBuffer(t *testing.T) {
	t.Parallel()

	b := &cappedBuffer{max: 10}

	n, err := b.Write([]byte("123456"))
	if err != nil || n != 6 {
		t.Fatalf("first write: got (%d, %v), want (6, nil)", n, err)
	}
	n, err = b.Write([]byte("7890AB"))
	if err != nil || n != 6 {
		t.Fatalf("second write: got (%d, %v), want (6, nil)", n, err)
	}

	if got := b.String(); got != "1234567890" {
		t.Errorf("contents: got %q, want %q", got, "1234567890")
	}
}
