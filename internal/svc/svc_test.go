package svc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProgram_StartStop(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	p := &program{
		logger:   quietLogger(),
		stopWait: time.Second,
		run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return nil
		},
	}

	if err := p.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("runner never started")
	}

	if err := p.Stop(nil); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	select {
	case <-p.done:
	default:
		t.Error("runner still running after stop")
	}
}

func TestProgram_StopWithoutStart(t *testing.T) {
	t.Parallel()

	p := &program{logger: quietLogger(), stopWait: time.Second}
	if err := p.Stop(nil); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestProgram_StopTimesOutOnStuckRunner(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)

	p := &program{
		logger:   quietLogger(),
		stopWait: 50 * time.Millisecond,
		run: func(_ context.Context) error {
			<-block
			return nil
		},
	}

	if err := p.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	begun := time.Now()
	if err := p.Stop(nil); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if time.Since(begun) > time.Second {
		t.Error("stop waited past the configured bound")
	}
}

func TestProgram_RunnerErrorLogged(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	p := &program{
		logger:   slog.New(slog.NewTextHandler(&buf, nil)),
		stopWait: time.Second,
		run: func(_ context.Context) error {
			return errors.New("bind: address already in use")
		},
	}

	if err := p.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-p.done

	if !strings.Contains(buf.String(), "daemon exited") {
		t.Errorf("log output missing exit record: %q", buf.String())
	}
}

func TestService_ControlRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	s := &Service{}
	if err := s.Control("reload"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := New(Config{ConfigPath: "/etc/consultd.yaml", Logger: quietLogger()}, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	if err != nil {
		t.Skipf("no service manager on this host: %v", err)
	}
	if s.inner == nil {
		t.Fatal("inner service not registered")
	}
}
