// Package engine runs consultation engine CLIs as supervised subprocesses.
// Each invocation owns an independent process and timer pair; a dual-timeout
// policy kills engines that never start answering or stall mid-answer, and
// successful output is handed to the stream parser for text and usage
// extraction.
package engine

import (
	"strings"
	"time"

	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
)

// TimeoutPolicy bounds how long a supervised engine may stay silent.
// A zero value disables that bound entirely; timing then never fails the
// invocation.
type TimeoutPolicy struct {
	// FirstOutput is the time allowed between spawn and the first output
	// chunk longer than the initial-response threshold.
	FirstOutput time.Duration

	// Inactivity is the maximum gap allowed between consecutive output
	// chunks once output has started.
	Inactivity time.Duration
}

// Request describes one engine invocation. Requests are per-call values:
// built by the caller, owned by a single supervision, and discarded with it.
type Request struct {
	// Engine is the catalog id of the engine, used for logging and records.
	Engine string

	// Command is the executable to run; Args is its full argument list,
	// typically assembled with BuildArgs.
	Command string
	Args    []string

	// Prompt is delivered on the process's stdin and closed immediately.
	Prompt string

	// Env entries are appended to the inherited environment.
	Env map[string]string

	Timeouts TimeoutPolicy

	// DenseEstimation selects the dense-script token estimator for the
	// fallback usage calculation. Engines tuned for CJK output set this.
	DenseEstimation bool
}

// Result is the outcome of a successful supervision. On failure the
// supervisor still fills RawOutput, Duration, and ExitCode so callers can
// record what happened.
type Result struct {
	RawOutput string
	Text      string
	Usage     stream.Usage
	Duration  time.Duration
	ExitCode  int
}

// BuildArgs assembles the engine argument list: structured output mode, the
// model selector, the approval-bypass flag when no selected operation needs
// approval, and the comma-joined allowed-operations list.
func BuildArgs(model string, bypassApprovals bool, operations []string) []string {
	args := []string{"exec", "--json"}
	if model != "" {
		args = append(args, "--model", model)
	}
	if bypassApprovals {
		args = append(args, "--full-auto")
	}
	if len(operations) > 0 {
		args = append(args, "--operations", strings.Join(operations, ","))
	}
	return args
}
