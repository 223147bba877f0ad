package consult

import "errors"

var (
	// ErrNoToolAvailable is returned when selection accepted no tool backed
	// by a configured engine.
	ErrNoToolAvailable = errors.New("consult: no eligible tool for this request")

	// ErrUnknownEngine is returned when a request forces an engine id that
	// has no configuration.
	ErrUnknownEngine = errors.New("consult: unknown engine")

	// ErrEngineNotEligible is returned when a request forces an engine that
	// is configured but backs none of the selected tools.
	ErrEngineNotEligible = errors.New("consult: requested engine not eligible for this request")
)
