package tool

import "errors"

var (
	// ErrUnknownTool is returned when a tool id is not present in the registry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrEmptyToolID is returned when a descriptor carries no id.
	ErrEmptyToolID = errors.New("tool id must not be empty")

	// ErrDuplicateTool is returned when registering a tool with an id that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrNoOperations is returned when a descriptor declares no operations.
	ErrNoOperations = errors.New("tool must declare at least one operation")

	// ErrInvalidCostTier is returned when a descriptor carries an unknown
	// cost tier.
	ErrInvalidCostTier = errors.New("invalid cost tier")

	// ErrInvalidSecurityTier is returned when a descriptor carries an
	// unknown security tier.
	ErrInvalidSecurityTier = errors.New("invalid security tier")

	// ErrInvalidApprovalRule is returned when an approval rule is malformed.
	ErrInvalidApprovalRule = errors.New("invalid approval rule")

	// ErrInvalidPredicate is returned when a predicate references an
	// unknown field or operator.
	ErrInvalidPredicate = errors.New("invalid predicate")
)
