package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors. The typed errors below unwrap to these, so callers can
// match with errors.Is and extract detail with errors.As.
var (
	ErrComponentNotFound  = errors.New("component not found")
	ErrCycleDetected      = errors.New("circular dependency detected in BOM")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidScrapFactor = errors.New("invalid scrap factor")
	ErrEmptyGraph         = errors.New("empty graph")
	ErrEmptyComponentID   = errors.New("component id cannot be empty")
)

// ComponentNotFoundError names an id absent from the repository or graph
type ComponentNotFoundError struct {
	ID ComponentID
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component not found: %s", e.ID)
}

func (e *ComponentNotFoundError) Unwrap() error { return ErrComponentNotFound }

// CycleDetectedError carries the cycle path; the first id is repeated at the end
type CycleDetectedError struct {
	Path []ComponentID
}

func (e *CycleDetectedError) Error() string {
	ids := make([]string, len(e.Path))
	for i, id := range e.Path {
		ids[i] = string(id)
	}
	return fmt.Sprintf("circular dependency detected in BOM: %s", strings.Join(ids, " -> "))
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// InvalidQuantityError rejects a negative edge quantity or requested quantity
type InvalidQuantityError struct {
	Parent ComponentID
	Child  ComponentID
	Value  decimal.Decimal
}

func (e *InvalidQuantityError) Error() string {
	if e.Parent == "" && e.Child == "" {
		return fmt.Sprintf("invalid quantity: %s must not be negative", e.Value)
	}
	return fmt.Sprintf("invalid quantity on %s -> %s: %s must not be negative", e.Parent, e.Child, e.Value)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// InvalidScrapFactorError rejects a negative scrap factor
type InvalidScrapFactorError struct {
	Parent ComponentID
	Child  ComponentID
	Value  decimal.Decimal
}

func (e *InvalidScrapFactorError) Error() string {
	return fmt.Sprintf("invalid scrap factor on %s -> %s: %s must not be negative", e.Parent, e.Child, e.Value)
}

func (e *InvalidScrapFactorError) Unwrap() error { return ErrInvalidScrapFactor }

// EmptyGraphError means the repository answered but yielded no vertex for the root
type EmptyGraphError struct {
	Root ComponentID
}

func (e *EmptyGraphError) Error() string {
	if e.Root == "" {
		return "empty graph: no root component"
	}
	return fmt.Sprintf("empty graph: root %s resolved to no component", e.Root)
}

func (e *EmptyGraphError) Unwrap() error { return ErrEmptyGraph }

// ErrorKind separates bad input from structural data problems
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBadInput
	KindStructural
)

// String method for ErrorKind enum
func (k ErrorKind) String() string {
	switch k {
	case KindBadInput:
		return "BadInput"
	case KindStructural:
		return "Structural"
	default:
		return "Unknown"
	}
}

// KindOf classifies an error returned anywhere in the engine
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCycleDetected), errors.Is(err, ErrEmptyGraph):
		return KindStructural
	case errors.Is(err, ErrComponentNotFound),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidScrapFactor),
		errors.Is(err, ErrEmptyComponentID):
		return KindBadInput
	default:
		return KindUnknown
	}
}

// NotFound is a shorthand for building a ComponentNotFoundError
func NotFound(id ComponentID) error {
	return &ComponentNotFoundError{ID: id}
}
