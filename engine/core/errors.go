package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrorKind classifies every failure the HAL can report.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	// Resource used contrary to its declared usage flags.
	KindUsageViolation
	// An external compiler or cross compiler exited non-zero.
	KindToolFailure
	// A reflection or binding name was not found.
	KindLookupFailure
	// A fixed capacity pool is full.
	KindResourceExhausted
	// File missing, unreadable, unwritable or a lock timed out.
	KindIOFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindUsageViolation:
		return "UsageViolation"
	case KindToolFailure:
		return "ToolFailure"
	case KindLookupFailure:
		return "LookupFailure"
	case KindResourceExhausted:
		return "ResourceExhausted"
	case KindIOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

var (
	ErrUsageViolation    = errors.New("usage violation")
	ErrToolFailure       = errors.New("tool failure")
	ErrLookupFailure     = errors.New("lookup failure")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrIOFailure         = errors.New("io failure")
	ErrUnknown           = errors.New("unknown")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUsageViolation:
		return ErrUsageViolation
	case KindToolFailure:
		return ErrToolFailure
	case KindLookupFailure:
		return ErrLookupFailure
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindIOFailure:
		return ErrIOFailure
	default:
		return ErrUnknown
	}
}

// Error is the single tagged error type of the HAL. It records where it was
// raised so the top level handler can report file, function and line.
type Error struct {
	Kind    ErrorKind
	Op      string
	Context string
	Err     error

	File string
	Func string
	Line int
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrLookupFailure) works on
// any wrapped *Error.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Location renders the recorded origin as file:line (func).
func (e *Error) Location() string {
	if e.File == "" {
		return "unknown location"
	}
	return fmt.Sprintf("%s:%d (%s)", e.File, e.Line, e.Func)
}

// NewError builds a tagged error and records the caller's location.
func NewError(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	e := &Error{
		Kind:    kind,
		Op:      op,
		Context: fmt.Sprintf(format, args...),
	}
	e.File, e.Func, e.Line = caller(2)
	return e
}

// WrapError tags an existing error. A nil err yields nil.
func WrapError(kind ErrorKind, op string, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	e := &Error{
		Kind:    kind,
		Op:      op,
		Context: fmt.Sprintf(format, args...),
		Err:     err,
	}
	e.File, e.Func, e.Line = caller(2)
	return e
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func caller(skip int) (string, string, int) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", "", 0
	}
	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = filepath.Base(fn.Name())
	}
	return filepath.Base(file), name, line
}
