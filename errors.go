package gmodule

import (
	"errors"
	"strings"
)

// ErrorKind classifies loader failures.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindLoadFailed
	KindSymbolNotFound
	KindUnloadFailed
	KindPlatformUnsupported
)

var (
	// ErrNotFound occurs when no configured directory holds a matching module file.
	ErrNotFound = errors.New("module not found")
	// ErrLoadFailed occurs when the native loader rejects a module file.
	ErrLoadFailed = errors.New("module load failed")
	// ErrSymbolNotFound occurs when a loaded module does not export a symbol.
	ErrSymbolNotFound = errors.New("missing symbol")
	// ErrUnloadFailed occurs when the native loader refuses to unmap a module.
	ErrUnloadFailed = errors.New("module unload failed")
	// ErrPlatformUnsupported occurs when the build target has no dynamic linking facility.
	ErrPlatformUnsupported = errors.New("dynamic loading unsupported on this platform")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindLoadFailed:
		return ErrLoadFailed
	case KindSymbolNotFound:
		return ErrSymbolNotFound
	case KindUnloadFailed:
		return ErrUnloadFailed
	case KindPlatformUnsupported:
		return ErrPlatformUnsupported
	}
	return nil
}

func (k ErrorKind) String() string {
	if e := k.sentinel(); e != nil {
		return e.Error()
	}
	return "unknown"
}

// Error is the failure reported by every loader operation.
//
// Message holds the backend diagnostic verbatim. Path is the file used for the load or,
// for KindNotFound, the last directory probed.
type Error struct {
	Kind    ErrorKind
	Name    string // module or symbol name
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		b.WriteString(" '")
		b.WriteString(e.Name)
		b.WriteByte('\'')
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteByte(')')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports the sentinel matching the error kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

func newError(kind ErrorKind, name, path string, cause error) *Error {
	e := &Error{Kind: kind, Name: name, Path: path, Err: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// KindOf returns the ErrorKind carried by err, or zero when err is not a loader error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
