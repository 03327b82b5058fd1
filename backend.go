package gmodule

import "errors"

// Backend is the native dynamic linking capability. Exactly one implementation serves a
// build target; see Host.
//
// Failures should carry the native diagnostic text in the error message, the registry
// forwards it unmodified.
type Backend interface {
	Load(path string) (Handle, error)
	Unload(h Handle) error
	Symbol(h Handle, name string) (uintptr, error)
}

// Host returns the backend of the current build target, or ErrPlatformUnsupported.
func Host() (Backend, error) {
	b := hostBackend()
	if b == nil {
		return nil, &Error{Kind: KindPlatformUnsupported, Message: hostName}
	}
	return b, nil
}

var errInvalidHandle = errors.New("invalid handle")

type underscore struct {
	Backend
}

// Underscore decorates b so every symbol lookup is prefixed by an underscore, the
// convention of legacy Mach-O images.
func Underscore(b Backend) Backend {
	return underscore{b}
}

func (u underscore) Symbol(h Handle, name string) (uintptr, error) {
	return u.Backend.Symbol(h, "_"+name)
}
