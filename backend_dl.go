//go:build darwin || freebsd || linux || netbsd

package gmodule

import (
	"fmt"

	"github.com/ebitengine/purego"
)

const hostName = "dlopen"

// HostConvention is the file naming convention of the build target.
var HostConvention = ConventionUnix

// dl is the dlopen family backend.
type dl struct {
	mode int
}

// NewDL returns a dlopen backend loading with RTLD_NOW|RTLD_GLOBAL.
func NewDL() Backend {
	return &dl{mode: purego.RTLD_NOW | purego.RTLD_GLOBAL}
}

func hostBackend() Backend {
	return NewDL()
}

func (d *dl) Load(path string) (Handle, error) {
	h, err := purego.Dlopen(path, d.mode)
	if err != nil {
		return Handle{}, err
	}
	if h == 0 {
		return Handle{}, fmt.Errorf("dlopen %s returned a nil handle", path)
	}
	return Owned(h), nil
}

func (d *dl) Unload(h Handle) error {
	if h.Token() == 0 {
		return errInvalidHandle
	}
	return purego.Dlclose(h.Token())
}

func (d *dl) Symbol(h Handle, name string) (uintptr, error) {
	if h.Token() == 0 {
		return 0, errInvalidHandle
	}
	return purego.Dlsym(h.Token(), name)
}
