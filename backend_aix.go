//go:build aix && cgo

package gmodule

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>
*/
import "C"

import (
	"errors"
	"unsafe"
)

const hostName = "dlopen(aix)"

// HostConvention is the file naming convention of the build target.
var HostConvention = ConventionUnix

type aixdl struct{}

func hostBackend() Backend {
	return aixdl{}
}

func dlerror() error {
	msg := C.dlerror()
	if msg == nil {
		return errors.New("unknown dlerror")
	}
	return errors.New(C.GoString(msg))
}

// Load passes RTLD_MEMBER for archive(member) paths.
func (aixdl) Load(path string) (Handle, error) {
	mode := loadMode(path, int(C.RTLD_NOW), int(C.RTLD_GLOBAL), int(C.RTLD_MEMBER))
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	C.dlerror()
	h := C.dlopen(cpath, C.int(mode))
	if h == nil {
		return Handle{}, dlerror()
	}
	return Owned(uintptr(h)), nil
}

func (aixdl) Unload(h Handle) error {
	if h.Token() == 0 {
		return errInvalidHandle
	}
	C.dlerror()
	if C.dlclose(unsafe.Pointer(h.Token())) != 0 {
		return dlerror()
	}
	return nil
}

func (aixdl) Symbol(h Handle, name string) (uintptr, error) {
	if h.Token() == 0 {
		return 0, errInvalidHandle
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.dlerror()
	p := C.dlsym(unsafe.Pointer(h.Token()), cname)
	if p == nil {
		return 0, dlerror()
	}
	return uintptr(p), nil
}
