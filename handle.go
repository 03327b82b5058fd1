package gmodule

import "fmt"

type handleKind uint8

const (
	handleNone handleKind = iota
	handleOwned
	handleResident
)

// Handle is the backend token of a loaded module.
//
// An owned handle came from a native load and must be passed back to the same backend to
// unload it. A resident handle names an image already linked into the process; it is
// never passed to a native unload call.
type Handle struct {
	kind  handleKind
	token uintptr
	image string
}

// Owned wraps a native loader token.
func Owned(token uintptr) Handle {
	return Handle{kind: handleOwned, token: token}
}

// Resident marks a module whose code is already part of the process image.
func Resident(image string) Handle {
	return Handle{kind: handleResident, image: image}
}

// IsValid reports whether the handle was produced by a successful load.
func (h Handle) IsValid() bool { return h.kind != handleNone }

// IsResident reports whether the handle is the resident sentinel.
func (h Handle) IsResident() bool { return h.kind == handleResident }

// Token returns the native token of an owned handle, zero otherwise.
func (h Handle) Token() uintptr {
	if h.kind != handleOwned {
		return 0
	}
	return h.token
}

// Image returns the image name of a resident handle.
func (h Handle) Image() string { return h.image }

func (h Handle) String() string {
	switch h.kind {
	case handleOwned:
		return fmt.Sprintf("owned(%#x)", h.token)
	case handleResident:
		return fmt.Sprintf("resident(%s)", h.image)
	}
	return "invalid"
}
