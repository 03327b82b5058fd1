//go:build windows

package gmodule

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"
)

const hostName = "LoadLibraryEx"

// HostConvention is the file naming convention of the build target.
var HostConvention = ConventionWindows

type winBackend struct{}

func hostBackend() Backend {
	return winBackend{}
}

// Load normalises separators, suppresses critical-error dialogs for the duration of the
// call and retries without LOAD_WITH_ALTERED_SEARCH_PATH when the first attempt fails.
func (winBackend) Load(path string) (Handle, error) {
	path = strings.ReplaceAll(path, "/", `\`)
	prev := windows.SetErrorMode(windows.SEM_FAILCRITICALERRORS)
	defer windows.SetErrorMode(prev)
	h, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		h, err = windows.LoadLibraryEx(path, 0, 0)
	}
	if err != nil {
		return Handle{}, fmt.Errorf("LoadLibrary failed: %w", err)
	}
	return Owned(uintptr(h)), nil
}

func (winBackend) Unload(h Handle) error {
	if h.Token() == 0 {
		return errInvalidHandle
	}
	if err := windows.FreeLibrary(windows.Handle(h.Token())); err != nil {
		return fmt.Errorf("FreeLibrary failed: %w", err)
	}
	return nil
}

func (winBackend) Symbol(h Handle, name string) (uintptr, error) {
	if h.Token() == 0 {
		return 0, errInvalidHandle
	}
	p, err := windows.GetProcAddress(windows.Handle(h.Token()), name)
	if err != nil {
		return 0, fmt.Errorf("GetProcAddress(%s) failed: %w", name, err)
	}
	return p, nil
}
