package gmodule

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ZenLiuCN/fn"
)

// Static serves images that are linked into the executable. Loading one of them yields a
// Resident handle; any other path goes to the fallback backend.
//
// Images are keyed by file base name, so lib<name>.so found in any directory is satisfied
// by the image registered as "lib<name>.so".
type Static struct {
	fallback Backend
	mu       sync.RWMutex
	images   map[string]map[string]uintptr
}

// NewStatic creates a Static backend, fallback may be nil.
func NewStatic(fallback Backend) *Static {
	return &Static{fallback: fallback, images: make(map[string]map[string]uintptr)}
}

// Link registers an image and its exported symbols.
func (s *Static) Link(image string, symbols map[string]uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]uintptr, len(symbols))
	for k, v := range symbols {
		m[k] = v
	}
	s.images[image] = m
}

// Images returns the registered image names.
func (s *Static) Images() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn.MapKeys(s.images)
}

func (s *Static) Load(path string) (Handle, error) {
	image := filepath.Base(path)
	s.mu.RLock()
	_, ok := s.images[image]
	s.mu.RUnlock()
	if ok {
		return Resident(image), nil
	}
	if s.fallback == nil {
		return Handle{}, fmt.Errorf("%s is not linked into the process", image)
	}
	return s.fallback.Load(path)
}

func (s *Static) Unload(h Handle) error {
	if h.IsResident() {
		return nil
	}
	if s.fallback == nil {
		return errInvalidHandle
	}
	return s.fallback.Unload(h)
}

func (s *Static) Symbol(h Handle, name string) (uintptr, error) {
	if !h.IsResident() {
		if s.fallback == nil {
			return 0, errInvalidHandle
		}
		return s.fallback.Symbol(h, name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	syms, ok := s.images[h.Image()]
	if !ok {
		return 0, fmt.Errorf("image %s is not linked", h.Image())
	}
	p, ok := syms[name]
	if !ok {
		return 0, fmt.Errorf("%s: undefined symbol: %s", h.Image(), name)
	}
	return p, nil
}
