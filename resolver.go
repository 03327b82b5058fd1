package gmodule

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// ResolverOption configures Resolver and Enumerator.
type ResolverOption func(*fsConfig)

type fsConfig struct {
	fs afero.Fs
}

// WithFs replaces the operating system filesystem, mostly for tests.
func WithFs(fs afero.Fs) ResolverOption {
	return func(c *fsConfig) {
		c.fs = fs
	}
}

func newFsConfig(opts []ResolverOption) fsConfig {
	c := fsConfig{fs: afero.NewOsFs()}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Resolver maps logical names to module files across an ordered directory list.
type Resolver struct {
	dirs []string
	conv Convention
	fs   afero.Fs
}

// NewResolver creates a Resolver; dirs is copied and searched in order.
func NewResolver(dirs []string, conv Convention, opts ...ResolverOption) *Resolver {
	c := newFsConfig(opts)
	return &Resolver{
		dirs: append([]string(nil), dirs...),
		conv: conv,
		fs:   c.fs,
	}
}

// Dirs returns a copy of the search directories.
func (r *Resolver) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Convention returns the naming convention in use.
func (r *Resolver) Convention() Convention {
	return r.conv
}

// Resolve returns the module file for name.
//
// Per directory an exact file name wins, then the highest versioned shared object; the
// first directory yielding either ends the search. The NotFound error carries the last
// directory probed.
func (r *Resolver) Resolve(name string) (string, error) {
	var last string
	exact := r.conv.FileName(name)
	for _, dir := range r.dirs {
		last = dir
		candidate := filepath.Join(dir, exact)
		if r.isFile(candidate) {
			return candidate, nil
		}
		if best := r.newest(dir, name); best != "" {
			return filepath.Join(dir, best), nil
		}
	}
	return "", &Error{Kind: KindNotFound, Name: name, Path: last, Message: "no " + exact + " in module directories"}
}

func (r *Resolver) isFile(path string) bool {
	fi, err := r.fs.Stat(path)
	return err == nil && !fi.IsDir()
}

func (r *Resolver) newest(dir, name string) (best string) {
	if !r.conv.Versioned {
		return
	}
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return
	}
	score := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if s, ok := r.conv.Version(e.Name(), name); ok && s > score {
			score, best = s, e.Name()
		}
	}
	return
}
