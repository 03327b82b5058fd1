package gmodule

import (
	"strings"

	"github.com/spf13/afero"
)

// Enumerator lists module names visible in a set of directories. It never loads anything
// and is independent of any Registry.
type Enumerator struct {
	dirs []string
	conv Convention
	fs   afero.Fs
}

// NewEnumerator creates an Enumerator over dirs.
func NewEnumerator(dirs []string, conv Convention, opts ...ResolverOption) *Enumerator {
	c := newFsConfig(opts)
	return newEnumerator(dirs, conv, c.fs)
}

func newEnumerator(dirs []string, conv Convention, fs afero.Fs) *Enumerator {
	return &Enumerator{dirs: append([]string(nil), dirs...), conv: conv, fs: fs}
}

// List returns the bare names of exact-convention files in directory order. Hidden
// entries are skipped and unreadable directories ignored. A name present in several
// directories is listed once per directory.
func (e *Enumerator) List() *ModuleList {
	l := new(ModuleList)
	for _, dir := range e.dirs {
		entries, err := afero.ReadDir(e.fs, dir)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			file := ent.Name()
			if strings.HasPrefix(file, ".") || ent.IsDir() {
				continue
			}
			if name, ok := e.conv.Match(file); ok {
				l.names = append(l.names, name)
			}
		}
	}
	return l
}

// ModuleList is the result of Enumerator.List; Release it when done.
type ModuleList struct {
	names []string
}

// Names returns the listed names, nil after Release.
func (l *ModuleList) Names() []string {
	if l == nil {
		return nil
	}
	return l.names
}

// Len returns the number of listed names.
func (l *ModuleList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Release clears every name and the list itself. It is safe to call more than once.
func (l *ModuleList) Release() {
	if l == nil {
		return
	}
	for i := range l.names {
		l.names[i] = ""
	}
	l.names = nil
}
