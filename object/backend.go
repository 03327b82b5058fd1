package object

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/ZenLiuCN/gmodule"
	"github.com/pkujhd/goloader"
	"github.com/sirupsen/logrus"
)

type (
	// Backend loads Go relocatable object files (.o) and go archives (.a) at runtime with
	// [goloader]. Exported symbols of loaded objects join the shared symbol table, so later
	// objects can link against earlier ones.
	//
	// The host executable must be built with a go sdk prepared for goloader.
	Backend struct {
		sync.Mutex
		symbols map[string]uintptr
		pkg     string
		objects map[uintptr]*loaded
		next    uintptr
		log     logrus.FieldLogger
	}
	loaded struct {
		path   string
		pkg    string
		linker *goloader.Linker
		module *goloader.CodeModule
	}
	// Option configures a Backend.
	Option func(*Backend)
)

// WithPackage fixes the package path of loaded objects, default is the file base name.
func WithPackage(pkg string) Option {
	return func(b *Backend) {
		b.pkg = pkg
	}
}

// WithLogger sets the debug logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// New creates a Backend seeded with the runtime symbols of the host executable.
func New(opts ...Option) (b *Backend, err error) {
	b = &Backend{
		symbols: make(map[string]uintptr),
		objects: make(map[uintptr]*loaded),
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(b)
	}
	if err = goloader.RegSymbol(b.symbols); err != nil {
		return nil, err
	}
	return
}

// RegisterTypes makes host types available to loaded objects.
func (b *Backend) RegisterTypes(types ...any) {
	b.Lock()
	defer b.Unlock()
	goloader.RegTypes(b.symbols, types...)
}

// RegisterSo adds the symbols of a shared object to the shared table.
func (b *Backend) RegisterSo(path string) error {
	b.Lock()
	defer b.Unlock()
	return goloader.RegSymbolWithSo(b.symbols, path)
}

func (b *Backend) packageOf(path string) string {
	if b.pkg != "" {
		return b.pkg
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (b *Backend) Load(path string) (h gmodule.Handle, err error) {
	b.Lock()
	defer b.Unlock()
	o := &loaded{path: path, pkg: b.packageOf(path)}
	if o.linker, err = goloader.ReadObj(path, o.pkg); err != nil {
		return
	}
	if missing := goloader.UnresolvedSymbols(o.linker, b.symbols); len(missing) > 0 {
		b.log.WithField("path", path).Debugf("unresolved symbols: %v", missing)
	}
	if o.module, err = goloader.Load(o.linker, b.symbols); err != nil {
		return
	}
	b.register(o)
	b.next++
	b.objects[b.next] = o
	b.log.WithFields(logrus.Fields{"path": path, "pkg": o.pkg, "symbols": len(o.module.Syms)}).Debug("object linked")
	return gmodule.Owned(b.next), nil
}

func (b *Backend) register(o *loaded) {
	for s, u := range o.module.Syms {
		if _, ok := b.symbols[s]; !ok {
			b.symbols[s] = u
		}
	}
}

func (b *Backend) unregister(o *loaded) {
	for s, u := range o.module.Syms {
		if x, ok := b.symbols[s]; ok && x == u {
			delete(b.symbols, s)
		}
	}
}

func (b *Backend) Unload(h gmodule.Handle) error {
	b.Lock()
	defer b.Unlock()
	o, ok := b.objects[h.Token()]
	if !ok {
		return fmt.Errorf("no object linked as %s", h)
	}
	_ = os.Stdout.Sync()
	b.unregister(o)
	o.module.Unload()
	delete(b.objects, h.Token())
	o.module, o.linker = nil, nil
	return nil
}

// Symbol looks name up as given, then qualified by the object package.
func (b *Backend) Symbol(h gmodule.Handle, name string) (uintptr, error) {
	b.Lock()
	defer b.Unlock()
	o, ok := b.objects[h.Token()]
	if !ok {
		return 0, fmt.Errorf("no object linked as %s", h)
	}
	if p, ok := o.module.Syms[name]; ok {
		return p, nil
	}
	if q := o.pkg + "." + name; strings.IndexByte(name, '.') < 0 {
		if p, ok := o.module.Syms[q]; ok {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%s: undefined symbol: %s", o.path, name)
}

// Missing returns the symbols the object behind h could not resolve when it was linked.
func (b *Backend) Missing(h gmodule.Handle) ([]string, error) {
	b.Lock()
	defer b.Unlock()
	o, ok := b.objects[h.Token()]
	if !ok {
		return nil, fmt.Errorf("no object linked as %s", h)
	}
	return goloader.UnresolvedSymbols(o.linker, b.symbols), nil
}

// Func converts a resolved function address into a Go func value of type T.
func Func[T any](addr uintptr) T {
	p := new(uintptr)
	*p = addr
	return *(*T)(unsafe.Pointer(&p))
}
