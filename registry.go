package gmodule

import (
	"errors"
	"sort"
	"sync"

	"github.com/ZenLiuCN/fn"
	"github.com/sirupsen/logrus"
)

// Module is one loaded module. It is owned by its Registry; callers hold it only between
// a successful Load and the paired Unload.
type Module struct {
	name    string
	path    string
	handle  Handle
	refs    int
	symbols []*Symbol
}

// Name returns the logical name.
func (m *Module) Name() string { return m.name }

// Path returns the file the module was loaded from.
func (m *Module) Path() string { return m.path }

// Handle returns the backend handle.
func (m *Module) Handle() Handle { return m.handle }

// Refs returns the reference count. Read it through Registry.Refs for a locked view.
func (m *Module) Refs() int { return m.refs }

// Resident reports whether the module is part of the process image and never unmapped.
func (m *Module) Resident() bool { return m.handle.IsResident() }

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for debug tracing and unload warnings.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// Registry is the table of loaded modules keyed by logical name.
//
// One mutex guards every record, reference count and symbol list. Load, Unload, Lookup and
// Resolve hold it for their full duration, file probing and native calls included, so a
// slow native loader serialises all loader activity. List does not take it.
type Registry struct {
	mu       sync.Mutex
	modules  map[string]*Module
	resolver *Resolver
	backend  Backend
	log      logrus.FieldLogger
	lastErr  string
}

// NewRegistry creates an empty registry.
func NewRegistry(resolver *Resolver, backend Backend, opts ...Option) *Registry {
	r := &Registry{
		modules:  make(map[string]*Module),
		resolver: resolver,
		backend:  backend,
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// fail stores the error text in the last error slot, the caller holds the lock.
func (r *Registry) fail(err *Error) error {
	r.lastErr = err.Error()
	return err
}

// LastError returns the text of the most recent failure. Every failing call overwrites it.
func (r *Registry) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Load returns the module registered under name, loading it on first use. Every successful
// Load must be paired with one Unload.
func (r *Registry) Load(name string) (m *Module, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m = r.modules[name]; m != nil {
		m.refs++
		r.log.WithFields(logrus.Fields{"module": name, "refs": m.refs}).Debug("module shared")
		return
	}
	if r.backend == nil {
		return nil, r.fail(&Error{Kind: KindPlatformUnsupported, Name: name, Message: hostName})
	}
	path, err := r.resolver.Resolve(name)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			e = newError(KindNotFound, name, "", err)
		}
		return nil, r.fail(e)
	}
	h, err := r.backend.Load(path)
	if err != nil {
		return nil, r.fail(newError(KindLoadFailed, name, path, err))
	}
	m = &Module{name: name, path: path, handle: h, refs: 1}
	r.modules[name] = m
	r.log.WithFields(logrus.Fields{"module": name, "path": path, "handle": h.String()}).Debug("module loaded")
	return
}

// Unload releases one reference of m. The last release unloads the module from the
// backend, except for resident modules which are only dropped from the table.
//
// When the backend refuses to unload, the record stays registered with zero references
// and its symbol bookkeeping; a later Unload retries the backend call.
func (r *Registry) Unload(m *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == nil || r.modules[m.name] != m {
		name := ""
		if m != nil {
			name = m.name
		}
		return r.fail(&Error{Kind: KindUnloadFailed, Name: name, Message: "module not loaded"})
	}
	if m.refs > 0 {
		m.refs--
	}
	if m.refs > 0 {
		r.log.WithFields(logrus.Fields{"module": m.name, "refs": m.refs}).Debug("module released")
		return nil
	}
	if !m.handle.IsResident() {
		if err := r.backend.Unload(m.handle); err != nil {
			r.log.WithFields(logrus.Fields{"module": m.name, "path": m.path}).WithError(err).Warn("module unload failed, record retained")
			return r.fail(newError(KindUnloadFailed, m.name, m.path, err))
		}
	}
	r.destroy(m)
	r.log.WithFields(logrus.Fields{"module": m.name, "path": m.path}).Debug("module unloaded")
	return nil
}

func (r *Registry) destroy(m *Module) {
	m.dropSymbols()
	delete(r.modules, m.name)
	m.handle = Handle{}
}

// Lookup returns the registered module without taking a reference.
func (r *Registry) Lookup(name string) (*Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.modules[name]; m != nil {
		return m, nil
	}
	return nil, r.fail(&Error{Kind: KindNotFound, Name: name, Message: "module not loaded"})
}

// Resolve looks up symbol in m, writes its address to slot and records it once in the
// module bookkeeping.
func (r *Registry) Resolve(m *Module, symbol string, slot *uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == nil || r.modules[m.name] != m {
		return r.fail(&Error{Kind: KindSymbolNotFound, Name: symbol, Message: "module not loaded"})
	}
	p, err := r.backend.Symbol(m.handle, symbol)
	if err != nil {
		return r.fail(newError(KindSymbolNotFound, symbol, m.path, err))
	}
	if slot != nil {
		*slot = p
	}
	m.record(symbol, slot)
	r.log.WithFields(logrus.Fields{"module": m.name, "symbol": symbol}).Debugf("symbol resolved at %#x", p)
	return nil
}

// Refs returns the reference count of m under the registry lock.
func (r *Registry) Refs(m *Module) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m.refs
}

// Symbols returns a copy of the symbol bookkeeping of m in resolution order.
func (r *Registry) Symbols(m *Module) []Symbol {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Symbol, 0, len(m.symbols))
	for _, s := range m.symbols {
		out = append(out, *s)
	}
	return out
}

// Loaded returns the sorted names of registered modules.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := fn.MapKeys(r.modules)
	sort.Strings(names)
	return names
}

// List enumerates module names visible in the resolver directories without touching the
// registry lock.
func (r *Registry) List() *ModuleList {
	return newEnumerator(r.resolver.dirs, r.resolver.conv, r.resolver.fs).List()
}

// Close unloads every registered module regardless of its reference count. Modules whose
// unload fails stay registered and their errors are joined.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, name := range fn.MapKeys(r.modules) {
		m := r.modules[name]
		m.refs = 0
		if !m.handle.IsResident() {
			if err := r.backend.Unload(m.handle); err != nil {
				errs = append(errs, r.fail(newError(KindUnloadFailed, m.name, m.path, err)))
				continue
			}
		}
		r.destroy(m)
	}
	return errors.Join(errs...)
}
