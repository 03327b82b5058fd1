package gmodule

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZenLiuCN/fn"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// counting is a Backend recording native calls.
type counting struct {
	mu        sync.Mutex
	loads     map[string]int
	unloads   map[uintptr]int
	next      uintptr
	tokens    map[uintptr]string
	symbols   map[string]uintptr
	failLoad  error
	failClose error
}

func newCounting() *counting {
	return &counting{
		loads:   make(map[string]int),
		unloads: make(map[uintptr]int),
		tokens:  make(map[uintptr]string),
		symbols: map[string]uintptr{"codec_open": 0x1000, "codec_close": 0x2000},
	}
}

func (c *counting) Load(path string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failLoad != nil {
		return Handle{}, c.failLoad
	}
	c.loads[path]++
	c.next++
	c.tokens[c.next] = path
	return Owned(c.next), nil
}

func (c *counting) Unload(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unloads[h.Token()]++
	return c.failClose
}

func (c *counting) Symbol(h Handle, name string) (uintptr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tokens[h.Token()]; !ok {
		return 0, errInvalidHandle
	}
	p, ok := c.symbols[name]
	if !ok {
		return 0, fmt.Errorf("undefined symbol: %s", name)
	}
	return p, nil
}

var testDirs = []string{"/opt/app/lib", "/usr/lib/app"}

func testRegistry(t *testing.T, files ...string) (*Registry, *counting) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, d := range testDirs {
		fn.Panic(fs.MkdirAll(d, 0o755))
	}
	for _, f := range files {
		fn.Panic(afero.WriteFile(fs, f, []byte("ELF"), 0o644))
	}
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	b := newCounting()
	return NewRegistry(NewResolver(testDirs, ConventionUnix, WithFs(fs)), b, WithLogger(log)), b
}

func TestLoadResolvesExactPath(t *testing.T) {
	r, b := testRegistry(t, "/usr/lib/app/libcodec.so")
	m := fn.Panic1(r.Load("codec"))
	if want := filepath.Join("/usr/lib/app", "libcodec.so"); m.Path() != want {
		t.Fatalf("path %s, want %s", m.Path(), want)
	}
	if b.loads[m.Path()] != 1 || m.Refs() != 1 {
		t.Fatalf("loads %d refs %d", b.loads[m.Path()], m.Refs())
	}
	fn.Panic(r.Unload(m))
}

func TestLoadMissing(t *testing.T) {
	r, b := testRegistry(t)
	_, err := r.Load("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Path != "/usr/lib/app" {
		t.Fatalf("want last directory /usr/lib/app, got %+v", e)
	}
	if r.LastError() != err.Error() {
		t.Fatalf("last error %q", r.LastError())
	}
	if len(b.loads) != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestLoadFailedForwardsDiagnostic(t *testing.T) {
	r, b := testRegistry(t, "/opt/app/lib/libcodec.so")
	b.failLoad = errors.New("libcodec.so: invalid ELF header")
	_, err := r.Load("codec")
	if KindOf(err) != KindLoadFailed {
		t.Fatalf("want load failure, got %v", err)
	}
	var e *Error
	errors.As(err, &e)
	if e.Message != "libcodec.so: invalid ELF header" || e.Path != "/opt/app/lib/libcodec.so" {
		t.Fatalf("unexpected %+v", e)
	}
	if _, err = r.Lookup("codec"); !errors.Is(err, ErrNotFound) {
		t.Fatal("failed load must not register")
	}
}

func TestRefCounting(t *testing.T) {
	r, b := testRegistry(t, "/opt/app/lib/libcodec.so")
	m1 := fn.Panic1(r.Load("codec"))
	m2 := fn.Panic1(r.Load("codec"))
	if m1 != m2 {
		t.Fatal("same name must share one record")
	}
	if r.Refs(m1) != 2 {
		t.Fatalf("refs %d", r.Refs(m1))
	}
	fn.Panic(r.Unload(m1))
	if r.Refs(m1) != 1 {
		t.Fatalf("refs %d", r.Refs(m1))
	}
	if len(b.unloads) != 0 {
		t.Fatal("native unload before last release")
	}
	tok := m1.Handle().Token()
	fn.Panic(r.Unload(m2))
	if b.loads[m1.Path()] != 1 || b.unloads[tok] != 1 {
		t.Fatalf("native calls load=%d unload=%d", b.loads[m1.Path()], b.unloads[tok])
	}
	if _, err := r.Lookup("codec"); err == nil {
		t.Fatal("record must be gone")
	}
	if len(r.Loaded()) != 0 {
		t.Fatalf("registry not empty: %v", r.Loaded())
	}
}

func TestUnloadFailureRetainsRecord(t *testing.T) {
	r, b := testRegistry(t, "/opt/app/lib/libcodec.so")
	m := fn.Panic1(r.Load("codec"))
	var slot uintptr
	fn.Panic(r.Resolve(m, "codec_open", &slot))
	b.failClose = errors.New("dlclose: busy")
	if err := r.Unload(m); !errors.Is(err, ErrUnloadFailed) {
		t.Fatalf("want ErrUnloadFailed, got %v", err)
	}
	kept := fn.Panic1(r.Lookup("codec"))
	if kept != m || r.Refs(m) != 0 || len(r.Symbols(m)) != 1 {
		t.Fatalf("record must be retained with zero refs and symbols: %s", spew.Sdump(r.Symbols(m)))
	}
	b.failClose = nil
	fn.Panic(r.Unload(m))
	if r.Refs(m) != 0 {
		t.Fatalf("refs went to %d", r.Refs(m))
	}
	if _, err := r.Lookup("codec"); err == nil {
		t.Fatal("record must be gone after a successful retry")
	}
}

func TestUnloadNotLoaded(t *testing.T) {
	r, _ := testRegistry(t, "/opt/app/lib/libcodec.so")
	m := fn.Panic1(r.Load("codec"))
	fn.Panic(r.Unload(m))
	if err := r.Unload(m); !errors.Is(err, ErrUnloadFailed) {
		t.Fatalf("double unload: %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r, _ := testRegistry(t, "/opt/app/lib/libcodec.so")
	m := fn.Panic1(r.Load("codec"))
	defer func() { fn.Panic(r.Unload(m)) }()
	var a, b uintptr
	fn.Panic(r.Resolve(m, "codec_open", &a))
	fn.Panic(r.Resolve(m, "codec_open", &b))
	if a != b || a != 0x1000 {
		t.Fatalf("addresses %#x %#x", a, b)
	}
	syms := r.Symbols(m)
	if len(syms) != 1 || syms[0].Name != "codec_open" || syms[0].Slot != &a {
		t.Fatalf("bookkeeping %s", spew.Sdump(syms))
	}
	fn.Panic(r.Resolve(m, "codec_close", nil))
	if len(r.Symbols(m)) != 2 {
		t.Fatalf("bookkeeping %v", r.Symbols(m))
	}
}

func TestResolveMissing(t *testing.T) {
	r, _ := testRegistry(t, "/opt/app/lib/libcodec.so")
	m := fn.Panic1(r.Load("codec"))
	defer func() { fn.Panic(r.Unload(m)) }()
	var slot uintptr
	err := r.Resolve(m, "codec_reset", &slot)
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("want ErrSymbolNotFound, got %v", err)
	}
	if slot != 0 || len(r.Symbols(m)) != 0 {
		t.Fatal("failed resolve must not touch slot or bookkeeping")
	}
}

func TestResidentSkipsNativeUnload(t *testing.T) {
	fs := afero.NewMemMapFs()
	fn.Panic(afero.WriteFile(fs, "/opt/app/lib/libcore.so", nil, 0o644))
	native := newCounting()
	s := NewStatic(native)
	s.Link("libcore.so", map[string]uintptr{"core_init": 0x42})
	r := NewRegistry(NewResolver(testDirs, ConventionUnix, WithFs(fs)), s)
	m := fn.Panic1(r.Load("core"))
	if !m.Resident() {
		t.Fatalf("want resident handle, got %s", m.Handle())
	}
	var p uintptr
	fn.Panic(r.Resolve(m, "core_init", &p))
	if p != 0x42 {
		t.Fatalf("address %#x", p)
	}
	fn.Panic(r.Unload(m))
	if len(native.unloads) != 0 || len(native.loads) != 0 {
		t.Fatal("resident module reached the native backend")
	}
	if len(r.Loaded()) != 0 {
		t.Fatal("resident module must leave the registry")
	}
}

func TestPlatformUnsupported(t *testing.T) {
	r := NewRegistry(NewResolver(testDirs, ConventionUnix, WithFs(afero.NewMemMapFs())), nil)
	if _, err := r.Load("codec"); !errors.Is(err, ErrPlatformUnsupported) {
		t.Fatalf("want ErrPlatformUnsupported, got %v", err)
	}
}

func TestClose(t *testing.T) {
	r, b := testRegistry(t, "/opt/app/lib/libcodec.so", "/opt/app/lib/libmux.so")
	fn.Panic1(r.Load("codec"))
	fn.Panic1(r.Load("codec"))
	fn.Panic1(r.Load("mux"))
	fn.Panic(r.Close())
	if len(r.Loaded()) != 0 || len(b.unloads) != 2 {
		t.Fatalf("loaded %v unloads %v", r.Loaded(), b.unloads)
	}
}

func TestConcurrentLoad(t *testing.T) {
	r, b := testRegistry(t, "/opt/app/lib/libcodec.so")
	var w sync.WaitGroup
	for i := 0; i < 16; i++ {
		w.Add(1)
		go func() {
			defer w.Done()
			m := fn.Panic1(r.Load("codec"))
			var p uintptr
			fn.Panic(r.Resolve(m, "codec_open", &p))
			fn.Panic(r.Unload(m))
		}()
	}
	w.Wait()
	if len(r.Loaded()) != 0 {
		t.Fatalf("leaked %v", r.Loaded())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	loads := b.loads["/opt/app/lib/libcodec.so"]
	unloads := 0
	for _, n := range b.unloads {
		unloads += n
	}
	if loads != unloads {
		t.Fatalf("native loads %d unloads %d", loads, unloads)
	}
}

func TestListDoesNotNeedRegistryLock(t *testing.T) {
	r, _ := testRegistry(t, "/opt/app/lib/libfoo.so", "/usr/lib/app/libfoo.so")
	r.mu.Lock()
	l := r.List()
	r.mu.Unlock()
	defer l.Release()
	if got := l.Names(); len(got) != 2 || got[0] != "foo" || got[1] != "foo" {
		t.Fatalf("names %v", got)
	}
}
