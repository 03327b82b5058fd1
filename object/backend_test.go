package object

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/ZenLiuCN/fn"
	"github.com/davecgh/go-spew/spew"

	"github.com/ZenLiuCN/gmodule"
)

const moduleSample = "testdata/sample.o"

var debugging = false

func answer() int { return 42 }

func TestFunc(t *testing.T) {
	f := Func[func() int](reflect.ValueOf(answer).Pointer())
	if f() != 42 {
		t.Fatal("Func must call the code at the address")
	}
}

func TestModuleVersion(t *testing.T) {
	f := unescapeModulePath("/go/pkg/mod/github.com/!zen!liu!c!n/fn@v0.1.33/fn.go")
	if f != "/go/pkg/mod/github.com/ZenLiuCN/fn@v0.1.33/fn.go" {
		t.Fatalf("unescape %s", f)
	}
	if v := moduleVersion(f, "github.com/ZenLiuCN/fn"); v != "v0.1.33" {
		t.Fatalf("version %s", v)
	}
	if v := moduleVersion("/usr/src/strings/strings.go", "github.com/ZenLiuCN/fn"); v != "" {
		t.Fatalf("version %s", v)
	}
	i := Info{Imports: map[string]string{"strings": "", "github.com/ZenLiuCN/fn": "v0.1.33"}}
	if i.String() != "\tgithub.com/ZenLiuCN/fn@v0.1.33\n\tstrings\n" {
		t.Fatalf("info %q", i.String())
	}
}

func ready(t *testing.T) *Backend {
	t.Helper()
	if _, err := os.Stat(moduleSample); err != nil {
		t.Skip("testdata/sample.o not built, run go generate in testdata")
	}
	return fn.Panic1(New())
}

func TestLoadObject(t *testing.T) {
	b := ready(t)
	h := fn.Panic1(b.Load(moduleSample))
	if debugging {
		spew.Dump(b.objects[h.Token()].module.Syms)
	}
	run := Func[func() string](fn.Panic1(b.Symbol(h, "Run")))
	if run() != "sample" {
		t.Fatal("Run")
	}
	upper := Func[func(string) string](fn.Panic1(b.Symbol(h, "sample.Upper")))
	if upper("abc") != "ABC" {
		t.Fatal("Upper")
	}
	if _, err := b.Symbol(h, "Absent"); err == nil {
		t.Fatal("expected missing symbol")
	}
	t.Log(fn.Panic1(b.Missing(h)))
	fn.Panic(b.Unload(h))
	if err := b.Unload(h); err == nil {
		t.Fatal("double unload must fail")
	}
}

func TestRegistryWithObjects(t *testing.T) {
	b := ready(t)
	r := gmodule.NewRegistry(gmodule.NewResolver([]string{"testdata"}, gmodule.ConventionObject), b)
	m := fn.Panic1(r.Load("sample"))
	var addr uintptr
	fn.Panic(r.Resolve(m, "NewName", &addr))
	if Func[func(string) string](addr)("x") != "x" {
		t.Fatal("NewName")
	}
	fn.Panic(r.Unload(m))
	if _, err := r.Lookup("sample"); !errors.Is(err, gmodule.ErrNotFound) {
		t.Fatalf("lookup %v", err)
	}
}

func TestInspect(t *testing.T) {
	ready(t)
	syms := fn.Panic1(Inspect(moduleSample, "sample"))
	if len(syms) == 0 {
		t.Fatal("no symbols")
	}
	info := fn.Panic1(Imports(moduleSample, "sample"))
	if _, ok := info.Imports["strings"]; !ok {
		t.Fatalf("imports %s", info)
	}
}
