package object

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"github.com/pkujhd/goloader/obj"
)

// Inspect returns the symbols declared by an object file.
func Inspect(file, pkg string) ([]string, error) {
	if pkg == "" {
		pkg = "main"
	}
	return goloader.Parse(file, pkg)
}

// Info is the import information of an object file.
type Info struct {
	File    string
	PkgPath string
	Imports map[string]string // import path to module version, empty for std
}

func (i Info) String() string {
	s := strings.Builder{}
	keys := fn.MapKeys(i.Imports)
	sort.Strings(keys)
	for _, p := range keys {
		if v := i.Imports[p]; v != "" {
			s.WriteString(fmt.Sprintf("\t%s@%s\n", p, v))
		} else {
			s.WriteString(fmt.Sprintf("\t%s\n", p))
		}
	}
	return s.String()
}

// Imports resolves the packages imported by an object file, with module versions when
// the compile unit paths carry them.
func Imports(file, pkg string) (*Info, error) {
	if pkg == "" {
		pkg = "main"
	}
	v := &obj.Pkg{Syms: make(map[string]*obj.ObjSymbol), File: file, PkgPath: pkg}
	if err := v.Symbols(); err != nil {
		return nil, err
	}
	i := &Info{File: file, PkgPath: pkg, Imports: make(map[string]string, len(v.ImportPkgs))}
	for _, p := range v.ImportPkgs {
		i.Imports[p] = ""
	}
	for _, f := range v.CUFiles {
		f = strings.TrimPrefix(f, "gofile..")
		if strings.HasPrefix(f, "$GOROOT") {
			continue
		}
		f = unescapeModulePath(f)
		for p, ver := range i.Imports {
			if ver != "" {
				continue
			}
			if ver = moduleVersion(f, p); ver != "" {
				i.Imports[p] = ver
			}
		}
	}
	return i, nil
}

// moduleVersion extracts v1.2.3 from .../mod/example.com/pkg@v1.2.3/file.go for import p.
func moduleVersion(file, p string) string {
	x := strings.Index(file, p)
	if x < 0 {
		return ""
	}
	rest := file[x:]
	at := strings.IndexByte(rest, '@')
	if at < 0 {
		return ""
	}
	ver := rest[at+1:]
	if slash := strings.IndexByte(ver, '/'); slash >= 0 {
		ver = ver[:slash]
	}
	return ver
}

// unescapeModulePath reverses the module cache case encoding, !x is X.
func unescapeModulePath(f string) string {
	if strings.IndexByte(f, '!') < 0 {
		return f
	}
	v := strings.Builder{}
	bang := false
	for _, c := range []byte(f) {
		switch {
		case c == '!':
			bang = true
		case bang:
			bang = false
			v.WriteByte(c - 32)
		default:
			v.WriteByte(c)
		}
	}
	return v.String()
}
