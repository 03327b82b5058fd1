package gmodule

import (
	"slices"
	"testing"

	"github.com/ZenLiuCN/fn"
)

func TestListDuplicatesAcrossDirectories(t *testing.T) {
	fs := memFs("/a/libfoo.so", "/b/libfoo.so")
	l := NewEnumerator([]string{"/a", "/b"}, ConventionUnix, WithFs(fs)).List()
	defer l.Release()
	if !slices.Equal(l.Names(), []string{"foo", "foo"}) {
		t.Fatalf("names %v", l.Names())
	}
}

func TestListFilters(t *testing.T) {
	fs := memFs(
		"/a/.libhidden.so",
		"/a/libbar.so",
		"/a/libbar.so.1.2",
		"/a/libfoo.so",
		"/a/README",
		"/a/lib.so",
		"/c/libbaz.so",
	)
	fn.Panic(fs.MkdirAll("/a/libdir.so", 0o755))
	l := NewEnumerator([]string{"/a", "/missing", "/c"}, ConventionUnix, WithFs(fs)).List()
	if !slices.Equal(l.Names(), []string{"bar", "foo", "baz"}) {
		t.Fatalf("names %v", l.Names())
	}
	if l.Len() != 3 {
		t.Fatalf("len %d", l.Len())
	}
	l.Release()
	l.Release()
	if l.Len() != 0 || l.Names() != nil {
		t.Fatal("released list must be empty")
	}
}

func TestListConventions(t *testing.T) {
	fs := memFs("/p/codec.dll", "/p/libcodec.so", "/p/mux.sl", "/p/gfx.ixlibrary", "/p/sample.o")
	cases := map[Convention]string{
		ConventionWindows: "codec",
		ConventionUnix:    "codec",
		ConventionHPUX:    "mux",
		ConventionAmiga:   "gfx",
		ConventionObject:  "sample",
	}
	for conv, want := range cases {
		l := NewEnumerator([]string{"/p"}, conv, WithFs(fs)).List()
		if !slices.Equal(l.Names(), []string{want}) {
			t.Errorf("%+v: names %v", conv, l.Names())
		}
		l.Release()
	}
}
