package gmodule

import (
	"strconv"
	"strings"
)

// Convention describes how a logical module name maps to a file name.
type Convention struct {
	Prefix string
	Suffix string
	// Versioned enables the lib<name><suffix>.<major>.<minor> fallback scan.
	Versioned bool
}

var (
	// ConventionUnix is lib<name>.so with versioned shared objects.
	ConventionUnix = Convention{Prefix: "lib", Suffix: ".so", Versioned: true}
	// ConventionWindows is <name>.dll, also used by OS/2.
	ConventionWindows = Convention{Suffix: ".dll"}
	// ConventionHPUX is <name>.sl.
	ConventionHPUX = Convention{Suffix: ".sl"}
	// ConventionAmiga is <name>.ixlibrary.
	ConventionAmiga = Convention{Suffix: ".ixlibrary"}
	// ConventionObject is <name>.o, Go relocatable objects.
	ConventionObject = Convention{Suffix: ".o"}
)

// FileName returns the exact file name for name.
func (c Convention) FileName(name string) string {
	return c.Prefix + name + c.Suffix
}

// Match reports whether file is an exact-convention module file and returns its bare name.
func (c Convention) Match(file string) (name string, ok bool) {
	if len(file) <= len(c.Prefix)+len(c.Suffix) {
		return "", false
	}
	if !strings.HasPrefix(file, c.Prefix) || !strings.HasSuffix(file, c.Suffix) {
		return "", false
	}
	return file[len(c.Prefix) : len(file)-len(c.Suffix)], true
}

// Version parses file as a versioned object of name and returns major*10000+minor.
//
// Only the first two numeric components after the suffix count; trailing components are
// ignored (libfoo.so.1.2.3 scores as 1.2).
func (c Convention) Version(file, name string) (score int, ok bool) {
	if !c.Versioned {
		return 0, false
	}
	rest, found := strings.CutPrefix(file, c.FileName(name)+".")
	if !found {
		return 0, false
	}
	parts := strings.SplitN(rest, ".", 3)
	if len(parts) < 2 {
		return 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return 0, false
	}
	return major*10000 + minor, true
}
