package gmodule

import "strings"

// ArchiveMember splits an AIX style archive member path such as
// /usr/lib/libfoo.a(libfoo.so.1) into its archive and member parts.
func ArchiveMember(path string) (archive, member string, ok bool) {
	if !strings.HasSuffix(path, ")") {
		return "", "", false
	}
	i := strings.LastIndexByte(path, '(')
	if i <= 0 || i == len(path)-2 {
		return "", "", false
	}
	archive, member = path[:i], path[i+1:len(path)-1]
	if strings.ContainsAny(member, "()/") {
		return "", "", false
	}
	return archive, member, true
}

// loadMode is the dlopen mode for path: resolve now and export globally, plus memberFlag
// when path addresses an archive member.
func loadMode(path string, now, global, memberFlag int) int {
	mode := now | global
	if _, _, ok := ArchiveMember(path); ok {
		mode |= memberFlag
	}
	return mode
}
