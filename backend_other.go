//go:build !(darwin || freebsd || linux || netbsd || windows || (aix && cgo))

package gmodule

const hostName = "none"

// HostConvention is the file naming convention of the build target.
var HostConvention = ConventionUnix

func hostBackend() Backend {
	return nil
}
