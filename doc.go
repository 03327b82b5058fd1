/*
Package gmodule is a dynamic module loader: it finds shared libraries by logical name,
loads each one once, shares it by reference count, resolves exported symbols and unloads
it when the last user releases it.

# Underwater

 1. A [Backend] abstracts the native linker: dlopen via [purego] on linux, darwin and the
    BSDs, LoadLibraryEx on windows, cgo dlopen with archive member support on aix, and Go
    relocatable objects through the object subpackage.
 2. A [Resolver] turns a name into a file following a [Convention]: lib<name>.so first,
    then the newest lib<name>.so.<major>.<minor>, directory by directory.
 3. A [Registry] owns every loaded [Module] behind a single lock.
 4. An [Enumerator] lists the names visible in the module directories.

# Notes

 1. Every successful [Registry.Load] must be paired with exactly one [Registry.Unload].
 2. Addresses written by [Registry.Resolve] are invalid once the module is unloaded.
 3. When the native unload fails the module stays registered with zero references, see
    [Registry.Unload].
 4. Failures are *[Error] values matching the ErrXxx sentinels with errors.Is; the text of
    the last one is kept by [Registry.LastError].

# Samples

	backend, err := gmodule.Host()
	if err != nil {
		return err
	}
	reg := gmodule.NewRegistry(gmodule.NewResolver(dirs, gmodule.HostConvention), backend)
	m, err := reg.Load("codec")
	if err != nil {
		return err
	}
	defer reg.Unload(m)
	var open uintptr
	if err = reg.Resolve(m, "codec_open", &open); err != nil {
		return err
	}

[purego]: https://github.com/ebitengine/purego
*/
package gmodule
