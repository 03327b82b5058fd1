package main

import (
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ZenLiuCN/gmodule"
	"github.com/ZenLiuCN/gmodule/config"
	"github.com/ZenLiuCN/gmodule/logging"
	"github.com/ZenLiuCN/gmodule/object"
)

func main() {
	app := cli.NewApp()
	app.Name = "modtool"
	app.Usage = "dynamic module inspector"
	app.Description = "find, list and load dynamic modules from the configured module directories"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file"},
		&cli.StringSliceFlag{Name: "dir", Aliases: []string{"D"}, Usage: "module directory, repeatable, overrides configuration"},
		&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "native or object"},
	}
	app.Commands = []*cli.Command{
		{Name: "list", Action: list, Usage: "list modules visible in the module directories"},
		{Name: "resolve", Action: resolve, Usage: "print the file a module name resolves to", Args: true, ArgsUsage: "<name>..."},
		{Name: "load",
			Action:    load,
			Usage:     "load a module, resolve symbols and unload it",
			Args:      true,
			ArgsUsage: "<name> [symbol...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "dump", Usage: "dump the module record"},
			},
		},
		{Name: "inspect",
			Action:    inspect,
			Usage:     "display symbols and imports of a go object file",
			Args:      true,
			ArgsUsage: "<object>...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

type env struct {
	cfg *config.Config
	log *logrus.Logger
	reg *gmodule.Registry
}

func setup(ctx *cli.Context) (e *env, err error) {
	e = new(env)
	if e.cfg, err = config.Load(ctx.String("config")); err != nil {
		return
	}
	if dirs := ctx.StringSlice("dir"); len(dirs) > 0 {
		e.cfg.Dirs = dirs
	}
	if b := ctx.String("backend"); b != "" {
		e.cfg.Backend = b
	}
	if ctx.Bool("debug") {
		e.cfg.LogLevel = "debug"
	}
	if err = e.cfg.Validate(); err != nil {
		return
	}
	if e.log, err = logging.Init(*e.cfg); err != nil {
		return
	}
	var backend gmodule.Backend
	conv := gmodule.HostConvention
	switch e.cfg.Backend {
	case config.BackendObject:
		var opts []object.Option
		if e.cfg.Package != "" {
			opts = append(opts, object.WithPackage(e.cfg.Package))
		}
		if backend, err = object.New(append(opts, object.WithLogger(e.log))...); err != nil {
			return
		}
		conv = gmodule.ConventionObject
	default:
		if backend, err = gmodule.Host(); err != nil {
			return
		}
	}
	e.reg = gmodule.NewRegistry(gmodule.NewResolver(e.cfg.Dirs, conv), backend, gmodule.WithLogger(e.log))
	return
}

func list(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	names := e.reg.List()
	defer names.Release()
	for _, n := range names.Names() {
		fmt.Println(n)
	}
	return nil
}

func resolve(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing module name")
	}
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	r := gmodule.NewResolver(e.cfg.Dirs, conventionOf(e.cfg))
	for _, name := range ctx.Args().Slice() {
		p, err := r.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", name, p)
	}
	return nil
}

func conventionOf(cfg *config.Config) gmodule.Convention {
	if cfg.Backend == config.BackendObject {
		return gmodule.ConventionObject
	}
	return gmodule.HostConvention
}

func load(ctx *cli.Context) (err error) {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing module name")
	}
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	args := ctx.Args().Slice()
	m, err := e.reg.Load(args[0])
	if err != nil {
		return err
	}
	defer func() {
		if uerr := e.reg.Unload(m); uerr != nil && err == nil {
			err = uerr
		}
	}()
	fmt.Printf("%s\t%s\t%s\n", m.Name(), m.Path(), m.Handle())
	for _, s := range args[1:] {
		var addr uintptr
		if err = e.reg.Resolve(m, s, &addr); err != nil {
			return
		}
		fmt.Printf("\t%s\t%#x\n", s, addr)
	}
	if ctx.Bool("dump") {
		sp := spew.NewDefaultConfig()
		sp.MaxDepth = 3
		sp.Dump(e.reg.Symbols(m))
	}
	return
}

func inspect(ctx *cli.Context) error {
	pkg := ctx.String("pkg")
	for _, s := range ctx.Args().Slice() {
		syms, err := object.Inspect(s, pkg)
		if err != nil {
			return err
		}
		info, err := object.Imports(s, pkg)
		if err != nil {
			return err
		}
		log.Printf("%s symbols:\n%s", s, spew.Sdump(syms))
		log.Printf("%s imports:\n%s", s, info)
	}
	return nil
}
