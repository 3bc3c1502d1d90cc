package stage

import (
	"context"
	"fmt"
	"go/token"
	"sort"

	"golang.org/x/tools/go/packages"

	"github.com/roach88/bake/internal/diag"
)

// LoadMode is what the scanner and binder need from the loader.
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports |
	packages.NeedModule

// Program is the type-checked secondary compilation.
type Program struct {
	Fset     *token.FileSet
	Packages []*packages.Package // root packages, sorted by import path
}

// Load type-checks the packages matching patterns with the feature tag set.
// Every load, parse or type error is reported; any error fails the load
// with ErrCompilationFailed.
func Load(ctx context.Context, opts Options, patterns ...string) (*Program, error) {
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context:    ctx,
		Mode:       LoadMode,
		Dir:        opts.Dir,
		Env:        opts.environ(),
		BuildFlags: opts.buildFlags(),
		Fset:       fset,
	}
	opts.logger().Debug("loading packages", "patterns", patterns, "flags", cfg.BuildFlags)

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		opts.report(diag.New(diag.CodeCompilationFailed, diag.CategoryCompilation, token.Position{},
			"loading packages: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrCompilationFailed, err)
	}

	n := 0
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			opts.report(packageError(e))
			n++
		}
	})
	if n > 0 {
		opts.report(diag.New(diag.CodeCompilationFailed, diag.CategoryCompilation, token.Position{},
			"compilation failed: %d error(s) in the %s build", n, opts.Tag))
		return nil, fmt.Errorf("%w: %d error(s) in the %s build", ErrCompilationFailed, n, opts.Tag)
	}
	if len(pkgs) == 0 {
		opts.report(diag.New(diag.CodeCompilationFailed, diag.CategoryCompilation, token.Position{},
			"no packages match %v", patterns))
		return nil, fmt.Errorf("%w: no packages match %v", ErrCompilationFailed, patterns)
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })
	return &Program{Fset: fset, Packages: pkgs}, nil
}

func packageError(e packages.Error) diag.Diagnostic {
	code := "go/unknown"
	switch e.Kind {
	case packages.ListError:
		code = "go/list"
	case packages.ParseError:
		code = "go/parse"
	case packages.TypeError:
		code = "go/type"
	}
	pos, _ := parsePosition(e.Pos, "")
	return diag.New(code, diag.CategoryCompilation, pos, "%s", e.Msg)
}

// Dirs returns the source directories of the packages matching patterns,
// loaded without the feature tag and without type checking. Broken
// packages are included as long as their files can be listed.
func Dirs(ctx context.Context, opts Options, patterns ...string) ([]string, error) {
	cfg := &packages.Config{
		Context:    ctx,
		Mode:       packages.NeedName | packages.NeedFiles,
		Dir:        opts.Dir,
		Env:        opts.environ(),
		BuildFlags: opts.BuildFlags,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	seen := map[string]bool{}
	var dirs []string
	for _, p := range pkgs {
		dir, err := PackageDir(p)
		if err != nil || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}
