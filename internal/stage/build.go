package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/roach88/bake/internal/bind"
)

// Artifact is the built driver program of a pass.
type Artifact struct {
	Binary string
	Dir    string // directory the binary starts in
	work   string
	env    []string
}

// Unit is a package with designated members and what to register for it.
type Unit struct {
	Package *packages.Package
	Symbols []*bind.Symbol
	Enums   []bind.EnumConst
}

type overlay struct {
	Replace map[string]string `json:"Replace"`
}

// PackageDir returns the directory holding pkg's sources.
func PackageDir(pkg *packages.Package) (string, error) {
	for _, files := range [][]string{pkg.GoFiles, pkg.CompiledGoFiles, pkg.OtherFiles, pkg.IgnoredFiles} {
		if len(files) > 0 {
			return filepath.Dir(files[0]), nil
		}
	}
	return "", fmt.Errorf("package %s has no files", pkg.PkgPath)
}

// Build compiles one driver program linking every unit. Each unit's package
// gets a registration file through an -overlay, and main packages are
// compiled as libraries so the driver can import them. Compiler errors are
// reported and fail the build with ErrCompilationFailed.
func Build(ctx context.Context, opts Options, units []Unit) (*Artifact, error) {
	if len(units) == 0 {
		return nil, errors.New("build: no packages with designated members")
	}
	host, err := HostDir(units)
	if err != nil {
		return nil, err
	}
	driverDir, err := freeDir(host, DriverDir)
	if err != nil {
		return nil, err
	}
	work := opts.WorkDir
	if err := os.MkdirAll(work, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	files, err := prepare(ctx, units)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(units))
	for i, u := range units {
		paths[i] = u.Package.PkgPath
	}
	driver, err := RenderDriver(paths)
	if err != nil {
		return nil, err
	}
	files[filepath.Join(driverDir, "main.go")] = driver

	ov := overlay{Replace: make(map[string]string, len(files))}
	i := 0
	for _, target := range slices.Sorted(maps.Keys(files)) {
		i++
		src := filepath.Join(work, fmt.Sprintf("%03d_%s", i, filepath.Base(target)))
		if err := os.WriteFile(src, files[target], 0o644); err != nil {
			return nil, fmt.Errorf("write overlay file: %w", err)
		}
		ov.Replace[target] = src
	}
	data, err := json.Marshal(ov)
	if err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}
	overlayPath := filepath.Join(work, "overlay.json")
	if err := os.WriteFile(overlayPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write overlay: %w", err)
	}

	bin := filepath.Join(work, "bake-driver")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	args := []string{"build", "-overlay=" + overlayPath, "-o", bin}
	args = append(args, opts.buildFlags()...)
	args = append(args, "."+string(filepath.Separator)+filepath.Base(driverDir))

	cmd := exec.CommandContext(ctx, opts.goCmd(), args...)
	cmd.Dir = host
	cmd.Env = opts.environ()
	opts.logger().Debug("building artifact", "dir", host, "packages", len(units), "args", strings.Join(args, " "))

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, d := range ParseOutput(out, host) {
			opts.report(d)
		}
		return nil, fmt.Errorf("%w: building driver in %s: %v", ErrCompilationFailed, host, err)
	}

	return &Artifact{
		Binary: bin,
		Dir:    host,
		work:   work,
		env:    opts.environ(),
	}, nil
}

// prepare renders the overlay files of every unit, at most GOMAXPROCS at a
// time. All units are attempted; the returned error combines every failure.
func prepare(ctx context.Context, units []Unit) (map[string][]byte, error) {
	var (
		mu    sync.Mutex
		files = map[string][]byte{}
		errs  error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, u := range units {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out, err := unitFiles(u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return nil
			}
			for path, src := range out {
				files[path] = src
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if errs != nil {
		return nil, errs
	}
	return files, nil
}

// unitFiles returns the overlay of one unit: its registration file, and for
// a main package every source file renamed to package MainAlias.
func unitFiles(u Unit) (map[string][]byte, error) {
	pkg := u.Package
	dir, err := PackageDir(pkg)
	if err != nil {
		return nil, err
	}
	reg := filepath.Join(dir, RegisterFile)
	if _, err := os.Stat(reg); err == nil {
		return nil, fmt.Errorf("%s already exists; bake needs the name for its registration file", reg)
	}

	out := map[string][]byte{}
	name := pkg.Name
	if name == "main" {
		name = MainAlias
		for _, path := range pkg.GoFiles {
			src, err := renamePackage(path, name)
			if err != nil {
				return nil, err
			}
			out[path] = src
		}
	}
	src, err := RenderRegistration(pkg, name, u.Symbols, u.Enums)
	if err != nil {
		return nil, err
	}
	out[reg] = src
	return out, nil
}

// renamePackage returns the file at path with its package clause set to name.
func renamePackage(path, name string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.PackageClauseOnly)
	if err != nil {
		return nil, err
	}
	start := fset.Position(f.Name.Pos()).Offset
	end := fset.Position(f.Name.End()).Offset
	out := make([]byte, 0, len(src)+len(name))
	out = append(out, src[:start]...)
	out = append(out, name...)
	return append(out, src[end:]...), nil
}

// HostDir returns the directory the driver package is added under. A package
// below an internal element is importable only from inside the parent of
// that element, so the driver goes in the deepest such parent, or the
// module root when there is none.
func HostDir(units []Unit) (string, error) {
	root, err := moduleRoot(units[0].Package)
	if err != nil {
		return "", err
	}
	var need []string
	for _, u := range units {
		dir, err := PackageDir(u.Package)
		if err != nil {
			return "", err
		}
		modDir := root
		if m := u.Package.Module; m != nil && m.Dir != "" {
			modDir = m.Dir
		}
		elems := strings.Split(u.Package.PkgPath, "/")
		for i, e := range elems {
			if e != "internal" {
				continue
			}
			parent := dir
			for range len(elems) - i {
				parent = filepath.Dir(parent)
			}
			if !within(modDir, parent) {
				parent = modDir
			}
			need = append(need, parent)
		}
	}
	if len(need) == 0 {
		return root, nil
	}
	host := need[0]
	for _, d := range need[1:] {
		if len(d) > len(host) {
			host = d
		}
	}
	for _, d := range need {
		if !within(d, host) {
			return "", fmt.Errorf("no directory can import both %s and %s; run bake on them separately", host, d)
		}
	}
	return host, nil
}

func moduleRoot(pkg *packages.Package) (string, error) {
	if pkg.Module != nil && pkg.Module.Dir != "" {
		return pkg.Module.Dir, nil
	}
	return PackageDir(pkg)
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// freeDir returns base/name, or base/name<N> for the first N that does not
// exist on disk.
func freeDir(base, name string) (string, error) {
	for n := 0; n < 100; n++ {
		dir := filepath.Join(base, name)
		if n > 0 {
			dir += fmt.Sprint(n)
		}
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no free directory for the driver under %s", base)
}
