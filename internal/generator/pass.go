package generator

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/tools/go/packages"

	"github.com/roach88/bake/internal/bind"
	"github.com/roach88/bake/internal/diag"
	"github.com/roach88/bake/internal/scan"
	"github.com/roach88/bake/internal/stage"
	"github.com/roach88/bake/internal/synth"
	"github.com/roach88/bake/staging"
)

// member tracks one designation through a pass.
type member struct {
	Outcome
	scanned    scan.Member
	sym        *bind.Symbol
	dir        string
	constraint string
}

// unit is a package with members that reached the secondary build.
type unit struct {
	pkg     *packages.Package
	members []*member
}

// pass is the state of one Run, Scan or Clean.
type pass struct {
	g    *Generator
	sink diag.Sink
	opts stage.Options

	prog    *stage.Program
	members []*member
	units   []*unit
	files   map[string][]byte // path -> generated source
}

func (g *Generator) newPass(sink diag.Sink, work string) *pass {
	return &pass{
		g:     g,
		sink:  sink,
		opts:  g.stageOptions(sink, work),
		files: map[string][]byte{},
	}
}

func (p *pass) report(d diag.Diagnostic) {
	p.sink.Report(d)
}

// load type-checks the feature-tagged build.
func (p *pass) load(ctx context.Context, patterns []string) error {
	prog, err := stage.Load(ctx, p.opts, patterns...)
	if err != nil {
		return err
	}
	p.prog = prog
	return nil
}

// scan finds and statically checks every designated member, in package
// order and then declaration order.
func (p *pass) scan() {
	marker := p.g.cfg.Marker
	tag := p.g.cfg.Tag
	outputs := map[string]string{} // folded output path -> member name
	for _, pkg := range p.prog.Packages {
		u := &unit{pkg: pkg}
		scan.Walk(pkg.Syntax, marker, func(m scan.Member) {
			pos := p.prog.Fset.Position(m.Pos())
			mem := &member{
				Outcome: Outcome{
					Ord:    len(p.members) + 1,
					Key:    pkg.PkgPath + "." + m.Name,
					Name:   m.Name,
					Pos:    pos,
					Status: StatusPending,
				},
				scanned: m,
				dir:     filepath.Dir(pos.Filename),
			}
			p.members = append(p.members, mem)

			for _, opt := range m.Unknown {
				d := diag.New(diag.CodeUnknownOption, diag.CategoryDirective, pos,
					"unknown option %q on %s is ignored", opt, marker)
				d.Severity = diag.SeverityWarning
				p.report(d)
			}

			sym, err := bind.Bind(pkg, m)
			if err != nil {
				p.skip(mem, diag.New(diag.CodeBinding, diag.CategoryReflection, pos, "%v", err))
				return
			}
			mem.sym = sym
			mem.Key = sym.Key

			expr, err := synth.FileConstraint(m.File)
			if err != nil {
				p.skip(mem, diag.New(diag.CodeUnguarded, diag.CategoryDirective, pos,
					"%s: can't read the build constraint of %s: %v", m.Name, filepath.Base(pos.Filename), err))
				return
			}
			if !synth.Guarded(expr, tag) {
				p.skip(mem, diag.New(diag.CodeUnguarded, diag.CategoryDirective, pos,
					"%s is also compiled without the %q build tag; add //go:build %s to %s",
					m.Name, tag, tag, filepath.Base(pos.Filename)))
				return
			}
			mem.constraint = synth.Constraint(expr, tag)

			folded := filepath.Join(mem.dir, synth.FoldedName(m.Name))
			if other, ok := outputs[folded]; ok {
				p.skip(mem, diag.New(diag.CodeFileCollision, diag.CategoryDirective, pos,
					"%s would be written to %s, which differs from the file of %s only in case",
					m.Name, synth.FileName(m.Name), other))
				return
			}
			outputs[folded] = m.Name
			u.members = append(u.members, mem)
		})
		if len(u.members) > 0 {
			p.units = append(p.units, u)
		}
	}
}

func (p *pass) skip(m *member, d diag.Diagnostic) {
	m.fail(d, StatusSkipped)
	p.report(d)
	p.g.logger.Debug("member skipped", "member", m.Key, "code", d.Code)
}

// build compiles the pass's single artifact from every unit.
func (p *pass) build(ctx context.Context) (*stage.Artifact, error) {
	units := make([]stage.Unit, 0, len(p.units))
	for _, u := range p.units {
		su := stage.Unit{Package: u.pkg, Symbols: make([]*bind.Symbol, len(u.members))}
		var roots []types.Type
		for i, m := range u.members {
			su.Symbols[i] = m.sym
			if m.sym.Result != nil {
				roots = append(roots, m.sym.Result)
			}
		}
		su.Enums = bind.Enums(u.pkg.Types, roots)
		units = append(units, su)
	}

	art, err := stage.Build(ctx, p.opts, units)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.report(diag.New(diag.CodeCompilationFailed, diag.CategoryCompilation, token.Position{},
			"compilation failed: %v", err))
		return nil, err
	}
	return art, nil
}

// request lists every bound member in scan order.
func (p *pass) request() (*staging.Request, []*member) {
	req := &staging.Request{}
	var order []*member
	for _, u := range p.units {
		reserve := bind.Reserved(u.pkg.Types)
		for _, m := range u.members {
			order = append(order, m)
			req.Members = append(req.Members, staging.MemberRequest{
				Key:         m.Key,
				Deserialize: m.scanned.Options.Deserialize,
				Home:        u.pkg.PkgPath,
				Dir:         m.dir,
				Imports:     bind.ImportMap(m.sym.Imports),
				Reserve:     reserve,
			})
		}
	}
	return req, order
}

// invoke runs the artifact once for every member and turns the results
// into generated files.
func (p *pass) invoke(ctx context.Context, art *stage.Artifact) error {
	req, order := p.request()
	byKey := make(map[string]*member, len(order))
	for _, m := range order {
		byKey[m.Key] = m
	}

	p.g.logger.Debug("running artifact", "members", len(req.Members))
	rep, err := art.Run(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m := order[len(order)-1]
		if n := reported(rep); n < len(order) {
			m = order[n]
		}
		p.report(diag.New(diag.CodeInvocationFault, diag.CategoryInvocation, m.Pos, "%v", err))
		return err
	}

	last := 0
	for _, r := range rep.Results {
		m := byKey[r.Key]
		if m == nil {
			return fmt.Errorf("%w: unexpected result for %s", stage.ErrProtocol, r.Key)
		}
		m.Seq = r.Seq
		last = max(last, r.Seq)
		p.result(m, r)
	}

	if f := rep.Fault; f != nil {
		m := byKey[f.Key]
		pos := token.Position{}
		if m != nil {
			m.Seq = last + 1
			m.Status = StatusFailed
			m.Code = diag.CodeInvocationFault
			m.Message = f.Message
			pos = m.Pos
		}
		p.report(diag.New(diag.CodeInvocationFault, diag.CategoryInvocation, pos,
			"invoking %s: %s", f.Key, f.Message))
		p.g.logger.Debug("invocation fault", "member", f.Key, "stack", f.Stack)
		return f
	}
	return nil
}

// reported counts the members a partial report covers.
func reported(rep *staging.Report) int {
	if rep == nil {
		return 0
	}
	return len(rep.Results)
}

func (p *pass) result(m *member, r staging.Result) {
	switch r.Status {
	case staging.StatusFailed:
		d := diag.New(r.Code, diag.CategoryOf(r.Code), m.Pos, "%s: %s", m.Name, r.Message)
		status := StatusSkipped
		if r.Seq > 0 {
			status = StatusFailed
		}
		m.fail(d, status)
		p.report(d)
	case staging.StatusVoid:
		m.Status = StatusVoid
	case staging.StatusOK:
		src, err := synth.Render(synth.Decl{
			Package:    m.scanned.File.Name.Name,
			Name:       m.Name,
			Var:        m.sym.Kind == staging.KindVar,
			TypeExpr:   m.sym.TypeExpr,
			WithError:  m.sym.WithError,
			Expr:       r.Expr,
			Body:       r.Body,
			Imports:    r.Imports,
			Constraint: m.constraint,
		})
		if err != nil {
			d := diag.New(diag.CodeLiteral, diag.CategorySerialization, m.Pos, "%s: %v", m.Name, err)
			m.fail(d, StatusFailed)
			p.report(d)
			return
		}
		path := filepath.Join(m.dir, synth.FileName(m.Name))
		p.files[path] = src
		m.Status = StatusGenerated
		m.File = path
	default:
		d := diag.New(diag.CodeInvocationFault, diag.CategoryInvocation, m.Pos,
			"%s: unknown result status %q", m.Name, r.Status)
		m.fail(d, StatusFailed)
		p.report(d)
	}
}

// designated returns the output path of every scanned member, whatever
// its outcome. Files outside this set are stale.
func (p *pass) designated() map[string]bool {
	keep := make(map[string]bool, len(p.members))
	for _, m := range p.members {
		keep[filepath.Join(m.dir, synth.FileName(m.Name))] = true
	}
	return keep
}

// dirs returns the source directory of every loaded package.
func (p *pass) dirs() []string {
	seen := map[string]bool{}
	var out []string
	for _, pkg := range p.prog.Packages {
		dir, err := stage.PackageDir(pkg)
		if err != nil || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

func (p *pass) outcomes() []Outcome {
	out := make([]Outcome, len(p.members))
	for i, m := range p.members {
		out[i] = m.Outcome
	}
	return out
}

// removeFiles deletes paths, ignoring ones already gone.
func removeFiles(paths []string) error {
	var errs error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
