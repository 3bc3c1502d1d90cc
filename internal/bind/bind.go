// Package bind resolves scanned declarations against the type-checked
// package, producing the static half of a bound member: its canonical key,
// shape and declared result type spelled for generated code.
package bind

import (
	"fmt"
	"go/types"
	"strconv"

	"golang.org/x/tools/go/packages"

	"github.com/roach88/bake/internal/scan"
	"github.com/roach88/bake/literal"
	"github.com/roach88/bake/staging"
)

// Symbol is a designated member resolved against type information.
type Symbol struct {
	Key    string
	Member scan.Member
	Object types.Object
	Kind   staging.Kind

	Static   bool
	Params   int
	Generic  bool
	Exported bool

	// Recv names the receiver type for methods, as written in Go source
	// ("T", "*T"). Empty for funcs and vars.
	Recv string

	// Result is the declared value type; nil for functions without
	// results or with results that aren't (T) or (T, error).
	Result    types.Type
	Void      bool
	WithError bool

	// TypeExpr spells Result inside the package. Imports holds the
	// local names it uses, with the member's own name reserved.
	TypeExpr string
	Imports  *literal.Imports
}

// Error is a binding failure. It skips only the offending member.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("can't bind %s: %s", e.Name, e.Reason)
}

// Bind resolves m in pkg.
func Bind(pkg *packages.Package, m scan.Member) (*Symbol, error) {
	if m.Name == "_" || m.Name == "init" {
		return nil, &Error{Name: m.Name, Reason: "the name can't be referenced"}
	}
	obj := pkg.TypesInfo.Defs[m.Ident]
	if obj == nil {
		return nil, &Error{Name: m.Name, Reason: "no object declared for the name"}
	}

	s := &Symbol{
		Member:   m,
		Object:   obj,
		Exported: obj.Exported(),
		Imports:  literal.NewImports(),
	}
	for _, name := range Reserved(pkg.Types) {
		s.Imports.Reserve(name)
	}

	switch o := obj.(type) {
	case *types.Var:
		s.Kind = staging.KindVar
		s.Static = true
		s.Key = pkg.PkgPath + "." + m.Name
		s.Result = o.Type()
	case *types.Func:
		sig := o.Type().(*types.Signature)
		s.Kind = staging.KindFunc
		s.Static = sig.Recv() == nil
		s.Params = sig.Params().Len()
		s.Generic = sig.TypeParams().Len() > 0
		s.Key = pkg.PkgPath + "." + m.Name
		if !s.Static {
			recv, ptr, arity, err := receiver(sig.Recv().Type())
			if err != nil {
				return nil, &Error{Name: m.Name, Reason: err.Error()}
			}
			s.Kind = staging.KindMethod
			s.Generic = s.Generic || arity > 0
			s.Recv = recv
			if ptr {
				s.Recv = "*" + recv
			}
			if arity > 0 {
				recv += "[" + strconv.Itoa(arity) + "]"
			}
			s.Key = pkg.PkgPath + "." + recv + "+" + m.Name
		}
		results := sig.Results()
		switch {
		case results.Len() == 0:
			s.Void = true
		case results.Len() == 1:
			s.Result = results.At(0).Type()
		case results.Len() == 2 && types.Identical(results.At(1).Type(), errorType):
			s.Result = results.At(0).Type()
			s.WithError = true
		}
	default:
		return nil, &Error{Name: m.Name, Reason: fmt.Sprintf("%s is not a function or variable", obj)}
	}

	if s.Result != nil && s.Static && !s.Generic {
		if err := nameable(s.Result, pkg.Types, map[types.Type]bool{}); err != nil {
			return nil, &Error{Name: m.Name, Reason: err.Error()}
		}
		s.TypeExpr = types.TypeString(s.Result, Qualifier(pkg.Types, s.Imports))
	}
	return s, nil
}

var errorType = types.Universe.Lookup("error").Type()

// Qualifier spells packages other than home through im.
func Qualifier(home *types.Package, im *literal.Imports) types.Qualifier {
	return func(p *types.Package) string {
		if p == home {
			return ""
		}
		return im.Use(p.Path(), p.Name())
	}
}

// Reserved lists the package-scope names of pkg. A generated file can't
// import a package under any of them.
func Reserved(pkg *types.Package) []string {
	return pkg.Scope().Names()
}

// ImportMap returns the assignments in im keyed by path.
func ImportMap(im *literal.Imports) map[string]string {
	out := make(map[string]string)
	for _, i := range im.List() {
		out[i.Path] = i.Name
	}
	return out
}

func receiver(t types.Type) (name string, ptr bool, arity int, err error) {
	if p, ok := t.(*types.Pointer); ok {
		t, ptr = p.Elem(), true
	}
	t = types.Unalias(t)
	named, ok := t.(*types.Named)
	if !ok {
		return "", false, 0, fmt.Errorf("receiver type %s has no name", t)
	}
	return named.Obj().Name(), ptr, named.TypeParams().Len(), nil
}

// nameable reports an error when t can't be spelled outside the package
// that declares part of it.
func nameable(t types.Type, home *types.Package, seen map[types.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	switch t := t.(type) {
	case *types.Alias:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg() != home && !obj.Exported() {
			return fmt.Errorf("declared type %s is unexported in package %s", obj.Name(), obj.Pkg().Path())
		}
		return nil
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg() != home && !obj.Exported() {
			return fmt.Errorf("declared type %s is unexported in package %s", obj.Name(), obj.Pkg().Path())
		}
		if obj.Pkg() != nil && obj.Parent() != nil && obj.Parent() != obj.Pkg().Scope() {
			return fmt.Errorf("declared type %s is local to a function", obj.Name())
		}
		args := t.TypeArgs()
		for i := 0; i < args.Len(); i++ {
			if err := nameable(args.At(i), home, seen); err != nil {
				return err
			}
		}
		return nil
	case *types.Pointer:
		return nameable(t.Elem(), home, seen)
	case *types.Slice:
		return nameable(t.Elem(), home, seen)
	case *types.Array:
		return nameable(t.Elem(), home, seen)
	case *types.Chan:
		return nameable(t.Elem(), home, seen)
	case *types.Map:
		if err := nameable(t.Key(), home, seen); err != nil {
			return err
		}
		return nameable(t.Elem(), home, seen)
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			f := t.Field(i)
			if !f.Exported() && f.Pkg() != home {
				return fmt.Errorf("struct field %s is unexported in package %s", f.Name(), f.Pkg().Path())
			}
			if err := nameable(f.Type(), home, seen); err != nil {
				return err
			}
		}
	case *types.Signature:
		for _, tuple := range []*types.Tuple{t.Params(), t.Results()} {
			for i := 0; i < tuple.Len(); i++ {
				if err := nameable(tuple.At(i).Type(), home, seen); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
