package bind

import (
	"go/types"
	"sort"
)

// EnumConst is a constant declared for a named basic type.
type EnumConst struct {
	Path string // declaring package
	Name string
	Type *types.Named
}

// Enums collects the constants declared for every named basic type reachable
// from roots. Only the home package and packages it imports directly are
// considered, so the driver can reference the constants without new
// dependencies; foreign packages contribute exported constants only.
func Enums(home *types.Package, roots []types.Type) []EnumConst {
	direct := map[*types.Package]bool{home: true}
	for _, p := range home.Imports() {
		direct[p] = true
	}

	var named []*types.Named
	seen := map[types.Type]bool{}
	var walk func(t types.Type)
	walk = func(t types.Type) {
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		switch t := t.(type) {
		case *types.Alias:
			walk(types.Unalias(t))
		case *types.Named:
			if _, ok := t.Underlying().(*types.Basic); ok {
				named = append(named, t)
				return
			}
			args := t.TypeArgs()
			for i := 0; i < args.Len(); i++ {
				walk(args.At(i))
			}
			walk(t.Underlying())
		case *types.Pointer:
			walk(t.Elem())
		case *types.Slice:
			walk(t.Elem())
		case *types.Array:
			walk(t.Elem())
		case *types.Map:
			walk(t.Key())
			walk(t.Elem())
		case *types.Struct:
			for i := 0; i < t.NumFields(); i++ {
				walk(t.Field(i).Type())
			}
		}
	}
	for _, r := range roots {
		walk(r)
	}

	var out []EnumConst
	for _, n := range named {
		pkg := n.Obj().Pkg()
		if pkg == nil || !direct[pkg] {
			continue
		}
		var consts []*types.Const
		scope := pkg.Scope()
		for _, name := range scope.Names() {
			c, ok := scope.Lookup(name).(*types.Const)
			if !ok || !types.Identical(c.Type(), n) {
				continue
			}
			if pkg != home && !c.Exported() {
				continue
			}
			consts = append(consts, c)
		}
		sort.SliceStable(consts, func(i, j int) bool { return consts[i].Pos() < consts[j].Pos() })
		for _, c := range consts {
			out = append(out, EnumConst{Path: pkg.Path(), Name: c.Name(), Type: n})
		}
	}
	return out
}
