package synth

import (
	"go/ast"
	"go/build/constraint"
)

// FileConstraint returns the //go:build expression of f, or nil.
func FileConstraint(f *ast.File) (constraint.Expr, error) {
	for _, g := range f.Comments {
		if g.Pos() >= f.Package {
			break
		}
		for _, c := range g.List {
			if constraint.IsGoBuild(c.Text) {
				return constraint.Parse(c.Text)
			}
		}
	}
	return nil, nil
}

// Guarded reports whether a file with constraint expr is excluded from
// every build that lacks tag.
func Guarded(expr constraint.Expr, tag string) bool {
	if expr == nil {
		return false
	}
	for _, others := range []bool{false, true} {
		ok := expr.Eval(func(t string) bool {
			if t == tag {
				return false
			}
			return others
		})
		if ok {
			return false
		}
	}
	return true
}

// Constraint builds the constraint of a generated file: !tag, and every
// top-level conjunct of the original constraint that does not mention tag.
func Constraint(orig constraint.Expr, tag string) string {
	var expr constraint.Expr = &constraint.NotExpr{X: &constraint.TagExpr{Tag: tag}}
	for _, c := range conjuncts(orig) {
		if mentions(c, tag) {
			continue
		}
		expr = &constraint.AndExpr{X: expr, Y: c}
	}
	return expr.String()
}

func conjuncts(x constraint.Expr) []constraint.Expr {
	switch x := x.(type) {
	case nil:
		return nil
	case *constraint.AndExpr:
		return append(conjuncts(x.X), conjuncts(x.Y)...)
	default:
		return []constraint.Expr{x}
	}
}

func mentions(x constraint.Expr, tag string) bool {
	switch x := x.(type) {
	case *constraint.TagExpr:
		return x.Tag == tag
	case *constraint.NotExpr:
		return mentions(x.X, tag)
	case *constraint.AndExpr:
		return mentions(x.X, tag) || mentions(x.Y, tag)
	case *constraint.OrExpr:
		return mentions(x.X, tag) || mentions(x.Y, tag)
	}
	return false
}
