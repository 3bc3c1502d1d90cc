// Package synth writes the replacement declarations of a bake pass.
package synth

import (
	"bytes"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/bake/literal"
)

// Header marks files owned by bake. Files carrying it are replaced or
// removed by later passes.
const Header = "// Code generated by bake. DO NOT EDIT."

// Decl describes one replacement declaration.
type Decl struct {
	Package string // package clause of the original file
	Name    string
	Var     bool

	// TypeExpr is the declared type as spelled in the package.
	TypeExpr  string
	WithError bool

	// Exactly one of Expr and Body is set. Body holds statements that
	// declare literal.BlobVar.
	Expr string
	Body string

	Imports []literal.Import

	// Constraint is the //go:build expression, without the prefix.
	Constraint string
}

// FileName returns the name of the file holding the declaration of name.
// The _gen suffix keeps GOOS, GOARCH and _test suffixes out of play.
func FileName(name string) string {
	return "bake_" + norm.NFC.String(name) + "_gen.go"
}

// FoldedName is FileName(name) under Unicode case folding. Two members whose
// folded names match can't both have a file: the go command rejects
// packages with file names differing only in case.
func FoldedName(name string) string {
	return cases.Fold().String(FileName(name))
}

// Render returns the gofmt'ed source of the file for d.
func Render(d Decl) ([]byte, error) {
	if (d.Expr == "") == (d.Body == "") {
		return nil, fmt.Errorf("synth %s: exactly one of Expr and Body must be set", d.Name)
	}

	var b strings.Builder
	b.WriteString(Header + "\n\n")
	if d.Constraint != "" {
		b.WriteString("//go:build " + d.Constraint + "\n\n")
	}
	fmt.Fprintf(&b, "package %s\n\n", d.Package)
	if len(d.Imports) > 0 {
		b.WriteString("import (\n")
		for _, imp := range d.Imports {
			if stdlib(imp.Path) && imp.Name == path.Base(imp.Path) {
				fmt.Fprintf(&b, "\t%q\n", imp.Path)
			} else {
				fmt.Fprintf(&b, "\t%s %q\n", imp.Name, imp.Path)
			}
		}
		b.WriteString(")\n\n")
	}

	ret := literal.BlobVar
	if d.Expr != "" {
		ret = d.Expr
	}
	if d.WithError {
		ret += ", nil"
	}

	switch {
	case d.Var && d.Expr != "":
		fmt.Fprintf(&b, "var %s %s = %s\n", d.Name, d.TypeExpr, d.Expr)
	case d.Var:
		fmt.Fprintf(&b, "var %s = func() %s {\n%s\nreturn %s\n}()\n", d.Name, d.TypeExpr, d.Body, literal.BlobVar)
	case d.Expr != "":
		fmt.Fprintf(&b, "func %s() %s {\nreturn %s\n}\n", d.Name, results(d), ret)
	default:
		fmt.Fprintf(&b, "func %s() %s {\n%s\nreturn %s\n}\n", d.Name, results(d), d.Body, ret)
	}

	return tidy(d.Name, b.String())
}

// stdlib reports whether p is a standard library path. Those packages are
// named after their last element; any other package may not be, so its
// import always carries the name the expression uses.
func stdlib(p string) bool {
	first, _, _ := strings.Cut(p, "/")
	return !strings.Contains(first, ".")
}

func results(d Decl) string {
	if d.WithError {
		return "(" + d.TypeExpr + ", error)"
	}
	return d.TypeExpr
}

// tidy drops unused imports and formats the file.
func tidy(name, src string) ([]byte, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, FileName(name), src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("synth %s: generated source does not parse: %w", name, err)
	}
	for _, spec := range f.Imports {
		p := strings.Trim(spec.Path.Value, `"`)
		if astutil.UsesImport(f, p) {
			continue
		}
		local := ""
		if spec.Name != nil {
			local = spec.Name.Name
		}
		astutil.DeleteNamedImport(fset, f, local, p)
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, fmt.Errorf("synth %s: format: %w", name, err)
	}
	return buf.Bytes(), nil
}
