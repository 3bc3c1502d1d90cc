// Package scan finds declarations carrying the evaluation directive.
//
// Matching is textual: a directive comment //<namespace>:<name> in a
// declaration's doc comment designates it. The directive's namespace is not
// resolved, so any namespace equal to the configured one or ending in
// "/<namespace>" matches.
package scan

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"
	"unicode"
)

// Marker identifies the directive.
type Marker struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Name      string `yaml:"name" json:"name"`
}

// DefaultMarker is //bake:eval.
var DefaultMarker = Marker{Namespace: "bake", Name: "eval"}

func (m Marker) String() string {
	return "//" + m.Namespace + ":" + m.Name
}

// Kind of a designated declaration.
type Kind int

const (
	KindFunc Kind = iota // func or method
	KindVar
)

func (k Kind) String() string {
	if k == KindVar {
		return "var"
	}
	return "func"
}

// Options carried by the directive.
type Options struct {
	Deserialize bool `json:"deserialize"`
}

// Member is one designated declaration.
type Member struct {
	Kind  Kind
	Name  string
	Ident *ast.Ident

	// Func is set for KindFunc; Recv is its receiver type expression, nil
	// for package-level functions.
	Func *ast.FuncDecl
	Recv ast.Expr

	// Decl and Spec are set for KindVar.
	Decl *ast.GenDecl
	Spec *ast.ValueSpec

	File      *ast.File
	Directive *ast.Comment
	Options   Options

	// Unknown lists directive options that were not recognised.
	Unknown []string
}

// Pos is the position of the declared name.
func (m Member) Pos() token.Pos {
	return m.Ident.Pos()
}

// Walk calls fn for every designated top-level declaration of files, in
// declaration order within each file and file order across files.
func Walk(files []*ast.File, marker Marker, fn func(Member)) {
	for _, f := range files {
		for _, decl := range f.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				c, opts, unknown, ok := find(d.Doc, marker)
				if !ok {
					continue
				}
				m := Member{
					Kind:      KindFunc,
					Name:      d.Name.Name,
					Ident:     d.Name,
					Func:      d,
					File:      f,
					Directive: c,
					Options:   opts,
					Unknown:   unknown,
				}
				if d.Recv != nil && len(d.Recv.List) > 0 {
					m.Recv = d.Recv.List[0].Type
				}
				fn(m)
			case *ast.GenDecl:
				if d.Tok != token.VAR {
					continue
				}
				walkVars(f, d, marker, fn)
			}
		}
	}
}

func walkVars(f *ast.File, d *ast.GenDecl, marker Marker, fn func(Member)) {
	gc, gopts, gunknown, grouped := find(d.Doc, marker)
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		c, opts, unknown, ok := find(vs.Doc, marker)
		if !ok {
			if !grouped {
				continue
			}
			c, opts, unknown = gc, gopts, gunknown
		}
		for _, name := range vs.Names {
			fn(Member{
				Kind:      KindVar,
				Name:      name.Name,
				Ident:     name,
				Decl:      d,
				Spec:      vs,
				File:      f,
				Directive: c,
				Options:   opts,
				Unknown:   unknown,
			})
		}
	}
}

func find(doc *ast.CommentGroup, marker Marker) (*ast.Comment, Options, []string, bool) {
	if doc == nil {
		return nil, Options{}, nil, false
	}
	for _, c := range doc.List {
		if opts, unknown, ok := ParseDirective(c.Text, marker); ok {
			return c, opts, unknown, true
		}
	}
	return nil, Options{}, nil, false
}

// ParseDirective reports whether the comment text is the marker directive
// and returns its options. Options are separated by white space or commas:
// "deserialize" and "deserialize=<bool>" are recognised; anything else is
// returned in unknown.
func ParseDirective(text string, marker Marker) (opts Options, unknown []string, ok bool) {
	rest, found := strings.CutPrefix(text, "//")
	if !found || rest == "" || rest[0] == ' ' {
		return Options{}, nil, false
	}
	head, args := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		head, args = rest[:i], rest[i:]
	}
	i := strings.LastIndexByte(head, ':')
	if i < 0 {
		return Options{}, nil, false
	}
	ns, name := head[:i], head[i+1:]
	if name != marker.Name || (ns != marker.Namespace && !strings.HasSuffix(ns, "/"+marker.Namespace)) {
		return Options{}, nil, false
	}

	fields := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	for _, f := range fields {
		key, val, hasVal := strings.Cut(f, "=")
		if key != "deserialize" {
			unknown = append(unknown, f)
			continue
		}
		if !hasVal {
			opts.Deserialize = true
			continue
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			unknown = append(unknown, f)
			continue
		}
		opts.Deserialize = b
	}
	return opts, unknown, true
}
