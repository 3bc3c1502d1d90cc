package stage

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"text/template"

	"golang.org/x/tools/go/packages"

	"github.com/roach88/bake/internal/bind"
	"github.com/roach88/bake/staging"
)

var registerTmpl = template.Must(template.New("register").Parse(`// Code generated by bake. DO NOT EDIT.

package {{.Package}}

import (
{{- if .Enums}}
	bakeliteral "github.com/roach88/bake/literal"
{{- end}}
	bakestaging "github.com/roach88/bake/staging"
{{- range .Imports}}
	{{.Alias}} {{printf "%q" .Path}}
{{- end}}
)

func init() {
	bakestaging.Register(func(bakeR *bakestaging.Registry) {
{{- range .Lines}}
		{{.}}
{{- end}}
{{- range .Enums}}
		bakeR.Enum(bakeliteral.Const{Path: {{printf "%q" .Path}}, Name: {{printf "%q" .Name}}, Value: {{.Ref}}})
{{- end}}
	})
}
`))

var driverTmpl = template.Must(template.New("driver").Parse(`// Code generated by bake. DO NOT EDIT.

package main

import (
	bakestaging "github.com/roach88/bake/staging"
{{range .}}
	_ {{printf "%q" .}}
{{- end}}
)

func main() {
	bakestaging.Main()
}
`))

type driverImport struct {
	Alias string
	Path  string
}

type driverEnum struct {
	Path string
	Name string
	Ref  string
}

// RenderRegistration returns the file added to pkg that registers symbols
// and enum constants with the artifact. name is the package clause to use,
// which differs from pkg.Name when a main package is compiled as a library.
func RenderRegistration(pkg *packages.Package, name string, symbols []*bind.Symbol, enums []bind.EnumConst) ([]byte, error) {
	data := struct {
		Package string
		Imports []driverImport
		Lines   []string
		Enums   []driverEnum
	}{Package: name}

	for _, s := range symbols {
		data.Lines = append(data.Lines, registration(s))
	}

	aliases := map[string]string{}
	for _, e := range enums {
		ref := e.Name
		if e.Path != pkg.PkgPath {
			alias, ok := aliases[e.Path]
			if !ok {
				alias = "bakeenum" + strconv.Itoa(len(aliases))
				aliases[e.Path] = alias
				data.Imports = append(data.Imports, driverImport{Alias: alias, Path: e.Path})
			}
			ref = alias + "." + e.Name
		}
		data.Enums = append(data.Enums, driverEnum{Path: e.Path, Name: e.Name, Ref: ref})
	}
	sort.Slice(data.Imports, func(i, j int) bool { return data.Imports[i].Path < data.Imports[j].Path })

	return render(registerTmpl, data, pkg.PkgPath)
}

// RenderDriver returns the main package of the artifact. It imports every
// package with registrations; Go initializes each of them once.
func RenderDriver(pkgPaths []string) ([]byte, error) {
	paths := append([]string{}, pkgPaths...)
	sort.Strings(paths)
	return render(driverTmpl, paths, "driver")
}

func render(tmpl *template.Template, data any, what string) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s for %s: %w", tmpl.Name(), what, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s for %s: %w\n%s", tmpl.Name(), what, err, buf.Bytes())
	}
	return src, nil
}

// registration is the statement registering s. Generic members can't be
// referenced without instantiation, so only their shape is recorded.
func registration(s *bind.Symbol) string {
	key := strconv.Quote(s.Key)
	switch {
	case s.Generic:
		return fmt.Sprintf("bakeR.Generic(%s, bakestaging.%s, %d)", key, kindName(s.Kind), s.Params)
	case s.Kind == staging.KindVar:
		return fmt.Sprintf("bakeR.Var(%s, &%s)", key, s.Member.Name)
	case s.Kind == staging.KindMethod:
		recv := s.Recv
		if recv != "" && recv[0] == '*' {
			recv = "(" + recv + ")"
		}
		return fmt.Sprintf("bakeR.Method(%s, %s.%s)", key, recv, s.Member.Name)
	default:
		return fmt.Sprintf("bakeR.Func(%s, %s)", key, s.Member.Name)
	}
}

func kindName(k staging.Kind) string {
	switch k {
	case staging.KindVar:
		return "KindVar"
	case staging.KindMethod:
		return "KindMethod"
	default:
		return "KindFunc"
	}
}
