package literal

import (
	"fmt"
	"go/token"
	"reflect"
	"strconv"
	"strings"
)

var (
	boolType       = reflect.TypeFor[bool]()
	intType        = reflect.TypeFor[int]()
	byteType       = reflect.TypeFor[byte]()
	float64Type    = reflect.TypeFor[float64]()
	complex128Type = reflect.TypeFor[complex128]()
	stringType     = reflect.TypeFor[string]()
)

// TypeName renders t as it must be spelled inside the encoder's package,
// recording the imports it needs.
func (e *Encoder) TypeName(t reflect.Type) (string, error) {
	if t == nil {
		return "", unsupported(t, "nil type")
	}
	if t == byteType {
		return "byte", nil
	}
	if t.Name() != "" {
		return e.namedType(t)
	}
	switch t.Kind() {
	case reflect.Slice:
		elem, err := e.TypeName(t.Elem())
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case reflect.Array:
		elem, err := e.TypeName(t.Elem())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%d]%s", t.Len(), elem), nil
	case reflect.Map:
		key, err := e.TypeName(t.Key())
		if err != nil {
			return "", err
		}
		elem, err := e.TypeName(t.Elem())
		if err != nil {
			return "", err
		}
		return "map[" + key + "]" + elem, nil
	case reflect.Pointer:
		elem, err := e.TypeName(t.Elem())
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case reflect.Struct:
		return e.structType(t)
	case reflect.Interface:
		return e.interfaceType(t)
	case reflect.Func:
		sig, err := e.signature(t)
		if err != nil {
			return "", err
		}
		return "func" + sig, nil
	case reflect.Chan:
		elem, err := e.TypeName(t.Elem())
		if err != nil {
			return "", err
		}
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + elem, nil
		case reflect.SendDir:
			return "chan<- " + elem, nil
		default:
			return "chan " + elem, nil
		}
	}
	return "", unsupported(t, "type can't be spelled in source")
}

func (e *Encoder) namedType(t reflect.Type) (string, error) {
	if t.PkgPath() == "" {
		// predeclared: int, string, error, ...
		return t.Name(), nil
	}
	base, args, generic := strings.Cut(t.Name(), "[")
	if t.PkgPath() != e.pkgPath && !token.IsExported(base) {
		return "", unsupported(t, "unexported type %s of package %s", base, t.PkgPath())
	}
	name := e.qualify(t.PkgPath(), packageName(t), base)
	if !generic {
		return name, nil
	}
	list, err := e.qualifyTypeList(t, strings.TrimSuffix(args, "]"))
	if err != nil {
		return "", err
	}
	return name + "[" + list + "]", nil
}

// packageName extracts the declaring package's name from t.String(),
// which reflect renders as "name.Type".
func packageName(t reflect.Type) string {
	s := t.String()
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i]
	}
	return ""
}

func (e *Encoder) qualify(path, name, ident string) string {
	if path == e.pkgPath {
		return ident
	}
	return e.imports.Use(path, name) + "." + ident
}

// qualifyTypeList rewrites the type arguments of an instantiated generic
// type. reflect spells them with full import paths
// ("int,example.com/shop/model.Item"); every path-qualified identifier is
// replaced by its local form.
func (e *Encoder) qualifyTypeList(t reflect.Type, s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isTypeTokenByte(c):
			j := i
			for j < len(s) && (isTypeTokenByte(s[j]) || s[j] == '.' || s[j] == '/' || s[j] == '-' || s[j] == '~') {
				j++
			}
			tok, err := e.qualifyToken(t, s[i:j])
			if err != nil {
				return "", err
			}
			b.WriteString(tok)
			i = j
		case c == ',':
			b.WriteString(", ")
			i++
			for i < len(s) && s[i] == ' ' {
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func (e *Encoder) qualifyToken(t reflect.Type, tok string) (string, error) {
	i := strings.LastIndexByte(tok, '.')
	if i < 0 {
		return tok, nil
	}
	path, ident := tok[:i], tok[i+1:]
	if path == e.pkgPath {
		return ident, nil
	}
	if !token.IsExported(ident) {
		return "", unsupported(t, "type argument %s is unexported", tok)
	}
	return e.imports.Use(path, guessName(path)) + "." + ident, nil
}

func isTypeTokenByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

func (e *Encoder) structType(t reflect.Type) (string, error) {
	if t.NumField() == 0 {
		return "struct{}", nil
	}
	fields := make([]string, t.NumField())
	for i := range fields {
		f := t.Field(i)
		if f.PkgPath != "" && f.PkgPath != e.pkgPath {
			return "", unsupported(t, "unexported field %s of package %s", f.Name, f.PkgPath)
		}
		typ, err := e.TypeName(f.Type)
		if err != nil {
			return "", err
		}
		field := f.Name + " " + typ
		if f.Anonymous {
			field = typ
		}
		if f.Tag != "" {
			if strings.Contains(string(f.Tag), "`") {
				field += " " + strconv.Quote(string(f.Tag))
			} else {
				field += " `" + string(f.Tag) + "`"
			}
		}
		fields[i] = field
	}
	return "struct{ " + strings.Join(fields, "; ") + " }", nil
}

func (e *Encoder) interfaceType(t reflect.Type) (string, error) {
	if t.NumMethod() == 0 {
		return "any", nil
	}
	methods := make([]string, t.NumMethod())
	for i := range methods {
		m := t.Method(i)
		if m.PkgPath != "" && m.PkgPath != e.pkgPath {
			return "", unsupported(t, "unexported method %s of package %s", m.Name, m.PkgPath)
		}
		sig, err := e.signature(m.Type)
		if err != nil {
			return "", err
		}
		methods[i] = m.Name + sig
	}
	return "interface{ " + strings.Join(methods, "; ") + " }", nil
}

// signature renders a func type without the func keyword: "(int, ...string) (bool, error)".
func (e *Encoder) signature(t reflect.Type) (string, error) {
	params := make([]string, t.NumIn())
	for i := range params {
		in := t.In(i)
		if t.IsVariadic() && i == t.NumIn()-1 {
			elem, err := e.TypeName(in.Elem())
			if err != nil {
				return "", err
			}
			params[i] = "..." + elem
			continue
		}
		p, err := e.TypeName(in)
		if err != nil {
			return "", err
		}
		params[i] = p
	}
	results := make([]string, t.NumOut())
	for i := range results {
		r, err := e.TypeName(t.Out(i))
		if err != nil {
			return "", err
		}
		results[i] = r
	}
	sig := "(" + strings.Join(params, ", ") + ")"
	switch len(results) {
	case 0:
	case 1:
		sig += " " + results[0]
	default:
		sig += " (" + strings.Join(results, ", ") + ")"
	}
	return sig, nil
}
