package literal

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

const (
	maxLine      = 80  // composites longer than this are split over lines
	basicPerLine = 16  // basic elements per line once split
	maxDepth     = 512 // nesting limit; deeper values are reported as unsupported
)

// mode describes what the surrounding source already says about a value's type.
type mode int

const (
	// modeTyped: the context fixes the type (a typed declaration or a struct
	// field). Basic values may be untyped constants; composites spell their type.
	modeTyped mode = iota

	// modeElided: an element, key or value of a composite literal. The
	// composite's own type name may be dropped.
	modeElided

	// modeDynamic: an interface context. Every value spells out its type so
	// the dynamic type survives.
	modeDynamic
)

// Encoder renders runtime values as Go expressions valid inside one package.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	pkgPath  string
	imports  *Imports
	enums    map[reflect.Type]*enumTable
	visiting map[uintptr]bool
	depth    int
}

// NewEncoder returns an encoder producing source for the package with the
// given import path. Imports needed by the output are assigned in imports;
// a nil imports starts an empty set.
func NewEncoder(pkgPath string, imports *Imports) *Encoder {
	if imports == nil {
		imports = NewImports()
	}
	return &Encoder{
		pkgPath:  pkgPath,
		imports:  imports,
		enums:    map[reflect.Type]*enumTable{},
		visiting: map[uintptr]bool{},
	}
}

// Imports returns the import set the encoder writes into.
func (e *Encoder) Imports() *Imports {
	return e.imports
}

// Expr encodes v as the value of a declaration of type declared. When
// declared is nil or an interface, the expression carries its own type.
func (e *Encoder) Expr(v reflect.Value, declared reflect.Type) (string, error) {
	m := modeTyped
	if declared == nil || declared.Kind() == reflect.Interface {
		m = modeDynamic
	}
	return e.encode(v, m)
}

// Value encodes x as if it were declared with its own dynamic type.
func (e *Encoder) Value(x any) (string, error) {
	return e.Expr(reflect.ValueOf(x), reflect.TypeOf(x))
}

func (e *Encoder) encode(v reflect.Value, m mode) (string, error) {
	if !v.IsValid() {
		return "nil", nil
	}
	e.depth++
	defer func() { e.depth-- }()
	t := v.Type()
	if e.depth > maxDepth {
		return "", unsupported(t, "value nests deeper than %d levels", maxDepth)
	}
	if tab, ok := e.enums[t]; ok {
		return e.enumExpr(tab, v)
	}

	switch t.Kind() {
	case reflect.Bool:
		return e.basic(t, strconv.FormatBool(v.Bool()), boolType, m)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.basic(t, strconv.FormatInt(v.Int(), 10), intType, m)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return e.basic(t, strconv.FormatUint(v.Uint(), 10), nil, m)
	case reflect.Float32, reflect.Float64:
		return e.float(v, m)
	case reflect.Complex64, reflect.Complex128:
		return e.complex(v, m)
	case reflect.String:
		return e.basic(t, strconv.Quote(v.String()), stringType, m)
	case reflect.Interface:
		if v.IsNil() {
			return "nil", nil
		}
		return e.encode(v.Elem(), modeDynamic)
	case reflect.Pointer:
		return e.pointer(v, m)
	case reflect.Slice:
		if v.IsNil() {
			return e.nilValue(t, m)
		}
		return e.slice(v, m)
	case reflect.Array:
		return e.array(v, m)
	case reflect.Map:
		if v.IsNil() {
			return e.nilValue(t, m)
		}
		return e.mapLit(v, m)
	case reflect.Struct:
		return e.structLit(v, m)
	case reflect.Func, reflect.Chan:
		if v.IsNil() {
			return e.nilValue(t, m)
		}
		return "", unsupported(t, "%s values have no literal form", t.Kind())
	}
	return "", unsupported(t, "%s values have no literal form", t.Kind())
}

// basic returns lit, converted to t when an interface context would
// otherwise give the constant a different default type.
func (e *Encoder) basic(t reflect.Type, lit string, defaultType reflect.Type, m mode) (string, error) {
	if m != modeDynamic || t == defaultType {
		return lit, nil
	}
	return e.convert(t, lit)
}

func (e *Encoder) convert(t reflect.Type, lit string) (string, error) {
	name, err := e.TypeName(t)
	if err != nil {
		return "", err
	}
	return name + "(" + lit + ")", nil
}

func (e *Encoder) float(v reflect.Value, m mode) (string, error) {
	t := v.Type()
	lit, constant := e.formatFloat(v.Float(), t.Bits())
	if !constant {
		if t == float64Type {
			return lit, nil
		}
		return e.convert(t, lit)
	}
	if m == modeDynamic && (t != float64Type || !strings.ContainsAny(lit, ".eE")) {
		return e.convert(t, lit)
	}
	return lit, nil
}

// formatFloat returns the shortest literal that rounds back to f at the
// given precision. Infinities, NaN and negative zero have no constant form
// and come back as float64 calls into package math (constant == false).
func (e *Encoder) formatFloat(f float64, bits int) (lit string, constant bool) {
	switch {
	case math.IsInf(f, 1):
		return e.imports.Use("math", "math") + ".Inf(1)", false
	case math.IsInf(f, -1):
		return e.imports.Use("math", "math") + ".Inf(-1)", false
	case math.IsNaN(f):
		return e.imports.Use("math", "math") + ".NaN()", false
	case f == 0 && math.Signbit(f):
		return e.imports.Use("math", "math") + ".Copysign(0, -1)", false
	}
	return strconv.FormatFloat(f, 'g', -1, bits), true
}

func (e *Encoder) complex(v reflect.Value, m mode) (string, error) {
	t := v.Type()
	c := v.Complex()
	re, reConst := e.formatFloat(real(c), t.Bits()/2)
	im, imConst := e.formatFloat(imag(c), t.Bits()/2)
	lit := "complex(" + re + ", " + im + ")"
	if t == complex128Type {
		return lit, nil
	}
	if !reConst || !imConst || m == modeDynamic {
		return e.convert(t, lit)
	}
	return lit, nil
}

// nilValue renders a nil of type t. Interface contexts need the conversion
// so the typed nil is kept.
func (e *Encoder) nilValue(t reflect.Type, m mode) (string, error) {
	if m != modeDynamic {
		return "nil", nil
	}
	name, err := e.TypeName(t)
	if err != nil {
		return "", err
	}
	return "(" + name + ")(nil)", nil
}

func (e *Encoder) pointer(v reflect.Value, m mode) (string, error) {
	t := v.Type()
	if v.IsNil() {
		return e.nilValue(t, m)
	}
	addr := v.Pointer()
	if e.visiting[addr] {
		return "", unsupported(t, "cyclic value")
	}
	e.visiting[addr] = true
	defer delete(e.visiting, addr)

	elem := v.Elem()
	switch elem.Kind() {
	case reflect.Struct, reflect.Array:
	case reflect.Slice, reflect.Map:
		if elem.IsNil() {
			return "", unsupported(t, "pointer to a nil %s", elem.Kind())
		}
	default:
		return "", unsupported(t, "pointer to %s has no literal form", elem.Kind())
	}
	inner, err := e.encode(elem, modeTyped)
	if err != nil {
		return "", err
	}
	return "&" + inner, nil
}

func (e *Encoder) slice(v reflect.Value, m mode) (string, error) {
	t := v.Type()
	elems := make([]string, v.Len())
	for i := range elems {
		s, err := e.element(v.Index(i))
		if err != nil {
			return "", err
		}
		elems[i] = s
	}
	return e.composite(t, m, join(elems, isBasic(t.Elem())))
}

// array encodes fixed-size arrays. Nested array types are treated as one
// multi-dimensional value: the shape is measured first, the elements are
// consumed from a single row-major traversal, and the braces are rebuilt
// dimension by dimension.
func (e *Encoder) array(v reflect.Value, m mode) (string, error) {
	var dims []int
	leaf := v.Type()
	for leaf.Kind() == reflect.Array {
		dims = append(dims, leaf.Len())
		leaf = leaf.Elem()
	}

	var flat []reflect.Value
	var walk func(x reflect.Value, d int)
	walk = func(x reflect.Value, d int) {
		if d == len(dims) {
			flat = append(flat, x)
			return
		}
		for i := 0; i < x.Len(); i++ {
			walk(x.Index(i), d+1)
		}
	}
	walk(v, 0)

	lits := make([]string, len(flat))
	for i, x := range flat {
		s, err := e.element(x)
		if err != nil {
			return "", err
		}
		lits[i] = s
	}

	next := 0
	var build func(d int) string
	build = func(d int) string {
		parts := make([]string, dims[d])
		for i := range parts {
			if d == len(dims)-1 {
				parts[i] = lits[next]
				next++
			} else {
				parts[i] = build(d + 1)
			}
		}
		return join(parts, d == len(dims)-1 && isBasic(leaf))
	}
	return e.composite(v.Type(), m, build(0))
}

// element encodes a slice or array element. Bytes are written in hex.
func (e *Encoder) element(x reflect.Value) (string, error) {
	if x.Type() == byteType {
		return fmt.Sprintf("0x%02x", x.Uint()), nil
	}
	return e.encode(x, modeElided)
}

type mapEntry struct {
	key      reflect.Value
	keyLit   string
	valueLit string
}

func (e *Encoder) mapLit(v reflect.Value, m mode) (string, error) {
	entries := make([]mapEntry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := e.encode(iter.Key(), modeElided)
		if err != nil {
			return "", err
		}
		val, err := e.encode(iter.Value(), modeElided)
		if err != nil {
			return "", err
		}
		entries = append(entries, mapEntry{key: iter.Key(), keyLit: k, valueLit: val})
	}
	slices.SortFunc(entries, compareEntries)

	elems := make([]string, len(entries))
	for i, en := range entries {
		elems[i] = en.keyLit + ": " + en.valueLit
	}
	return e.composite(v.Type(), m, join(elems, false))
}

// compareEntries orders map keys by value for ordered kinds and by their
// literal text otherwise, so output is deterministic.
func compareEntries(a, b mapEntry) int {
	ka, kb := a.key, b.key
	switch ka.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(ka.Int(), kb.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(ka.Uint(), kb.Uint())
	case reflect.Float32, reflect.Float64:
		if c := cmp.Compare(ka.Float(), kb.Float()); c != 0 {
			return c
		}
	case reflect.String:
		return cmp.Compare(ka.String(), kb.String())
	}
	return strings.Compare(a.keyLit, b.keyLit)
}

func (e *Encoder) structLit(v reflect.Value, m mode) (string, error) {
	t := v.Type()
	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		if fv.IsZero() {
			continue
		}
		if f.Name == "_" {
			return "", unsupported(t, "blank field holds a non-zero value")
		}
		if !f.IsExported() && f.PkgPath != e.pkgPath {
			return "", unsupported(t, "unexported field %s of package %s", f.Name, f.PkgPath)
		}
		s, err := e.encode(fv, modeTyped)
		if err != nil {
			return "", err
		}
		fields = append(fields, f.Name+": "+s)
	}
	return e.composite(t, m, join(fields, false))
}

// composite prefixes body with the type name unless the context elides it.
func (e *Encoder) composite(t reflect.Type, m mode, body string) (string, error) {
	if m == modeElided {
		return body, nil
	}
	name, err := e.TypeName(t)
	if err != nil {
		return "", err
	}
	return name + body, nil
}

// join wraps elements in braces, on one line when short enough.
func join(elems []string, basic bool) string {
	if len(elems) == 0 {
		return "{}"
	}
	line := "{" + strings.Join(elems, ", ") + "}"
	if len(line) <= maxLine && !strings.Contains(line, "\n") {
		return line
	}
	per := 1
	if basic {
		per = basicPerLine
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i := 0; i < len(elems); i += per {
		end := min(i+per, len(elems))
		b.WriteString(strings.Join(elems[i:end], ", "))
		b.WriteString(",\n")
	}
	b.WriteString("}")
	return b.String()
}

func isBasic(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
