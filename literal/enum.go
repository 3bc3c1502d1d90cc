package literal

import (
	"math/bits"
	"reflect"
	"sort"
	"strings"
)

// Const is one constant declared for a named basic type. Value holds the
// typed constant itself, e.g. time.Monday.
type Const struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Value any    `json:"-"`
}

type enumTable struct {
	consts []Const
	values []reflect.Value
}

// RegisterEnum teaches the encoder the declared constants of named types.
// Values of a registered type are written by constant name instead of as
// conversions. Constants are grouped by the dynamic type of their Value.
func (e *Encoder) RegisterEnum(consts ...Const) {
	for _, c := range consts {
		rv := reflect.ValueOf(c.Value)
		if !rv.IsValid() || !isBasic(rv.Type()) {
			continue
		}
		tab, ok := e.enums[rv.Type()]
		if !ok {
			tab = &enumTable{}
			e.enums[rv.Type()] = tab
		}
		tab.consts = append(tab.consts, c)
		tab.values = append(tab.values, rv)
	}
}

// enumExpr renders v by name. An exact match wins; integer values of flag
// tables that are a union of declared constants become an OR of them;
// anything else is a conversion of the raw value.
func (e *Encoder) enumExpr(tab *enumTable, v reflect.Value) (string, error) {
	for i, c := range tab.consts {
		if sameValue(tab.values[i], v) {
			return e.constName(c, v.Type()), nil
		}
	}
	if isInteger(v.Kind()) && tab.flags() {
		if picked, ok := decompose(tab, toBits(v)); ok {
			names := make([]string, len(picked))
			for i, idx := range picked {
				names[i] = e.constName(tab.consts[idx], v.Type())
			}
			return strings.Join(names, " | "), nil
		}
	}
	lit, err := e.encode(v.Convert(underlying(v.Type())), modeTyped)
	if err != nil {
		return "", err
	}
	return e.convert(v.Type(), lit)
}

// flags reports whether the table looks like a set of bit flags: at least
// two of its constants are single bits. Tables such as time.Duration don't
// qualify and fall back to conversions.
func (tab *enumTable) flags() bool {
	n := 0
	for _, v := range tab.values {
		if b := toBits(v); b != 0 && b&(b-1) == 0 {
			n++
		}
	}
	return n >= 2
}

func (e *Encoder) constName(c Const, t reflect.Type) string {
	name := guessName(c.Path)
	if c.Path == t.PkgPath() {
		name = packageName(t)
	}
	return e.qualify(c.Path, name, c.Name)
}

// decompose covers bits with declared non-zero constants, preferring the
// constants with the most bits set. The chosen indexes come back in
// declaration order.
func decompose(tab *enumTable, value uint64) ([]int, bool) {
	if value == 0 {
		return nil, false
	}
	var candidates []int
	for i, rv := range tab.values {
		c := toBits(rv)
		if c != 0 && c&value == c {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return bits.OnesCount64(toBits(tab.values[candidates[a]])) > bits.OnesCount64(toBits(tab.values[candidates[b]]))
	})

	remaining := value
	var picked []int
	for _, i := range candidates {
		c := toBits(tab.values[i])
		if c&remaining == 0 {
			continue
		}
		picked = append(picked, i)
		remaining &^= c
	}
	if remaining != 0 || len(picked) < 2 {
		return nil, false
	}
	sort.Ints(picked)
	return picked, true
}

func sameValue(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() == b.Float()
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.String:
		return a.String() == b.String()
	case reflect.Bool:
		return a.Bool() == b.Bool()
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func toBits(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	}
	return 0
}

// underlying returns the predeclared type with t's kind.
func underlying(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Bool:
		return reflect.TypeFor[bool]()
	case reflect.Int:
		return reflect.TypeFor[int]()
	case reflect.Int8:
		return reflect.TypeFor[int8]()
	case reflect.Int16:
		return reflect.TypeFor[int16]()
	case reflect.Int32:
		return reflect.TypeFor[int32]()
	case reflect.Int64:
		return reflect.TypeFor[int64]()
	case reflect.Uint:
		return reflect.TypeFor[uint]()
	case reflect.Uint8:
		return reflect.TypeFor[uint8]()
	case reflect.Uint16:
		return reflect.TypeFor[uint16]()
	case reflect.Uint32:
		return reflect.TypeFor[uint32]()
	case reflect.Uint64:
		return reflect.TypeFor[uint64]()
	case reflect.Uintptr:
		return reflect.TypeFor[uintptr]()
	case reflect.Float32:
		return reflect.TypeFor[float32]()
	case reflect.Float64:
		return reflect.TypeFor[float64]()
	case reflect.Complex64:
		return reflect.TypeFor[complex64]()
	case reflect.Complex128:
		return reflect.TypeFor[complex128]()
	case reflect.String:
		return reflect.TypeFor[string]()
	}
	return t
}
