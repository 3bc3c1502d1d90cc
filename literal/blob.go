package literal

import (
	"bytes"
	"encoding"
	"encoding/gob"
	"fmt"
	"math"
	"reflect"
)

// BlobVar is the variable the decoding statements of a Blob declare.
const BlobVar = "value"

// Blob is a gob payload plus the statements that decode it.
type Blob struct {
	Data []byte

	// Stmts declares BlobVar with the declared type and fills it from Data,
	// panicking if decoding fails. The caller adds the return.
	Stmts string
}

var (
	gobEncoderType        = reflect.TypeFor[gob.GobEncoder]()
	gobDecoderType        = reflect.TypeFor[gob.GobDecoder]()
	binaryMarshalerType   = reflect.TypeFor[encoding.BinaryMarshaler]()
	binaryUnmarshalerType = reflect.TypeFor[encoding.BinaryUnmarshaler]()
	textMarshalerType     = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType   = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Blob serializes v with encoding/gob and returns statements that rebuild
// it as a value of the declared type at load time.
func (e *Encoder) Blob(v reflect.Value, declared reflect.Type) (*Blob, error) {
	if !v.IsValid() {
		return nil, &SerializationError{Type: typeString(declared), Reason: "nil value"}
	}
	if declared == nil {
		declared = v.Type()
	}
	if reason := Serializable(declared); reason != "" {
		return nil, &SerializationError{Type: typeString(declared), Reason: reason}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).EncodeValue(v); err != nil {
		return nil, &SerializationError{Type: typeString(declared), Reason: "gob encoding failed", Err: err}
	}
	data := buf.Bytes()

	back := reflect.New(declared)
	if err := gob.NewDecoder(bytes.NewReader(data)).DecodeValue(back); err != nil {
		return nil, &SerializationError{Type: typeString(declared), Reason: "gob decoding failed", Err: err}
	}
	if diff := lossy(v, back.Elem(), "value"); diff != "" {
		return nil, &SerializationError{Type: typeString(declared), Reason: "gob round trip changes " + diff}
	}

	typ, err := e.TypeName(declared)
	if err != nil {
		return nil, &SerializationError{Type: typeString(declared), Reason: "declared type can't be spelled", Err: err}
	}
	lit, err := e.encode(reflect.ValueOf(data), modeTyped)
	if err != nil {
		return nil, &SerializationError{Type: typeString(declared), Reason: "payload", Err: err}
	}
	gobName := e.imports.Use("encoding/gob", "gob")
	bytesName := e.imports.Use("bytes", "bytes")
	stmts := fmt.Sprintf("var %s %s\nif err := %s.NewDecoder(%s.NewReader(%s)).Decode(&%s); err != nil {\npanic(err)\n}",
		BlobVar, typ, gobName, bytesName, lit, BlobVar)
	return &Blob{Data: data, Stmts: stmts}, nil
}

// Serializable reports why values of t can't survive a gob round trip, or
// "" when they can. Types implementing gob's or encoding's marshaler pairs
// are trusted; otherwise unexported struct fields, funcs, channels and
// interfaces (which need gob.Register) are rejected.
func Serializable(t reflect.Type) string {
	if t == nil {
		return "nil type"
	}
	if t.Kind() == reflect.Interface {
		return fmt.Sprintf("interface type %s needs gob.Register for every dynamic type", t)
	}
	return gobUnsafe(t, map[reflect.Type]bool{})
}

func gobUnsafe(t reflect.Type, seen map[reflect.Type]bool) string {
	if seen[t] {
		return ""
	}
	seen[t] = true
	if marshals(t) {
		return ""
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%s values can't be gob encoded", t)
	case reflect.Interface:
		return fmt.Sprintf("interface type %s needs gob.Register for every dynamic type", t)
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return gobUnsafe(t.Elem(), seen)
	case reflect.Map:
		if reason := gobUnsafe(t.Key(), seen); reason != "" {
			return reason
		}
		return gobUnsafe(t.Elem(), seen)
	case reflect.Struct:
		if t.NumField() == 0 {
			return fmt.Sprintf("struct %s has no exported fields", t)
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				return fmt.Sprintf("unexported field %s.%s is dropped by gob", t, f.Name)
			}
			if reason := gobUnsafe(f.Type, seen); reason != "" {
				return reason
			}
		}
	}
	return ""
}

func marshals(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	implements := func(iface reflect.Type) bool {
		return t.Implements(iface) || pt.Implements(iface)
	}
	switch {
	case implements(gobEncoderType):
		return pt.Implements(gobDecoderType)
	case implements(binaryMarshalerType):
		return pt.Implements(binaryUnmarshalerType)
	case implements(textMarshalerType):
		return pt.Implements(textUnmarshalerType)
	}
	return false
}

// lossy compares a value with its gob round trip and describes the first
// difference, or returns "". Gob drops empty slices and maps, and zero
// values behind pointers, so those come back nil. Types with their own
// marshalers are trusted.
func lossy(orig, back reflect.Value, at string) string {
	t := orig.Type()
	if marshals(t) {
		return ""
	}
	switch t.Kind() {
	case reflect.Pointer:
		if orig.IsNil() != back.IsNil() {
			return at + ": pointer to a zero value decodes as nil"
		}
		if orig.IsNil() {
			return ""
		}
		return lossy(orig.Elem(), back.Elem(), "*"+at)
	case reflect.Slice, reflect.Map:
		if orig.IsNil() != back.IsNil() {
			return fmt.Sprintf("%s: empty %s decodes as nil", at, t.Kind())
		}
		if orig.Len() != back.Len() {
			return fmt.Sprintf("%s: length %d decodes as %d", at, orig.Len(), back.Len())
		}
		if t.Kind() == reflect.Map {
			iter := orig.MapRange()
			for iter.Next() {
				b := back.MapIndex(iter.Key())
				if !b.IsValid() {
					return fmt.Sprintf("%s: key %v is lost", at, iter.Key())
				}
				if diff := lossy(iter.Value(), b, fmt.Sprintf("%s[%v]", at, iter.Key())); diff != "" {
					return diff
				}
			}
			return ""
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < orig.Len(); i++ {
			if diff := lossy(orig.Index(i), back.Index(i), fmt.Sprintf("%s[%d]", at, i)); diff != "" {
				return diff
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if diff := lossy(orig.Field(i), back.Field(i), at+"."+t.Field(i).Name); diff != "" {
				return diff
			}
		}
	case reflect.Float32, reflect.Float64:
		if math.Float64bits(orig.Float()) != math.Float64bits(back.Float()) {
			return fmt.Sprintf("%s: %v decodes as %v", at, orig.Float(), back.Float())
		}
	case reflect.Complex64, reflect.Complex128:
		o, b := orig.Complex(), back.Complex()
		if math.Float64bits(real(o)) != math.Float64bits(real(b)) || math.Float64bits(imag(o)) != math.Float64bits(imag(b)) {
			return fmt.Sprintf("%s: %v decodes as %v", at, o, b)
		}
	default:
		if !orig.Equal(back) {
			return fmt.Sprintf("%s: %v decodes as %v", at, orig, back)
		}
	}
	return ""
}
