// Package literal re-expresses runtime values as Go source.
//
// An Encoder turns a reflect.Value into an expression that evaluates to an
// equal value when compiled inside one target package. Composite values are
// encoded recursively: slices, fixed-size and multi-dimensional arrays,
// maps, structs, pointers to composites and named constants (including
// OR'd flag combinations). Values with no literal form fail with an error
// wrapping ErrUnsupported.
//
// Blob mode is the fallback for values without a literal form: the value is
// gob encoded, the bytes are rendered through the literal path, and a short
// decoding snippet rebuilds the value at load time.
//
// The package is linked into the secondary build of a bake pass, so it only
// depends on the standard library.
package literal
