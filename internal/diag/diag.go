// Package diag defines the diagnostics surface of a bake pass.
//
// Every failure the pipeline detects is reported as a Diagnostic to a Sink.
// Per-member failures carry the position of the offending declaration;
// fatal failures (BAKE0000, BAKE0010) abort the whole pass.
package diag

import (
	"fmt"
	"go/token"
	"sync"
)

// Diagnostic codes reported by the pipeline.
const (
	CodeCompilationFailed = "BAKE0000" // secondary build failed (fatal)
	CodeBinding           = "BAKE0001" // no invocable member matches the declaration
	CodeNonStatic         = "BAKE0002" // member has a receiver
	CodeParameterized     = "BAKE0003" // member declares parameters
	CodeGeneric           = "BAKE0004" // member or its receiver has type parameters
	CodeLiteral           = "BAKE0005" // value has no literal form
	CodeBlob              = "BAKE0006" // value cannot be gob encoded
	CodeResultShape       = "BAKE0007" // results are not (), (T) or (T, error)
	CodeUnguarded         = "BAKE0008" // declaration also compiles without the feature tag
	CodeUnknownOption     = "BAKE0009" // directive carries an unrecognised option
	CodeInvocationFault   = "BAKE0010" // member panicked or returned an error (fatal)
	CodeFileCollision     = "BAKE0011" // output file name differs from another only in case
)

// Categories group codes the same way the CLI prints them.
const (
	CategoryCompilation   = "Compilation"
	CategoryReflection    = "Reflection"
	CategorySerialization = "Serialization"
	CategoryInvocation    = "Invocation"
	CategoryDirective     = "Directive"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is one structured failure report.
type Diagnostic struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Category string         `json:"category"`
	Severity Severity       `json:"severity"`
	Pos      token.Position `json:"pos"`
}

// New builds an error-severity diagnostic.
func New(code, category string, pos token.Position, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Category: category,
		Severity: SeverityError,
		Pos:      pos,
	}
}

// Fatal reports whether the code aborts the whole pass.
func Fatal(code string) bool {
	return code == CodeCompilationFailed || code == CodeInvocationFault
}

// CategoryOf returns the category a pipeline code belongs to.
// Codes passed through from the go toolchain are reported as Compilation.
func CategoryOf(code string) string {
	switch code {
	case CodeBinding, CodeNonStatic, CodeParameterized, CodeGeneric, CodeResultShape:
		return CategoryReflection
	case CodeLiteral, CodeBlob:
		return CategorySerialization
	case CodeInvocationFault:
		return CategoryInvocation
	case CodeUnguarded, CodeUnknownOption, CodeFileCollision:
		return CategoryDirective
	default:
		return CategoryCompilation
	}
}

// String formats the diagnostic like a compiler message:
//
//	demo/values.go:12:6: error BAKE0002: method or variable must be static
func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s %s: %s", d.Pos, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
}

// Error makes a Diagnostic usable as an error value.
func (d Diagnostic) Error() string {
	return d.String()
}

// Sink receives diagnostics. Implementations must be safe for concurrent use;
// secondary builds report from several goroutines.
type Sink interface {
	Report(Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) {
	f(d)
}

// Collector is a Sink that keeps every diagnostic in report order.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// Diagnostics returns a copy of everything reported so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Errors counts error-severity diagnostics.
func (c *Collector) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Codes returns the code of every diagnostic in report order.
func (c *Collector) Codes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := make([]string, len(c.items))
	for i, d := range c.items {
		codes[i] = d.Code
	}
	return codes
}

// Tee fans a diagnostic out to several sinks.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}
