package diag

import (
	"encoding/json"
	"go/token"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticString(t *testing.T) {
	pos := token.Position{Filename: "demo/values.go", Line: 12, Column: 6}
	d := New(CodeNonStatic, CategoryReflection, pos, "method or variable must be static")
	assert.Equal(t, "demo/values.go:12:6: error BAKE0002: method or variable must be static", d.String())
	assert.Equal(t, d.String(), d.Error())

	d = New(CodeCompilationFailed, CategoryCompilation, token.Position{}, "compilation failed: %d error(s)", 3)
	assert.Equal(t, "error BAKE0000: compilation failed: 3 error(s)", d.String())
}

func TestSeverityJSON(t *testing.T) {
	d := New(CodeUnknownOption, CategoryDirective, token.Position{}, "unknown option")
	d.Severity = SeverityWarning
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"severity":"warning"`)
	assert.Equal(t, "severity(9)", Severity(9).String())
}

func TestFatal(t *testing.T) {
	assert.True(t, Fatal(CodeCompilationFailed))
	assert.True(t, Fatal(CodeInvocationFault))
	for _, code := range []string{CodeBinding, CodeLiteral, CodeBlob, CodeUnguarded, CodeUnknownOption, "go/type"} {
		assert.False(t, Fatal(code), code)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := map[string]string{
		CodeCompilationFailed: CategoryCompilation,
		CodeBinding:           CategoryReflection,
		CodeNonStatic:         CategoryReflection,
		CodeParameterized:     CategoryReflection,
		CodeGeneric:           CategoryReflection,
		CodeResultShape:       CategoryReflection,
		CodeLiteral:           CategorySerialization,
		CodeBlob:              CategorySerialization,
		CodeInvocationFault:   CategoryInvocation,
		CodeUnguarded:         CategoryDirective,
		CodeUnknownOption:     CategoryDirective,
		CodeFileCollision:     CategoryDirective,
		"go/build":            CategoryCompilation,
	}
	for code, want := range tests {
		assert.Equal(t, want, CategoryOf(code), code)
	}
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	warn := New(CodeUnknownOption, CategoryDirective, token.Position{}, "w")
	warn.Severity = SeverityWarning

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(New(CodeLiteral, CategorySerialization, token.Position{}, "e"))
		}()
	}
	wg.Wait()
	c.Report(warn)

	assert.Len(t, c.Diagnostics(), 11)
	assert.Equal(t, 10, c.Errors())
	codes := c.Codes()
	assert.Equal(t, CodeUnknownOption, codes[len(codes)-1])
}

func TestTee(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	var seen []string
	sink := Tee(a, nil, b, SinkFunc(func(d Diagnostic) { seen = append(seen, d.Code) }))
	sink.Report(New(CodeBlob, CategorySerialization, token.Position{}, "x"))

	assert.Equal(t, []string{CodeBlob}, a.Codes())
	assert.Equal(t, []string{CodeBlob}, b.Codes())
	assert.Equal(t, []string{CodeBlob}, seen)
}
