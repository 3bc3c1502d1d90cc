package synth

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bake/literal"
)

const blobBody = "var value []string\n" +
	"if err := gob.NewDecoder(bytes.NewReader([]byte{0x01, 0x02})).Decode(&value); err != nil {\n" +
	"panic(err)\n" +
	"}"

var gobImports = []literal.Import{
	{Path: "bytes", Name: "bytes"},
	{Path: "encoding/gob", Name: "gob"},
}

func TestRenderGolden(t *testing.T) {
	tests := []struct {
		name string
		decl Decl
	}{
		{"func_literal", Decl{
			Package:    "demo",
			Name:       "Answer",
			TypeExpr:   "int",
			Expr:       "42",
			Constraint: "!bake",
		}},
		{"var_literal", Decl{
			Package:    "demo",
			Name:       "Schedule",
			Var:        true,
			TypeExpr:   "map[string]time.Weekday",
			Expr:       `map[string]time.Weekday{"a": time.Monday}`,
			Imports:    []literal.Import{{Path: "time", Name: "time"}},
			Constraint: "!bake && linux",
		}},
		{"func_with_error", Decl{
			Package:    "demo",
			Name:       "Configs",
			TypeExpr:   "[]Config",
			WithError:  true,
			Expr:       "[]Config{\n{Name: \"a\", Port: 1},\n{Name: \"b\", Port: 2},\n}",
			Constraint: "!bake",
		}},
		{"func_blob", Decl{
			Package:    "demo",
			Name:       "Words",
			TypeExpr:   "[]string",
			Body:       blobBody,
			Imports:    gobImports,
			Constraint: "!bake",
		}},
		{"var_blob", Decl{
			Package:    "demo",
			Name:       "Words",
			Var:        true,
			TypeExpr:   "[]string",
			Body:       blobBody,
			Imports:    gobImports,
			Constraint: "!bake",
		}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Render(tt.decl)
			require.NoError(t, err)
			g.Assert(t, tt.name, src)
		})
	}
}

func TestRenderImports(t *testing.T) {
	src, err := Render(Decl{
		Package:  "demo",
		Name:     "Doc",
		Var:      true,
		TypeExpr: "yaml.Node",
		Expr:     "yaml.Node{Value: \"x\"}",
		Imports: []literal.Import{
			{Path: "gopkg.in/yaml.v3", Name: "yaml"},
			{Path: "math", Name: "math"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(src), `yaml "gopkg.in/yaml.v3"`)
	assert.NotContains(t, string(src), `"math"`)

	_, err = parser.ParseFile(token.NewFileSet(), "doc.go", src, 0)
	assert.NoError(t, err)
}

func TestRenderAliasesNonStandardImports(t *testing.T) {
	src, err := Render(Decl{
		Package:  "demo",
		Name:     "Span",
		TypeExpr: "units.Span",
		Expr:     "units.Span{Unit: lib.Default, Length: time.Second}",
		Imports: []literal.Import{
			{Path: "example.com/units", Name: "units"},
			{Path: "github.com/example/lib-go", Name: "lib"},
			{Path: "time", Name: "time"},
		},
	})
	require.NoError(t, err)
	s := string(src)
	assert.Contains(t, s, `units "example.com/units"`)
	assert.Contains(t, s, `lib "github.com/example/lib-go"`)
	assert.Contains(t, s, "\t\"time\"\n")
	assert.NotContains(t, s, `time "time"`)
}

func TestFoldedName(t *testing.T) {
	assert.Equal(t, FoldedName("Foo"), FoldedName("foo"))
	assert.Equal(t, FoldedName("STRASSE"), FoldedName("strasse"))
	assert.NotEqual(t, FoldedName("Foo"), FoldedName("Bar"))
}

func TestRenderRejectsAmbiguousBody(t *testing.T) {
	_, err := Render(Decl{Package: "demo", Name: "X", TypeExpr: "int"})
	assert.Error(t, err)

	_, err = Render(Decl{Package: "demo", Name: "X", TypeExpr: "int", Expr: "1", Body: blobBody})
	assert.Error(t, err)
}

func TestRenderBrokenExpr(t *testing.T) {
	_, err := Render(Decl{Package: "demo", Name: "X", TypeExpr: "int", Expr: "1 +"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not parse")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "bake_Answer_gen.go", FileName("Answer"))
	assert.Equal(t, "bake_linux_gen.go", FileName("linux"))
	assert.Equal(t, "bake_Café_gen.go", FileName("Café"))
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	a := write("bake_A_gen.go", Header+"\n\npackage demo\n")
	b := write("bake_B_gen.go", Header+"\n\npackage demo\n")
	write("bake_C_gen.go", "package demo\n")
	write("other.go", Header+"\n\npackage demo\n")

	owned, err := Owned(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, owned)

	stale, err := Stale(dir, map[string]bool{a: true})
	require.NoError(t, err)
	assert.Equal(t, []string{b}, stale)
}
