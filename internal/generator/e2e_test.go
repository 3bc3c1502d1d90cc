package generator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bake/internal/config"
	"github.com/roach88/bake/internal/diag"
)

// The end-to-end tests drive the go command against a scratch module that
// depends on this one through a replace directive. They are slow and need
// the module cache, so they only run with BAKE_E2E=1.
func requireE2E(t *testing.T) string {
	t.Helper()
	if os.Getenv("BAKE_E2E") != "1" {
		t.Skip("set BAKE_E2E=1 to run end-to-end passes")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not found")
	}
	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	return root
}

func scratchModule(t *testing.T, root string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	gomod := "module example.com/demo\n\ngo 1.25\n\n" +
		"require github.com/roach88/bake v0.0.0\n\n" +
		"replace github.com/roach88/bake => " + root + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0o644))
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

const valuesSrc = `//go:build bake

package demo

import "time"

var touched int

//bake:eval
func Answer() int { return 6 * 7 }

//bake:eval
var Primes = []int{2, 3, 5, 7}

//bake:eval
func Day() time.Weekday { return time.Tuesday }

//bake:eval
func Greeting() (string, error) { return "hello\n", nil }

//bake:eval
func Touch() { touched++ }

//bake:eval
func Twice(n int) int { return n * 2 }

//bake:eval frobnicate
func Pi() float64 { return 3.5 }
`

const useSrc = `package demo

func Sum() int { return Answer() + len(Primes) }
`

func e2eConfig() *config.Config {
	cfg := config.Default()
	cfg.Env = []string{"GOFLAGS=-mod=mod"}
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	root := requireE2E(t)
	dir := scratchModule(t, root, map[string]string{
		"values.go": valuesSrc,
		"use.go":    useSrc,
	})

	g := New(e2eConfig(), WithDir(dir), WithLogger(quietLogger()))
	res, err := g.Run(context.Background(), "./...")
	require.NoError(t, err, "diagnostics: %v", res)

	byName := map[string]Outcome{}
	for _, o := range res.Outcomes {
		byName[o.Name] = o
	}
	assert.Equal(t, StatusGenerated, byName["Answer"].Status)
	assert.Equal(t, StatusGenerated, byName["Primes"].Status)
	assert.Equal(t, StatusGenerated, byName["Day"].Status)
	assert.Equal(t, StatusGenerated, byName["Greeting"].Status)
	assert.Equal(t, StatusVoid, byName["Touch"].Status)
	assert.Equal(t, StatusSkipped, byName["Twice"].Status)
	assert.Equal(t, diag.CodeParameterized, byName["Twice"].Code)
	assert.Equal(t, StatusGenerated, byName["Pi"].Status)

	var codes []string
	for _, d := range res.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.ElementsMatch(t, []string{diag.CodeUnknownOption, diag.CodeParameterized}, codes)

	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, "bake_"+name+"_gen.go"))
		require.NoError(t, err)
		return string(b)
	}
	assert.Contains(t, read("Answer"), "return 42")
	assert.Contains(t, read("Primes"), "[]int{2, 3, 5, 7}")
	assert.Contains(t, read("Day"), "time.Tuesday")
	assert.Contains(t, read("Greeting"), `return "hello\n", nil`)
	assert.NoFileExists(t, filepath.Join(dir, "bake_Touch_gen.go"))

	// The tree now builds without the feature tag.
	cmd := exec.Command("go", "build", "./...")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", out)

	// A second pass rewrites nothing.
	res, err = g.Run(context.Background(), "./...")
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Len(t, res.Unchanged, 5)

	removed, err := g.Clean(context.Background(), "./...")
	require.NoError(t, err)
	assert.Len(t, removed, 5)
}

func TestRunFaultIsFatal(t *testing.T) {
	root := requireE2E(t)
	dir := scratchModule(t, root, map[string]string{
		"values.go": `//go:build bake

package demo

import "errors"

//bake:eval
func Fine() int { return 1 }

//bake:eval
func Broken() (int, error) { return 0, errors.New("no luck") }
`,
	})

	g := New(e2eConfig(), WithDir(dir), WithLogger(quietLogger()))
	res, err := g.Run(context.Background(), ".")
	require.ErrorIs(t, err, ErrFatal)
	require.True(t, res.Fatal)
	assert.Contains(t, res.Diagnostics[len(res.Diagnostics)-1].Message, "no luck")
	assert.Equal(t, diag.CodeInvocationFault, res.Diagnostics[len(res.Diagnostics)-1].Code)
	assert.NoFileExists(t, filepath.Join(dir, "bake_Fine_gen.go"))
}

func TestRunCompilationFailure(t *testing.T) {
	root := requireE2E(t)
	dir := scratchModule(t, root, map[string]string{
		"values.go": `//go:build bake

package demo

//bake:eval
func Answer() int { return "not an int" }
`,
	})

	g := New(e2eConfig(), WithDir(dir), WithLogger(quietLogger()))
	res, err := g.Run(context.Background(), ".")
	require.ErrorIs(t, err, ErrFatal)
	var codes []string
	for _, d := range res.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, diag.CodeCompilationFailed)
	assert.Contains(t, codes, "go/type")
}

func TestScanReportsUnguarded(t *testing.T) {
	root := requireE2E(t)
	dir := scratchModule(t, root, map[string]string{
		"values.go": `package demo

//bake:eval
func Answer() int { return 42 }
`,
	})

	g := New(e2eConfig(), WithDir(dir), WithLogger(quietLogger()))
	res, err := g.Scan(context.Background(), ".")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusSkipped, res.Outcomes[0].Status)
	assert.Equal(t, diag.CodeUnguarded, res.Outcomes[0].Code)
	assert.Equal(t, "example.com/demo.Answer", res.Outcomes[0].Key)
}

func goRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("go", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", out)
	return string(out)
}

const counterSrc = `package counter

var n int

func Next() int {
	n++
	return n
}
`

const sharedASrc = `//go:build bake

package a

import "example.com/demo/counter"

//bake:eval
var Table = counter.Next()

//bake:eval
func Id1() int { return counter.Next() }
`

const sharedBSrc = `//go:build bake

package b

import (
	"example.com/demo/a"
	"example.com/demo/counter"
)

var _ = a.Table

//bake:eval
func Id2() int { return counter.Next() }
`

const toolSrc = `//go:build bake

package main

import (
	"fmt"

	"example.com/demo/counter"
)

//bake:eval
func Banner() string { return fmt.Sprint("v", counter.Next()) }
`

const toolMainSrc = `package main

import "fmt"

func main() { fmt.Println(Banner()) }
`

func TestRunSharesStateAcrossPackages(t *testing.T) {
	root := requireE2E(t)
	dir := scratchModule(t, root, map[string]string{
		"counter/counter.go": counterSrc,
		"a/values.go":        sharedASrc,
		"b/values.go":        sharedBSrc,
		"cmd/tool/values.go": toolSrc,
		"cmd/tool/main.go":   toolMainSrc,
	})

	g := New(e2eConfig(), WithDir(dir), WithLogger(quietLogger()))
	res, err := g.Run(context.Background(), "./...")
	require.NoError(t, err, "diagnostics: %v", res)
	require.Len(t, res.Written, 4)

	read := func(rel string) string {
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		return string(b)
	}
	// One process: a's initializer runs once, before any invocation, and
	// every member sees the same counter.
	assert.Contains(t, read("a/bake_Table_gen.go"), "var Table int = 1")
	assert.Contains(t, read("a/bake_Id1_gen.go"), "return 2")
	assert.Contains(t, read("b/bake_Id2_gen.go"), "return 3")
	assert.Contains(t, read("cmd/tool/bake_Banner_gen.go"), `return "v4"`)
	assert.Contains(t, read("cmd/tool/bake_Banner_gen.go"), "package main")

	seqs := map[string]int{}
	for _, o := range res.Outcomes {
		seqs[o.Name] = o.Seq
	}
	assert.Equal(t, map[string]int{"Table": 1, "Id1": 2, "Id2": 3, "Banner": 4}, seqs)

	assert.Equal(t, "v4\n", goRun(t, dir, "run", "./cmd/tool"))
	assert.NoDirExists(t, filepath.Join(dir, "bakedriver"))
	assert.NoFileExists(t, filepath.Join(dir, "a", "bake_register_overlay.go"))
}

const tablesTypesSrc = `package tables

type Pair struct {
	Name  string
	Score int
	Tags  []string
}
`

const tablesSrc = `//go:build bake

package tables

import "strings"

//bake:eval
var Factorials = func() [10]int {
	var out [10]int
	f := 1
	for i := range out {
		f *= i + 1
		out[i] = f
	}
	return out
}()

//bake:eval
func Lengths() map[int]string {
	m := map[int]string{}
	for i := 1; i <= 10; i++ {
		m[i] = strings.Repeat("x", i)
	}
	return m
}

//bake:eval deserialize
func Best() Pair { return Pair{Name: "ada", Score: 42, Tags: []string{"x", "y"}} }

//bake:eval deserialize
var Roster = []Pair{{Name: "bob", Score: 7, Tags: []string{"z"}}, {Name: "cy", Score: 9, Tags: []string{"a", "b"}}}
`

const checkSrc = `package main

import (
	"fmt"
	"reflect"

	"example.com/demo/tables"
)

func main() {
	f := 1
	for i, v := range tables.Factorials {
		f *= i + 1
		if v != f {
			fmt.Println("factorial", i, v)
			return
		}
	}
	m := tables.Lengths()
	if len(m) != 10 {
		fmt.Println("map size", len(m))
		return
	}
	for k, v := range m {
		if len(v) != k {
			fmt.Println("map entry", k, v)
			return
		}
	}
	if got, want := tables.Best(), (tables.Pair{Name: "ada", Score: 42, Tags: []string{"x", "y"}}); !reflect.DeepEqual(got, want) {
		fmt.Println("best", got)
		return
	}
	roster := []tables.Pair{{Name: "bob", Score: 7, Tags: []string{"z"}}, {Name: "cy", Score: 9, Tags: []string{"a", "b"}}}
	if !reflect.DeepEqual(tables.Roster, roster) {
		fmt.Println("roster", tables.Roster)
		return
	}
	fmt.Println("ok")
}
`

func TestRunValuesRoundTrip(t *testing.T) {
	root := requireE2E(t)
	dir := scratchModule(t, root, map[string]string{
		"tables/types.go":  tablesTypesSrc,
		"tables/values.go": tablesSrc,
		"check/main.go":    checkSrc,
	})

	g := New(e2eConfig(), WithDir(dir), WithLogger(quietLogger()))
	res, err := g.Run(context.Background(), "./tables")
	require.NoError(t, err, "diagnostics: %v", res)
	require.Len(t, res.Written, 4)
	assert.Empty(t, res.Diagnostics)

	best, err := os.ReadFile(filepath.Join(dir, "tables", "bake_Best_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(best), "gob.NewDecoder(bytes.NewReader(")
	facts, err := os.ReadFile(filepath.Join(dir, "tables", "bake_Factorials_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(facts), "3628800")

	assert.Equal(t, "ok\n", goRun(t, dir, "run", "./check"))
}
