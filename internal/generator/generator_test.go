package generator

import (
	"bytes"
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/roach88/bake/internal/bind"
	"github.com/roach88/bake/internal/config"
	"github.com/roach88/bake/internal/diag"
	"github.com/roach88/bake/internal/journal"
	"github.com/roach88/bake/internal/scan"
	"github.com/roach88/bake/internal/stage"
	"github.com/roach88/bake/internal/synth"
	"github.com/roach88/bake/staging"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPass builds a pass over a single fake package rooted at dir.
func testPass(t *testing.T, dir string, cfg *config.Config, out io.Writer) (*pass, *diag.Collector) {
	t.Helper()
	col := &diag.Collector{}
	g := New(cfg, WithLogger(quietLogger()), WithOutput(out))
	p := g.newPass(col, t.TempDir())
	p.prog = &stage.Program{
		Fset: token.NewFileSet(),
		Packages: []*packages.Package{{
			PkgPath: "example.com/demo",
			GoFiles: []string{filepath.Join(dir, "demo.go")},
		}},
	}
	return p, col
}

func parseFile(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "demo.go", src, parser.ParseComments)
	require.NoError(t, err)
	return f
}

func addMember(p *pass, dir, name string) *member {
	m := &member{
		Outcome: Outcome{Ord: len(p.members) + 1, Key: "example.com/demo." + name, Name: name, Status: StatusPending},
		dir:     dir,
	}
	p.members = append(p.members, m)
	return m
}

func writeGenerated(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, synth.FileName(name))
	require.NoError(t, os.WriteFile(path, []byte(synth.Header+"\n\n"+body), 0o644))
	return path
}

func TestNewDefaults(t *testing.T) {
	g := New(nil)
	assert.Equal(t, "bake", g.cfg.Tag)
	assert.Equal(t, scan.DefaultMarker, g.cfg.Marker)
	assert.NotNil(t, g.logger)
	assert.NotNil(t, g.out)

	opts := g.stageOptions(nil, "/work")
	assert.Equal(t, "bake", opts.Tag)
	assert.Equal(t, "/work", opts.WorkDir)
}

const collideSrc = `//go:build bake

package demo

//bake:eval
func Foo() int { return 1 }

//bake:eval
func foo() int { return 2 }

//bake:eval deserialize frob
var Bar = []string{"x"}
`

// checkedProgram type-checks src as the only file of example.com/demo.
func checkedProgram(t *testing.T, dir, src string) *stage.Program {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filepath.Join(dir, "demo.go"), src, parser.ParseComments)
	require.NoError(t, err)
	info := &types.Info{
		Defs:  map[*ast.Ident]types.Object{},
		Uses:  map[*ast.Ident]types.Object{},
		Types: map[ast.Expr]types.TypeAndValue{},
	}
	tpkg, err := (&types.Config{}).Check("example.com/demo", fset, []*ast.File{f}, info)
	require.NoError(t, err)
	return &stage.Program{
		Fset: fset,
		Packages: []*packages.Package{{
			PkgPath:   "example.com/demo",
			Name:      "demo",
			Fset:      fset,
			GoFiles:   []string{filepath.Join(dir, "demo.go")},
			Syntax:    []*ast.File{f},
			Types:     tpkg,
			TypesInfo: info,
		}},
	}
}

func TestScanSkipsCaseCollisions(t *testing.T) {
	dir := t.TempDir()
	p, col := testPass(t, dir, nil, io.Discard)
	p.prog = checkedProgram(t, dir, collideSrc)

	p.scan()

	require.Len(t, p.members, 3)
	foo, lower, bar := p.members[0], p.members[1], p.members[2]
	assert.Equal(t, StatusPending, foo.Status)
	assert.Equal(t, "!bake", foo.constraint)
	assert.Equal(t, StatusSkipped, lower.Status)
	assert.Equal(t, diag.CodeFileCollision, lower.Code)
	assert.Equal(t, StatusPending, bar.Status)
	assert.True(t, bar.scanned.Options.Deserialize)

	require.Len(t, p.units, 1)
	assert.Equal(t, []*member{foo, bar}, p.units[0].members)

	var codes []string
	for _, d := range col.Diagnostics() {
		codes = append(codes, d.Code)
	}
	assert.Equal(t, []string{diag.CodeFileCollision, diag.CodeUnknownOption}, codes)

	req, order := p.request()
	assert.Equal(t, []*member{foo, bar}, order)
	require.Len(t, req.Members, 2)
	assert.Equal(t, "example.com/demo.Foo", req.Members[0].Key)
	assert.Equal(t, "example.com/demo", req.Members[0].Home)
	assert.Equal(t, dir, req.Members[0].Dir)
	assert.False(t, req.Members[0].Deserialize)
	assert.True(t, req.Members[1].Deserialize)
	assert.Subset(t, req.Members[1].Reserve, []string{"Foo", "foo", "Bar"})
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	p, _ := testPass(t, dir, nil, io.Discard)

	same := writeGenerated(t, dir, "Same", "package demo\n")
	stale := writeGenerated(t, dir, "Gone", "package demo\n")
	kept := writeGenerated(t, dir, "Broken", "package demo\n")
	handWritten := filepath.Join(dir, "bake_Manual_gen.go")
	require.NoError(t, os.WriteFile(handWritten, []byte("package demo\n"), 0o644))

	addMember(p, dir, "Same")
	addMember(p, dir, "New")
	addMember(p, dir, "Broken").Status = StatusFailed

	fresh := filepath.Join(dir, synth.FileName("New"))
	p.files[same] = []byte(synth.Header + "\n\npackage demo\n")
	p.files[fresh] = []byte(synth.Header + "\n\npackage demo\n\nvar New = 1\n")

	res := &Result{}
	require.NoError(t, p.write(res))

	assert.Equal(t, []string{fresh}, res.Written)
	assert.Equal(t, []string{same}, res.Unchanged)
	assert.Equal(t, []string{stale}, res.Removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, kept, "files of members that failed this pass stay")
	assert.FileExists(t, handWritten, "files without the header are not ours")

	got, err := os.ReadFile(fresh)
	require.NoError(t, err)
	assert.Contains(t, string(got), "var New = 1")
}

func TestWriteDryRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DryRun = true
	var out bytes.Buffer
	p, _ := testPass(t, dir, cfg, &out)

	stale := writeGenerated(t, dir, "Gone", "package demo\n")
	addMember(p, dir, "New")
	fresh := filepath.Join(dir, synth.FileName("New"))
	p.files[fresh] = []byte("package demo\n\nvar New = 1\n")

	res := &Result{}
	require.NoError(t, p.write(res))

	assert.Empty(t, res.Written)
	assert.Empty(t, res.Removed)
	assert.NoFileExists(t, fresh)
	assert.FileExists(t, stale)
	assert.Contains(t, out.String(), "// "+fresh+"\n")
	assert.Contains(t, out.String(), "var New = 1")
	assert.Contains(t, out.String(), stale+" would be removed")
}

func TestResultOK(t *testing.T) {
	dir := t.TempDir()
	p, col := testPass(t, dir, nil, io.Discard)
	m := addMember(p, dir, "Answer")
	m.scanned = scan.Member{File: parseFile(t, "//go:build bake && linux\n\npackage demo\n")}
	m.sym = &bind.Symbol{Kind: staging.KindFunc, TypeExpr: "int"}
	m.constraint = "!bake && linux"

	p.result(m, staging.Result{Key: m.Key, Seq: 1, Status: staging.StatusOK, Expr: "42"})

	require.Empty(t, col.Diagnostics())
	assert.Equal(t, StatusGenerated, m.Status)
	path := filepath.Join(dir, "bake_Answer_gen.go")
	assert.Equal(t, path, m.File)
	src := string(p.files[path])
	assert.Contains(t, src, "//go:build !bake && linux")
	assert.Contains(t, src, "package demo")
	assert.Contains(t, src, "func Answer() int")
	assert.Contains(t, src, "return 42")
}

func TestResultFailedAndVoid(t *testing.T) {
	dir := t.TempDir()
	p, col := testPass(t, dir, nil, io.Discard)

	shape := addMember(p, dir, "Twice")
	shape.Pos = token.Position{Filename: "demo.go", Line: 7, Column: 6}
	p.result(shape, staging.Result{Key: shape.Key, Status: staging.StatusFailed,
		Code: diag.CodeParameterized, Message: "member must take no parameters"})

	literal := addMember(p, dir, "Conn")
	p.result(literal, staging.Result{Key: literal.Key, Seq: 2, Status: staging.StatusFailed,
		Code: diag.CodeLiteral, Message: "chan int has no literal form"})

	touch := addMember(p, dir, "Touch")
	p.result(touch, staging.Result{Key: touch.Key, Seq: 3, Status: staging.StatusVoid})

	assert.Equal(t, StatusSkipped, shape.Status)
	assert.Equal(t, StatusFailed, literal.Status)
	assert.Equal(t, StatusVoid, touch.Status)
	assert.Empty(t, p.files)

	diags := col.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, diag.CodeParameterized, diags[0].Code)
	assert.Equal(t, diag.CategoryReflection, diags[0].Category)
	assert.Equal(t, 7, diags[0].Pos.Line)
	assert.Equal(t, "Twice: member must take no parameters", diags[0].Message)
	assert.Equal(t, diag.CategorySerialization, diags[1].Category)
}

func TestPassStatus(t *testing.T) {
	assert.Equal(t, journal.StatusOK, passStatus(&Result{}))
	warn := diag.Diagnostic{Code: diag.CodeUnknownOption, Severity: diag.SeverityWarning}
	assert.Equal(t, journal.StatusOK, passStatus(&Result{Diagnostics: []diag.Diagnostic{warn}}))
	fail := diag.Diagnostic{Code: diag.CodeLiteral, Severity: diag.SeverityError}
	assert.Equal(t, journal.StatusErrors, passStatus(&Result{Diagnostics: []diag.Diagnostic{warn, fail}}))
	assert.Equal(t, journal.StatusFailed, passStatus(&Result{Fatal: true}))
}

func TestRecordJournal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	g := New(nil, WithJournal(j), WithLogger(quietLogger()))
	id, err := j.BeginPass(ctx, []string{"./..."})
	require.NoError(t, err)

	res := &Result{
		PassID: id,
		Outcomes: []Outcome{
			{Ord: 1, Seq: 1, Key: "example.com/demo.Answer", Status: StatusGenerated, File: "/src/bake_Answer_gen.go"},
			{Ord: 2, Key: "example.com/demo.Twice", Status: StatusSkipped, Code: diag.CodeParameterized, Message: "takes parameters"},
			{Ord: 3, Seq: 2, Key: "example.com/demo.Touch", Status: StatusVoid},
		},
		Diagnostics: []diag.Diagnostic{{Code: diag.CodeParameterized, Severity: diag.SeverityError}},
	}
	g.record(ctx, res)

	pass, err := j.Pass(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusErrors, pass.Status)

	got, err := j.Members(ctx, id)
	require.NoError(t, err)
	want := []journal.MemberRecord{
		{Ord: 1, Seq: 1, Key: "example.com/demo.Answer", Status: journal.MemberGenerated, File: "/src/bake_Answer_gen.go"},
		{Ord: 2, Key: "example.com/demo.Twice", Status: journal.MemberSkipped, Code: diag.CodeParameterized, Message: "takes parameters"},
		{Ord: 3, Seq: 2, Key: "example.com/demo.Touch", Status: journal.MemberVoid},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestOutcomeRecordPending(t *testing.T) {
	rec := Outcome{Ord: 4, Key: "k", Status: StatusPending}.record()
	assert.Equal(t, journal.MemberSkipped, rec.Status)
}

func TestReported(t *testing.T) {
	assert.Equal(t, 0, reported(nil))
	assert.Equal(t, 2, reported(&staging.Report{Results: make([]staging.Result, 2)}))
}

func TestRemoveFilesIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.go")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, removeFiles([]string{path, filepath.Join(dir, "missing.go")}))
	assert.NoFileExists(t, path)
}
