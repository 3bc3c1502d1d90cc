package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/roach88/bake/internal/diag"
	"github.com/roach88/bake/internal/journal"
	"github.com/roach88/bake/internal/stage"
	"github.com/roach88/bake/internal/synth"
)

// Run executes a full pass over the packages matching patterns.
//
// On a fatal error nothing is written; the returned Result still carries
// every diagnostic and outcome, and the error wraps ErrFatal.
func (g *Generator) Run(ctx context.Context, patterns ...string) (*Result, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	col := &diag.Collector{}
	res := &Result{}

	if g.journal != nil {
		id, err := g.journal.BeginPass(ctx, patterns)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		res.PassID = id
	}

	work, err := os.MkdirTemp("", "bake-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if g.cfg.KeepWork {
		g.logger.Info("keeping work dir", "dir", work)
	} else {
		defer os.RemoveAll(work)
	}

	p := g.newPass(diag.Tee(col, g.sink), work)
	g.logger.Info("starting pass", "patterns", patterns, "tag", g.cfg.Tag, "pass", res.PassID)
	runErr := p.run(ctx, patterns, res)

	res.Diagnostics = col.Diagnostics()
	res.Outcomes = p.outcomes()
	res.Fatal = runErr != nil
	g.record(ctx, res)

	if runErr != nil {
		g.logger.Error("pass aborted", "pass", res.PassID, "err", runErr)
		return res, fmt.Errorf("%w: %w", ErrFatal, runErr)
	}
	g.logger.Info("pass finished",
		"pass", res.PassID,
		"members", len(res.Outcomes),
		"written", len(res.Written),
		"unchanged", len(res.Unchanged),
		"removed", len(res.Removed),
		"errors", res.Errors(),
	)
	return res, nil
}

func (p *pass) run(ctx context.Context, patterns []string, res *Result) error {
	if err := p.load(ctx, patterns); err != nil {
		return err
	}
	p.scan()
	if len(p.units) > 0 {
		art, err := p.build(ctx)
		if err != nil {
			return err
		}
		if err := p.invoke(ctx, art); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.write(res)
}

// write stores the generated files and removes stale ones. A dry run
// prints the files instead and touches nothing.
func (p *pass) write(res *Result) error {
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var stale []string
	keep := p.designated()
	for _, dir := range p.dirs() {
		files, err := synth.Stale(dir, keep)
		if err != nil {
			return fmt.Errorf("list generated files in %s: %w", dir, err)
		}
		stale = append(stale, files...)
	}

	if p.g.cfg.DryRun {
		for _, path := range paths {
			fmt.Fprintf(p.g.out, "// %s\n%s\n", path, p.files[path])
		}
		for _, path := range stale {
			fmt.Fprintf(p.g.out, "// %s would be removed\n", path)
		}
		return nil
	}

	for _, path := range paths {
		src := p.files[path]
		old, err := os.ReadFile(path)
		if err == nil && bytes.Equal(old, src) {
			res.Unchanged = append(res.Unchanged, path)
			continue
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		p.g.logger.Debug("wrote file", "file", path)
		res.Written = append(res.Written, path)
	}
	if err := removeFiles(stale); err != nil {
		return fmt.Errorf("remove stale files: %w", err)
	}
	res.Removed = stale
	return nil
}

// record writes the pass to the journal. Journal failures are logged and
// don't change the outcome of the pass.
func (g *Generator) record(ctx context.Context, res *Result) {
	if g.journal == nil || res.PassID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	recs := make([]journal.MemberRecord, len(res.Outcomes))
	for i, o := range res.Outcomes {
		recs[i] = o.record()
	}
	if err := g.journal.RecordMembers(ctx, res.PassID, recs); err != nil {
		g.logger.Warn("journal: recording members failed", "pass", res.PassID, "err", err)
	}
	if err := g.journal.FinishPass(ctx, res.PassID, passStatus(res)); err != nil {
		g.logger.Warn("journal: finishing pass failed", "pass", res.PassID, "err", err)
	}
}

// Scan loads the packages matching patterns and reports every designated
// member with the static checks applied. Nothing is built or invoked.
func (g *Generator) Scan(ctx context.Context, patterns ...string) (*Result, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	col := &diag.Collector{}
	p := g.newPass(diag.Tee(col, g.sink), "")
	err := p.load(ctx, patterns)
	if err == nil {
		p.scan()
	}
	res := &Result{
		Outcomes:    p.outcomes(),
		Diagnostics: col.Diagnostics(),
		Fatal:       err != nil,
	}
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	return res, nil
}

// Clean removes every file bake generated in the packages matching
// patterns. With DryRun set the files are only listed.
func (g *Generator) Clean(ctx context.Context, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	opts := g.stageOptions(g.sink, "")
	dirs, err := stage.Dirs(ctx, opts, patterns...)
	if err != nil {
		return nil, err
	}
	var owned []string
	for _, dir := range dirs {
		files, err := synth.Owned(dir)
		if err != nil {
			return nil, fmt.Errorf("list generated files in %s: %w", dir, err)
		}
		owned = append(owned, files...)
	}
	if g.cfg.DryRun {
		return owned, nil
	}
	if err := removeFiles(owned); err != nil {
		return nil, err
	}
	g.logger.Info("cleaned", "files", len(owned))
	return owned, nil
}
