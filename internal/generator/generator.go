// Package generator drives a bake pass: load the feature-tagged build,
// scan and bind designated members, build and run one artifact per
// package, encode the results and write the replacement files.
//
// A pass is all or nothing. Fatal failures (compilation, invocation
// faults, protocol errors, cancellation) leave the tree untouched;
// per-member failures only skip that member.
package generator

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/bake/internal/config"
	"github.com/roach88/bake/internal/diag"
	"github.com/roach88/bake/internal/journal"
	"github.com/roach88/bake/internal/stage"
)

// ErrFatal wraps the cause of an aborted pass.
var ErrFatal = errors.New("bake pass aborted")

// Generator runs passes with one configuration.
type Generator struct {
	cfg     *config.Config
	dir     string
	sink    diag.Sink
	logger  *slog.Logger
	journal *journal.Journal
	out     io.Writer
}

// Option configures a Generator.
type Option func(*Generator)

// WithDir sets the directory patterns are resolved in.
func WithDir(dir string) Option {
	return func(g *Generator) { g.dir = dir }
}

// WithSink forwards every diagnostic to s as it is reported.
func WithSink(s diag.Sink) Option {
	return func(g *Generator) { g.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithJournal records passes in j.
func WithJournal(j *journal.Journal) Option {
	return func(g *Generator) { g.journal = j }
}

// WithOutput sets where dry runs print generated files.
func WithOutput(w io.Writer) Option {
	return func(g *Generator) { g.out = w }
}

// New returns a Generator. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) *Generator {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Generator{
		cfg:    cfg,
		logger: slog.Default(),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) stageOptions(sink diag.Sink, work string) stage.Options {
	return stage.Options{
		Dir:        g.dir,
		Tag:        g.cfg.Tag,
		Go:         g.cfg.Go,
		BuildFlags: g.cfg.BuildFlags,
		Env:        g.cfg.Env,
		WorkDir:    work,
		Sink:       sink,
		Logger:     g.logger,
	}
}
