// Package stage builds and runs the secondary, feature-tagged build of a
// bake pass.
//
// Load type-checks the requested packages with the feature tag set. For
// every package with designated members, RenderRegistration writes a file
// registering them with package staging. Build adds those files and one
// driver program importing all of the packages through an -overlay and
// compiles the driver. The binary is the loadable artifact of the whole
// pass: Artifact.Run executes it once and reads back the report.
package stage

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/bake/internal/diag"
)

var (
	// ErrCompilationFailed is returned when the secondary build has errors.
	// The individual errors have been reported to the sink.
	ErrCompilationFailed = errors.New("compilation failed")

	// ErrProtocol is returned when an artifact ran but produced no usable
	// report.
	ErrProtocol = errors.New("driver protocol failure")
)

// Names of the overlaid files and directories. None of them exists on disk.
const (
	// RegisterFile is added to every package with designated members.
	RegisterFile = "bake_register_overlay.go"

	// DriverDir holds the driver's main package, under the host directory.
	DriverDir = "bakedriver"

	// MainAlias is the package clause main packages are compiled with, so
	// the driver can import them.
	MainAlias = "bakemain"
)

// Options configure the secondary build.
type Options struct {
	// Dir is the directory patterns are resolved in.
	Dir string

	// Tag is the feature build tag.
	Tag string

	// Go is the go command; "go" when empty.
	Go         string
	BuildFlags []string
	Env        []string

	// WorkDir holds overlay files, the binary and protocol files.
	WorkDir string

	Sink   diag.Sink
	Logger *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Options) report(d diag.Diagnostic) {
	if o.Sink != nil {
		o.Sink.Report(d)
	}
}

func (o *Options) goCmd() string {
	if o.Go == "" {
		return "go"
	}
	return o.Go
}

func (o *Options) environ() []string {
	return append(os.Environ(), o.Env...)
}

// buildFlags returns the user's flags with tag merged into any -tags flag,
// or appended as a new one.
func (o *Options) buildFlags() []string {
	out := make([]string, 0, len(o.BuildFlags)+1)
	merged := false
	for i := 0; i < len(o.BuildFlags); i++ {
		f := o.BuildFlags[i]
		name, val, hasVal := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if name != "tags" || !strings.HasPrefix(f, "-") {
			out = append(out, f)
			continue
		}
		if !hasVal && i+1 < len(o.BuildFlags) {
			i++
			val = o.BuildFlags[i]
		}
		out = append(out, "-tags="+joinTags(val, o.Tag))
		merged = true
	}
	if !merged {
		out = append(out, "-tags="+o.Tag)
	}
	return out
}

func joinTags(list, tag string) string {
	tags := strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' })
	for _, t := range tags {
		if t == tag {
			return strings.Join(tags, ",")
		}
	}
	return strings.Join(append(tags, tag), ",")
}
