// Package config loads bake.yaml.
//
// The file is decoded strictly (unknown keys are errors), defaults fill the
// gaps, and the result is checked against the embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bake/internal/scan"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "bake.yaml"

//go:embed schema.cue
var schemaSrc string

// Config controls a bake pass.
type Config struct {
	// Tag is the build tag defined only for the secondary build.
	Tag    string      `yaml:"tag" json:"tag"`
	Marker scan.Marker `yaml:"marker" json:"marker"`

	// Go is the go command used for builds.
	Go         string   `yaml:"go" json:"go"`
	BuildFlags []string `yaml:"build_flags" json:"build_flags"`
	Env        []string `yaml:"env" json:"env"`

	// Journal is the SQLite file passes are recorded in; empty disables it.
	Journal  string `yaml:"journal" json:"journal"`
	KeepWork bool   `yaml:"keep_work" json:"keep_work"`
	DryRun   bool   `yaml:"dry_run" json:"dry_run"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tag:        "bake",
		Marker:     scan.DefaultMarker,
		Go:         "go",
		BuildFlags: []string{},
		Env:        []string{},
	}
}

// Load reads path. A missing file at the default location yields the
// defaults; a missing file named explicitly is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c against the schema.
func (c *Config) Validate() error {
	if c.BuildFlags == nil {
		c.BuildFlags = []string{}
	}
	if c.Env == nil {
		c.Env = []string{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return &Error{Details: cueerrors.Details(err, nil), Err: err}
	}
	return nil
}

// Error is a schema violation.
type Error struct {
	Details string
	Err     error
}

func (e *Error) Error() string {
	return "invalid config: " + e.Details
}

func (e *Error) Unwrap() error {
	return e.Err
}
