package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bake/internal/diag"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeFatal, "pass aborted", map[string]int{"errors": 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFatal, resp.Error.Code)
	assert.Equal(t, "pass aborted", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("3 file(s)"))
	assert.Contains(t, buf.String(), "3 file(s)")
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeConfig, "bad tag", "tag: invalid value"))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [config]: bad tag")
	assert.Contains(t, errOut.String(), "Details: tag: invalid value")
}

func TestOutputFormatter_Sink(t *testing.T) {
	errOut := &bytes.Buffer{}
	text := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}, ErrWriter: errOut}
	sink := text.Sink()
	require.NotNil(t, sink)

	pos := token.Position{Filename: "demo/values.go", Line: 12, Column: 6}
	sink.Report(diag.New(diag.CodeNonStatic, diag.CategoryReflection, pos, "method or variable must be static"))
	assert.Equal(t, "demo/values.go:12:6: error BAKE0002: method or variable must be static\n", errOut.String())

	js := &OutputFormatter{Format: "json", Writer: &bytes.Buffer{}}
	assert.Nil(t, js.Sink())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			formatter.VerboseLog("Processing %s", "values.go")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing values.go")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "fatal")))

	cause := errors.New("disk full")
	wrapped := WrapExitError(ExitCommandError, "write failed", cause)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "write failed: disk full", wrapped.Error())
}
