package staging

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/bake/literal"
)

// Environment variables naming the request and report files.
const (
	EnvRequest = "BAKE_REQUEST"
	EnvResult  = "BAKE_RESULT"
)

// Request lists the members to evaluate, in invocation order.
type Request struct {
	Members []MemberRequest `json:"members"`
}

// MemberRequest asks for one member by canonical key.
type MemberRequest struct {
	Key         string `json:"key"`
	Deserialize bool   `json:"deserialize,omitempty"`

	// Home is the import path of the member's package. The value is
	// encoded as source of that package. Empty means the path in Key.
	Home string `json:"home,omitempty"`

	// Dir is the directory the member is invoked in, normally its package
	// directory. Empty leaves the working directory alone.
	Dir string `json:"dir,omitempty"`

	// Imports maps import paths to the local names the static side already
	// used when spelling the declared type. The encoder reuses them.
	Imports map[string]string `json:"imports,omitempty"`

	// Reserve lists identifiers the generated file declares itself.
	Reserve []string `json:"reserve,omitempty"`
}

// Status of one member evaluation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusVoid   Status = "void"
	StatusFailed Status = "failed"
)

// Result is the outcome for one requested member.
type Result struct {
	Key    string `json:"key"`
	Seq    int    `json:"seq,omitempty"`
	Status Status `json:"status"`

	// Code and Message describe a failed member.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// Expr is the literal for the value. Body holds blob statements
	// instead, declaring literal.BlobVar.
	Expr    string           `json:"expr,omitempty"`
	Body    string           `json:"body,omitempty"`
	Imports []literal.Import `json:"imports,omitempty"`
}

// Fault is a panic or error raised by user code. It aborts the pass.
type Fault struct {
	Key     string `json:"key"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("invoking %s: %s", f.Key, f.Message)
}

// Report is everything the artifact sends back.
type Report struct {
	Results []Result `json:"results"`
	Fault   *Fault   `json:"fault,omitempty"`
}

// ReadRequest loads a request file.
func ReadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", path, err)
	}
	return &req, nil
}

// WriteRequest stores a request file.
func WriteRequest(path string, req *Request) error {
	return writeJSON(path, req)
}

// ReadReport loads a report file.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &rep, nil
}

// WriteReport stores a report file.
func WriteReport(path string, rep *Report) error {
	return writeJSON(path, rep)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
