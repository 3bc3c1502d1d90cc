package generator

import (
	"go/token"

	"github.com/roach88/bake/internal/diag"
	"github.com/roach88/bake/internal/journal"
)

// Status of one designated member after a pass.
type Status string

const (
	StatusGenerated Status = "generated" // replacement declaration produced
	StatusVoid      Status = "void"      // no results; invoked for its side effect
	StatusSkipped   Status = "skipped"   // rejected before invocation
	StatusFailed    Status = "failed"    // invoked, but the value couldn't be encoded
	StatusPending   Status = "pending"   // never reached; the pass aborted first
)

// Outcome is what a pass did with one designated member.
type Outcome struct {
	Ord     int            `json:"ord"`
	Seq     int            `json:"seq,omitempty"`
	Key     string         `json:"key"`
	Name    string         `json:"name"`
	Pos     token.Position `json:"pos"`
	Status  Status         `json:"status"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	File    string         `json:"file,omitempty"`
}

// Result summarises a pass.
type Result struct {
	PassID      string            `json:"pass_id,omitempty"`
	Outcomes    []Outcome         `json:"outcomes"`
	Written     []string          `json:"written"`
	Unchanged   []string          `json:"unchanged"`
	Removed     []string          `json:"removed"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Fatal       bool              `json:"fatal"`
}

// Errors counts error-severity diagnostics.
func (r *Result) Errors() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityError {
			n++
		}
	}
	return n
}

func (o *Outcome) fail(d diag.Diagnostic, status Status) {
	o.Status = status
	o.Code = d.Code
	o.Message = d.Message
}

func (o Outcome) record() journal.MemberRecord {
	rec := journal.MemberRecord{
		Ord:     o.Ord,
		Seq:     o.Seq,
		Key:     o.Key,
		Code:    o.Code,
		Message: o.Message,
		File:    o.File,
	}
	switch o.Status {
	case StatusGenerated:
		rec.Status = journal.MemberGenerated
	case StatusVoid:
		rec.Status = journal.MemberVoid
	case StatusFailed:
		rec.Status = journal.MemberFailed
	default:
		rec.Status = journal.MemberSkipped
	}
	return rec
}

func passStatus(r *Result) string {
	switch {
	case r.Fatal:
		return journal.StatusFailed
	case r.Errors() > 0:
		return journal.StatusErrors
	default:
		return journal.StatusOK
	}
}
