package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Pass status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusErrors  = "errors" // finished with per-member errors
	StatusFailed  = "failed" // aborted by a fatal error
)

// Member status values.
const (
	MemberGenerated = "generated"
	MemberVoid      = "void"
	MemberSkipped   = "skipped"
	MemberFailed    = "failed"
)

// MemberRecord is one designated member's outcome.
type MemberRecord struct {
	Ord     int    `json:"ord"`
	Seq     int    `json:"seq"`
	Key     string `json:"key"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	File    string `json:"file,omitempty"`
}

// BeginPass records the start of a pass and returns its ID.
func (j *Journal) BeginPass(ctx context.Context, patterns []string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("begin pass: %w", err)
	}
	if patterns == nil {
		patterns = []string{}
	}
	pj, err := json.Marshal(patterns)
	if err != nil {
		return "", fmt.Errorf("begin pass: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO passes (id, started_at, status, patterns)
		VALUES (?, ?, ?, ?)
	`, id.String(), j.timestamp(), StatusRunning, string(pj))
	if err != nil {
		return "", fmt.Errorf("begin pass: %w", err)
	}
	return id.String(), nil
}

// RecordMembers stores member outcomes for a pass. Recording the same key
// twice keeps the latest outcome.
func (j *Journal) RecordMembers(ctx context.Context, passID string, members []MemberRecord) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record members: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO members (pass_id, ord, seq, key, status, code, message, file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pass_id, key) DO UPDATE SET
			ord = excluded.ord,
			seq = excluded.seq,
			status = excluded.status,
			code = excluded.code,
			message = excluded.message,
			file = excluded.file
	`)
	if err != nil {
		return fmt.Errorf("record members: %w", err)
	}
	defer stmt.Close()

	for _, m := range members {
		if _, err := stmt.ExecContext(ctx, passID, m.Ord, m.Seq, m.Key, m.Status, m.Code, m.Message, m.File); err != nil {
			return fmt.Errorf("record member %s: %w", m.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record members: %w", err)
	}
	return nil
}

// FinishPass stamps the pass with its final status.
func (j *Journal) FinishPass(ctx context.Context, passID, status string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE passes SET finished_at = ?, status = ? WHERE id = ?
	`, j.timestamp(), status, passID)
	if err != nil {
		return fmt.Errorf("finish pass: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish pass: no pass %s", passID)
	}
	return nil
}
