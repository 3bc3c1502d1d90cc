package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned for unknown pass IDs.
var ErrNotFound = errors.New("pass not found")

// Pass is one recorded pass.
type Pass struct {
	ID         string   `json:"id"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
	Status     string   `json:"status"`
	Patterns   []string `json:"patterns"`
}

// Passes returns the most recent passes first, at most limit of them.
// UUIDv7 IDs sort by creation time.
func (j *Journal) Passes(ctx context.Context, limit int) ([]Pass, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, patterns
		FROM passes
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var out []Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	return out, nil
}

// Pass returns one pass by ID.
func (j *Journal) Pass(ctx context.Context, id string) (Pass, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, patterns
		FROM passes WHERE id = ?
	`, id)
	p, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Pass{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

// Members returns the member outcomes of a pass in scan order.
func (j *Journal) Members(ctx context.Context, passID string) ([]MemberRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT ord, seq, key, status, code, message, file
		FROM members
		WHERE pass_id = ?
		ORDER BY ord ASC, key COLLATE BINARY ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []MemberRecord
	for rows.Next() {
		var m MemberRecord
		if err := rows.Scan(&m.Ord, &m.Seq, &m.Key, &m.Status, &m.Code, &m.Message, &m.File); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(s scanner) (Pass, error) {
	var p Pass
	var patterns string
	if err := s.Scan(&p.ID, &p.StartedAt, &p.FinishedAt, &p.Status, &patterns); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pass{}, err
		}
		return Pass{}, fmt.Errorf("scan pass: %w", err)
	}
	if err := json.Unmarshal([]byte(patterns), &p.Patterns); err != nil {
		return Pass{}, fmt.Errorf("decode patterns of pass %s: %w", p.ID, err)
	}
	return p, nil
}
