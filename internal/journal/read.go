package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/normware/internal/ir"
)

// Entry is one journaled action.
type Entry struct {
	ID        string
	Seq       int64
	Type      string
	Error     bool
	Body      string // canonical JSON
	Digest    string
	IRVersion string
}

// Document parses the entry body.
func (e Entry) Document() (ir.Object, error) {
	v, err := ir.UnmarshalValue([]byte(e.Body))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("entry %s: body is not an object", e.ID)
	}
	return obj, nil
}

// Verify recomputes the digest of the body and compares it.
func (e Entry) Verify() error {
	doc, err := e.Document()
	if err != nil {
		return err
	}
	digest, err := ir.Digest(ir.DomainAction, doc)
	if err != nil {
		return fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if digest != e.Digest {
		return fmt.Errorf("entry %s: digest mismatch: stored %s, computed %s", e.ID, e.Digest, digest)
	}
	return nil
}

// Filter narrows Entries. Zero values mean no restriction.
type Filter struct {
	Type  string
	Limit int
}

// Entries returns journaled entries ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) when nothing matches.
func (j *Journal) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}

	query := `
		SELECT id, seq, type, is_error, body, digest, ir_version
		FROM entries`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY seq ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Entry retrieves a single entry by id.
// Returns sql.ErrNoRows (wrapped) if not found.
func (j *Journal) Entry(ctx context.Context, id string) (Entry, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, type, is_error, body, digest, ir_version
		FROM entries
		WHERE id = ?
	`, id)
	return scanEntry(row)
}

// LastSeq returns the highest stored seq, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM entries").Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	if err := s.Scan(&e.ID, &e.Seq, &e.Type, &e.Error, &e.Body, &e.Digest, &e.IRVersion); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	return e, nil
}
