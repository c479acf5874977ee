package journal

import (
	"context"
	"fmt"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/ir"
)

// Append stores a as a new entry and returns it.
//
// The body is the canonical JSON action document; schemas are written by
// their registry name (see WithRegistry).
func (j *Journal) Append(ctx context.Context, a action.Action) (Entry, error) {
	doc := action.ToObject(a, j.registry)
	body, err := ir.MarshalCanonical(doc)
	if err != nil {
		return Entry{}, fmt.Errorf("append %s: %w", a.Type, err)
	}
	digest, err := ir.Digest(ir.DomainAction, doc)
	if err != nil {
		return Entry{}, fmt.Errorf("append %s: %w", a.Type, err)
	}

	e := Entry{
		ID:        j.ids.Generate(),
		Seq:       j.clock.Next(),
		Type:      a.Type,
		Error:     a.Error,
		Body:      string(body),
		Digest:    digest,
		IRVersion: ir.FormatVersion,
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries
		(id, seq, type, is_error, body, digest, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Seq,
		e.Type,
		e.Error,
		e.Body,
		e.Digest,
		e.IRVersion,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append %s: %w", a.Type, err)
	}

	j.logger.Debug("journal entry appended",
		"id", e.ID,
		"seq", e.Seq,
		"type", e.Type,
	)
	return e, nil
}
