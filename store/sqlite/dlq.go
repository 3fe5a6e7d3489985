package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

const dlqColumns = `id, stage, resource_id, code, error, input, token_hash, failed_at, resolved_at, created_at`

// PushDLQ adds an entry.
func (s *Store) PushDLQ(ctx context.Context, e *dlq.Entry) error {
	var input any
	if len(e.Input) > 0 {
		input = string(e.Input)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO volshift_dlq (`+dlqColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Stage), e.ResourceID, e.Code, e.Error, input, e.TokenHash,
		toMillis(e.FailedAt), nullMillis(e.ResolvedAt), toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("volshift/sqlite: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var (
		where []string
		args  []any
	)
	if opts.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, string(opts.Stage))
	}
	if opts.Unresolved {
		where = append(where, "resolved_at IS NULL")
	}

	q := `SELECT ` + dlqColumns + ` FROM volshift_dlq`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY failed_at DESC, id DESC`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		q += ` LIMIT -1`
	}
	if opts.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("volshift/sqlite: list dlq: %w", err)
	}
	defer rows.Close()

	var out []*dlq.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("volshift/sqlite: list dlq: %w", err)
	}
	return out, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dlqColumns+` FROM volshift_dlq WHERE id = ?`, entryID.String())
	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, volshift.ErrDLQNotFound
		}
		return nil, err
	}
	return e, nil
}

// ResolveDLQ marks an entry handled.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE volshift_dlq SET resolved_at = ? WHERE id = ?`,
		toMillis(s.now()), entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("volshift/sqlite: resolve dlq: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("volshift/sqlite: resolve dlq: %w", err)
	}
	if n == 0 {
		return volshift.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM volshift_dlq WHERE failed_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("volshift/sqlite: purge dlq: %w", err)
	}
	return res.RowsAffected()
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM volshift_dlq`).Scan(&n); err != nil {
		return 0, fmt.Errorf("volshift/sqlite: count dlq: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*dlq.Entry, error) {
	var (
		e          dlq.Entry
		rawID      string
		stage      string
		input      sql.NullString
		failedAt   int64
		resolvedAt sql.NullInt64
		createdAt  int64
	)
	if err := row.Scan(&rawID, &stage, &e.ResourceID, &e.Code, &e.Error, &input,
		&e.TokenHash, &failedAt, &resolvedAt, &createdAt); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("volshift/sqlite: scan dlq: %w", err)
	}

	entryID, err := id.ParseDLQID(rawID)
	if err != nil {
		return nil, fmt.Errorf("volshift/sqlite: scan dlq: %w", err)
	}
	e.ID = entryID
	e.Stage = workflow.Stage(stage)
	if input.Valid {
		e.Input = []byte(input.String)
	}
	e.FailedAt = fromMillis(failedAt)
	e.CreatedAt = fromMillis(createdAt)
	if resolvedAt.Valid {
		t := fromMillis(resolvedAt.Int64)
		e.ResolvedAt = &t
	}
	return &e, nil
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}
