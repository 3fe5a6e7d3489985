package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

const dlqColumns = `id, stage, resource_id, code, error, input, token_hash, failed_at, resolved_at, created_at`

// PushDLQ adds an entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	var input []byte
	if len(entry.Input) > 0 {
		input = entry.Input
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO volshift_dlq (`+dlqColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID.String(), string(entry.Stage), entry.ResourceID, entry.Code, entry.Error,
		input, entry.TokenHash, entry.FailedAt, entry.ResolvedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("volshift/postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `SELECT ` + dlqColumns + ` FROM volshift_dlq WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Stage != "" {
		query += fmt.Sprintf(" AND stage = $%d", argIdx)
		args = append(args, string(opts.Stage))
		argIdx++
	}
	if opts.Unresolved {
		query += " AND resolved_at IS NULL"
	}

	query += " ORDER BY failed_at DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("volshift/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		e, scanErr := scanDLQ(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("volshift/postgres: scan dlq row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("volshift/postgres: iterate dlq rows: %w", err)
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dlqColumns+` FROM volshift_dlq WHERE id = $1`, entryID.String())
	e, err := scanDLQ(row)
	if err != nil {
		if isNoRows(err) {
			return nil, volshift.ErrDLQNotFound
		}
		return nil, fmt.Errorf("volshift/postgres: get dlq: %w", err)
	}
	return e, nil
}

// ResolveDLQ marks an entry handled.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE volshift_dlq SET resolved_at = NOW() WHERE id = $1`, entryID.String())
	if err != nil {
		return fmt.Errorf("volshift/postgres: resolve dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return volshift.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM volshift_dlq WHERE failed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("volshift/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM volshift_dlq`).Scan(&count); err != nil {
		return 0, fmt.Errorf("volshift/postgres: count dlq: %w", err)
	}
	return count, nil
}

func scanDLQ(row pgx.Row) (*dlq.Entry, error) {
	var (
		e     dlq.Entry
		rawID string
		stage string
		input []byte
	)
	if err := row.Scan(&rawID, &stage, &e.ResourceID, &e.Code, &e.Error, &input,
		&e.TokenHash, &e.FailedAt, &e.ResolvedAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	entryID, err := id.ParseDLQID(rawID)
	if err != nil {
		return nil, err
	}
	e.ID = entryID
	e.Stage = workflow.Stage(stage)
	if len(input) > 0 {
		e.Input = input
	}
	return &e, nil
}
