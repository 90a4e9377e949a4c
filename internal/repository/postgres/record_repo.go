package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

var (
	_ record.Repo   = (*RecordRepoImpl)(nil)
	_ record.Pruner = (*RecordRepoImpl)(nil)
)

type RecordRepoImpl struct {
	db    *DB
	clock record.Clock
}

func NewRecordRepo(db *DB, clock record.Clock) *RecordRepoImpl {
	return &RecordRepoImpl{db: db, clock: clock}
}

const (
	qRecordUpsert = `
INSERT INTO records (record_key, value, metadata, expires_at)
VALUES ($1, $2::jsonb, $3::jsonb, $4)
ON CONFLICT (record_key) DO UPDATE
SET value = EXCLUDED.value,
    metadata = EXCLUDED.metadata,
    expires_at = EXCLUDED.expires_at;
`

	qRecordGet = `
SELECT record_key, value, metadata, expires_at
FROM records
WHERE record_key = $1 AND (expires_at IS NULL OR expires_at > $2);
`

	// An existing row is only replaced once it has expired.
	qRecordCreate = `
INSERT INTO records (record_key, value, metadata, expires_at)
VALUES ($1, $2::jsonb, $3::jsonb, $4)
ON CONFLICT (record_key) DO UPDATE
SET value = EXCLUDED.value,
    metadata = EXCLUDED.metadata,
    expires_at = EXCLUDED.expires_at
WHERE records.expires_at IS NOT NULL AND records.expires_at <= $5;
`

	qRecordQuery = `
SELECT record_key, value, metadata, expires_at
FROM records
WHERE left(record_key, length($1)) = $1
  AND metadata @> $2::jsonb
  AND (expires_at IS NULL OR expires_at > $3)
  AND ($5 = '' OR record_key COLLATE "C" >= $5)
ORDER BY record_key COLLATE "C" %s
LIMIT $4;
`

	qRecordPrune = `DELETE FROM records WHERE expires_at IS NOT NULL AND expires_at <= $1;`
)

var (
	qRecordQueryAsc  = fmt.Sprintf(qRecordQuery, "ASC")
	qRecordQueryDesc = fmt.Sprintf(qRecordQuery, "DESC")
)

func scanRecord(row pgx.Row, e *record.Entry) error {
	var (
		value, md []byte
		expiresAt *time.Time
	)
	if err := row.Scan(&e.Key, &value, &md, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.ErrNotFound
		}
		return fmt.Errorf("scan record: %w", err)
	}
	meta, err := decodeMetadata(md)
	if err != nil {
		return fmt.Errorf("decode metadata of %s: %w", e.Key, err)
	}
	e.Value = value
	e.Metadata = meta
	e.ExpiresAt = expiresAt
	return nil
}

func (r *RecordRepoImpl) Save(ctx context.Context, key string, value []byte, opts record.SaveOptions) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	md, err := encodeMetadata(opts.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	now := r.clock.Now()
	if !opts.Create {
		if _, err := r.db.conn(ctx).Exec(ctx, qRecordUpsert,
			key, string(value), string(md), opts.ExpiresAt(now),
		); err != nil {
			return fmt.Errorf("upsert record %s: %w", key, err)
		}
		return nil
	}

	tag, err := r.db.conn(ctx).Exec(ctx, qRecordCreate,
		key, string(value), string(md), opts.ExpiresAt(now), now,
	)
	if err != nil {
		return fmt.Errorf("create record %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrExists
	}
	return nil
}

func (r *RecordRepoImpl) Get(ctx context.Context, key string) (record.Entry, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var e record.Entry
	if err := scanRecord(r.db.conn(ctx).QueryRow(ctx, qRecordGet, key, r.clock.Now()), &e); err != nil {
		return record.Entry{}, err
	}
	return e, nil
}

func (r *RecordRepoImpl) Query(ctx context.Context, q record.Query) ([]record.Entry, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	md, err := encodeMetadata(q.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata filter: %w", err)
	}
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}

	query := qRecordQueryAsc
	if q.Desc {
		query = qRecordQueryDesc
	}
	rows, err := r.db.conn(ctx).Query(ctx, query, q.Prefix, string(md), r.clock.Now(), limit, q.From)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make([]record.Entry, 0)
	for rows.Next() {
		var e record.Entry
		if err := scanRecord(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *RecordRepoImpl) Ping(ctx context.Context) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	return r.db.Pool.Ping(ctx)
}

// Prune deletes rows whose retention deadline has passed.
func (r *RecordRepoImpl) Prune(ctx context.Context) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.conn(ctx).Exec(ctx, qRecordPrune, r.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return tag.RowsAffected(), nil
}
