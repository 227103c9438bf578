package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/donation-cli/internal/model"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// implements it for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool PgxPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'processing',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS donations (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL REFERENCES batches(id),
	status     TEXT NOT NULL,
	sent       BOOLEAN NOT NULL DEFAULT false,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_donations_batch_id ON donations(batch_id);
CREATE INDEX IF NOT EXISTS idx_donations_status ON donations(status);
CREATE INDEX IF NOT EXISTS idx_donations_sent ON donations(sent);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, source string) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO batches (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, source, string(model.BatchStatusProcessing), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch")
	}

	return &model.Batch{
		ID:        id,
		Source:    source,
		Status:    model.BatchStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteBatch(ctx context.Context, batchID string, status model.BatchStatus, summary *model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete batch %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: batch %s", batchID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, summary, created_at, updated_at FROM batches WHERE id = $1`,
		batchID,
	)
	return scanBatchPG(row)
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	query := `SELECT id, source, status, summary, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	query += placeholders(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatchPG(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: list batches rows")
}

func (s *PostgresStore) SaveDonations(ctx context.Context, donations []model.EnrichedDonation) error {
	now := time.Now().UTC()
	for _, d := range donations {
		recordJSON, err := json.Marshal(d)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal donation")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO donations (id, batch_id, status, sent, record, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
			d.ID, d.BatchID, string(d.Status), d.Flags.Sent, recordJSON, now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: save donation %s", d.ID)
		}
	}
	return nil
}

func (s *PostgresStore) GetDonation(ctx context.Context, id string) (*model.EnrichedDonation, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM donations WHERE id = $1`, id,
	).Scan(&recordJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get donation %s", id)
	}
	return unmarshalDonation(string(recordJSON))
}

func (s *PostgresStore) ListDonations(ctx context.Context, filter DonationFilter) ([]model.EnrichedDonation, error) {
	query := `SELECT record FROM donations WHERE 1=1`
	var args []any

	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		query += placeholders(` AND batch_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += placeholders(` AND status = $%d`, len(args))
	}
	if filter.Unsent {
		query += ` AND NOT sent`
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit, filter.Offset)
	query += placeholders(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list donations")
	}
	defer rows.Close()

	var donations []model.EnrichedDonation
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan donation")
		}
		d, err := unmarshalDonation(string(recordJSON))
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, eris.Wrap(rows.Err(), "postgres: list donations rows")
}

func (s *PostgresStore) UpdateDonation(ctx context.Context, d model.EnrichedDonation) error {
	recordJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal donation")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE donations SET status = $1, sent = $2, record = $3, updated_at = $4 WHERE id = $5`,
		string(d.Status), d.Flags.Sent, recordJSON, time.Now().UTC(), d.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update donation %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: donation %s", d.ID)
	}
	return nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE donations SET sent = true,
		        record = jsonb_set(record, '{flags,sent}', 'true'::jsonb),
		        updated_at = $1
		 WHERE id = ANY($2)`,
		time.Now().UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark sent")
}

func placeholders(format string, nums ...int) string {
	args := make([]any, len(nums))
	for i, n := range nums {
		args[i] = n
	}
	return fmt.Sprintf(format, args...)
}

func scanBatchPG(row pgx.Row) (*model.Batch, error) {
	var b model.Batch
	var status string
	var summaryJSON []byte

	err := row.Scan(&b.ID, &b.Source, &status, &summaryJSON, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan batch")
	}

	b.Status = model.BatchStatus(status)
	if len(summaryJSON) > 0 && string(summaryJSON) != "null" {
		var summary model.BatchSummary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
		b.Summary = &summary
	}
	return &b, nil
}
