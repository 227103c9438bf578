package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/donation-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'processing',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS donations (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL REFERENCES batches(id),
	status     TEXT NOT NULL,
	sent       INTEGER NOT NULL DEFAULT 0,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_donations_batch_id ON donations(batch_id);
CREATE INDEX IF NOT EXISTS idx_donations_status ON donations(status);
CREATE INDEX IF NOT EXISTS idx_donations_sent ON donations(sent);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, source string) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, source, string(model.BatchStatusProcessing), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch")
	}

	return &model.Batch{
		ID:        id,
		Source:    source,
		Status:    model.BatchStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteBatch(ctx context.Context, batchID string, status model.BatchStatus, summary *model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete batch %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, summary, created_at, updated_at FROM batches WHERE id = ?`,
		batchID,
	)
	return scanBatch(row)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	query := `SELECT id, source, status, summary, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: list batches rows")
}

func (s *SQLiteStore) SaveDonations(ctx context.Context, donations []model.EnrichedDonation) error {
	if len(donations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, d := range donations {
		recordJSON, err := json.Marshal(d)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal donation")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO donations (id, batch_id, status, sent, record, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET status = excluded.status, record = excluded.record, updated_at = excluded.updated_at`,
			d.ID, d.BatchID, string(d.Status), boolToInt(d.Flags.Sent), string(recordJSON), now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save donation %s", d.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit donations")
}

func (s *SQLiteStore) GetDonation(ctx context.Context, id string) (*model.EnrichedDonation, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM donations WHERE id = ?`, id,
	).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get donation %s", id)
	}
	return unmarshalDonation(recordJSON)
}

func (s *SQLiteStore) ListDonations(ctx context.Context, filter DonationFilter) ([]model.EnrichedDonation, error) {
	query := `SELECT record FROM donations WHERE 1=1`
	var args []any

	if filter.BatchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Unsent {
		query += ` AND sent = 0`
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list donations")
	}
	defer rows.Close()

	var donations []model.EnrichedDonation
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan donation")
		}
		d, err := unmarshalDonation(recordJSON)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, eris.Wrap(rows.Err(), "sqlite: list donations rows")
}

func (s *SQLiteStore) UpdateDonation(ctx context.Context, d model.EnrichedDonation) error {
	recordJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal donation")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE donations SET status = ?, sent = ?, record = ?, updated_at = ? WHERE id = ?`,
		string(d.Status), boolToInt(d.Flags.Sent), string(recordJSON), time.Now().UTC(), d.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update donation %s", d.ID)
	}
	return checkRowsAffected(res, "donation", d.ID)
}

func (s *SQLiteStore) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE donations SET sent = 1, record = json_set(record, '$.flags.sent', json('true')), updated_at = ? WHERE id = ?`,
			now, id,
		); err != nil {
			return eris.Wrapf(err, "sqlite: mark sent %s", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit mark sent")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*model.Batch, error) {
	var b model.Batch
	var status string
	var summaryJSON sql.NullString

	err := row.Scan(&b.ID, &b.Source, &status, &summaryJSON, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan batch")
	}

	b.Status = model.BatchStatus(status)
	if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
		var summary model.BatchSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		b.Summary = &summary
	}
	return &b, nil
}

func unmarshalDonation(recordJSON string) (*model.EnrichedDonation, error) {
	var d model.EnrichedDonation
	if err := json.Unmarshal([]byte(recordJSON), &d); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal donation")
	}
	return &d, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "store: %s %s", kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
