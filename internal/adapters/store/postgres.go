package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/pkg/metrics"
)

// Default connection pool bounds.
const (
	defaultMaxOpenConns = 8
	defaultMaxIdleConns = 4
)

// schemaDDL is idempotent; the table is append-only so no migrations beyond
// creation are ever needed.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS score_records (
	id         UUID PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	user_id    TEXT NOT NULL,
	successful BOOLEAN NOT NULL,
	day_first  BOOLEAN NOT NULL,
	user_first BOOLEAN NOT NULL
)`

const (
	insertRecordSQL = `INSERT INTO score_records (id, ts, user_id, successful, day_first, user_first)
VALUES ($1, $2, $3, $4, $5, $6)`

	selectAllSQL = `SELECT id, ts, user_id, successful, day_first, user_first
FROM score_records ORDER BY ts, id`
)

// recordRow mirrors the score_records table.
type recordRow struct {
	ID         string    `db:"id"`
	TS         time.Time `db:"ts"`
	UserID     string    `db:"user_id"`
	Successful bool      `db:"successful"`
	DayFirst   bool      `db:"day_first"`
	UserFirst  bool      `db:"user_first"`
}

// Postgres implements Store over a pooled Postgres connection.
type Postgres struct {
	db  *sqlx.DB
	now func() time.Time
}

// PostgresOption applies a configuration option to the Postgres store.
type PostgresOption func(*Postgres)

// WithClock sets the time source used to stamp new records.
func WithClock(now func() time.Time) PostgresOption {
	return func(p *Postgres) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPostgres connects to the database, bounds the connection pool, and
// ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string, maxOpen, maxIdle int, opts ...PostgresOption) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	p := &Postgres{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// SaveSuccess appends a successful record for a qualifying event.
func (p *Postgres) SaveSuccess(ctx context.Context, userID string, dayFirst, userFirst bool) (model.ScoreRecord, error) {
	record := model.NewSuccess(userID, dayFirst, userFirst, p.now())
	if err := p.insert(ctx, record); err != nil {
		metrics.RecordStoreError("save_success")
		return model.ScoreRecord{}, fmt.Errorf("save success record: %w", err)
	}
	return record, nil
}

// SaveFailure appends a failed record for a non-qualifying event.
func (p *Postgres) SaveFailure(ctx context.Context, userID string) (model.ScoreRecord, error) {
	record := model.NewFailure(userID, p.now())
	if err := p.insert(ctx, record); err != nil {
		metrics.RecordStoreError("save_failure")
		return model.ScoreRecord{}, fmt.Errorf("save failure record: %w", err)
	}
	return record, nil
}

func (p *Postgres) insert(ctx context.Context, r model.ScoreRecord) error {
	start := time.Now()
	_, err := p.db.ExecContext(ctx, insertRecordSQL,
		r.ID.String(), r.TS, r.UserID, r.Successful, r.DayFirst, r.UserFirst)
	metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	return err
}

// LoadAll returns the full record history in insertion order.
func (p *Postgres) LoadAll(ctx context.Context) ([]model.ScoreRecord, error) {
	var rows []recordRow
	if err := p.db.SelectContext(ctx, &rows, selectAllSQL); err != nil {
		metrics.RecordStoreError("load_all")
		return nil, fmt.Errorf("load score records: %w", err)
	}

	records := make([]model.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("parse record id %q: %w", row.ID, err)
		}
		records = append(records, model.ScoreRecord{
			ID:         id,
			TS:         row.TS,
			UserID:     row.UserID,
			Successful: row.Successful,
			DayFirst:   row.DayFirst,
			UserFirst:  row.UserFirst,
		})
	}
	return records, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}
