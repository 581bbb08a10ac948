package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore persists alerts in a single table. Saves replace the full
// mapping inside one transaction, so a crash mid-save leaves the previous
// contents visible.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

const alertsSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL,
	kind            TEXT NOT NULL,
	condition       TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	parameters      JSONB,
	created_at      TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ,
	enabled         BOOLEAN NOT NULL DEFAULT TRUE,
	one_time        BOOLEAN NOT NULL DEFAULT TRUE,
	triggered_count INTEGER NOT NULL DEFAULT 0,
	last_triggered  TIMESTAMPTZ
)`

// NewPostgresStore connects to Postgres and ensures the alerts table exists
func NewPostgresStore(ctx context.Context, connString string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	if _, err := pool.Exec(ctx, alertsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure alerts schema: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "PostgresStore").Logger(),
	}, nil
}

// Load reads every alert row, skipping rows whose enum columns no longer
// parse rather than failing the whole load
func (s *PostgresStore) Load(ctx context.Context) (map[string]*Alert, error) {
	query := `
		SELECT id, symbol, kind, condition, description, parameters,
		       created_at, expires_at, enabled, one_time, triggered_count, last_triggered
		FROM alerts`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	defer rows.Close()

	alerts := make(map[string]*Alert)
	for rows.Next() {
		var (
			a          Alert
			kind, cond string
			params     []byte
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &kind, &cond, &a.Description, &params,
			&a.CreatedAt, &a.ExpiresAt, &a.Enabled, &a.OneTime, &a.TriggeredCount, &a.LastTriggered); err != nil {
			return nil, &PersistenceError{Op: "load", Err: err}
		}

		a.Kind, err = ParseKind(kind)
		if err != nil {
			s.logger.Warn().Str("alert_id", a.ID).Err(err).Msg("Skipping malformed alert row")
			continue
		}
		a.Condition, err = ParseCondition(cond)
		if err != nil {
			s.logger.Warn().Str("alert_id", a.ID).Err(err).Msg("Skipping malformed alert row")
			continue
		}

		if len(params) > 0 {
			if err := json.Unmarshal(params, &a.Parameters); err != nil {
				s.logger.Warn().Str("alert_id", a.ID).Err(err).Msg("Skipping alert row with corrupt parameters")
				continue
			}
		}

		alerts[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	return alerts, nil
}

// Save replaces the full table contents in one transaction
func (s *PostgresStore) Save(ctx context.Context, alerts map[string]*Alert) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM alerts`); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	batch := &pgx.Batch{}
	for _, a := range alerts {
		var params []byte
		if a.Parameters != nil {
			params, err = json.Marshal(a.Parameters)
			if err != nil {
				return &PersistenceError{Op: "save", Err: err}
			}
		}

		batch.Queue(`
			INSERT INTO alerts (
				id, symbol, kind, condition, description, parameters,
				created_at, expires_at, enabled, one_time, triggered_count, last_triggered
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			a.ID, a.Symbol, string(a.Kind), string(a.Condition), a.Description, params,
			a.CreatedAt, a.ExpiresAt, a.Enabled, a.OneTime, a.TriggeredCount, a.LastTriggered)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return &PersistenceError{Op: "save", Err: err}
			}
		}
		if err := br.Close(); err != nil {
			return &PersistenceError{Op: "save", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
