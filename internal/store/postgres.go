package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reputato/internal/db"
	"github.com/sells-group/reputato/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":         `INSERT INTO runs (id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status":  `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":       `UPDATE runs SET verdict = $1, sources = $2, status = $3, updated_at = $4 WHERE id = $5`,
	"fail_run":           `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_run":            `SELECT id, company, status, verdict, sources, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_cached_verdict": `SELECT verdict FROM verdict_cache WHERE company = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
	"set_cached_verdict": `INSERT INTO verdict_cache (id, company, verdict, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (company) DO UPDATE SET verdict = EXCLUDED.verdict, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	verdict    JSONB,
	sources    JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verdict_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company    TEXT NOT NULL UNIQUE,
	verdict    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_company ON runs(company);
CREATE INDEX IF NOT EXISTS idx_verdict_cache_company ON verdict_cache(company);
CREATE INDEX IF NOT EXISTS idx_verdict_cache_expires_at ON verdict_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, company string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, company, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Company:   company,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, verdict *model.CompanyVerdict, sources []model.FetchOutcome) error {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verdict")
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET verdict = $1, sources = $2, status = $3, updated_at = $4 WHERE id = $5`,
		verdictJSON, sourcesJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var verdictJSON, sourcesJSON []byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, company, status, verdict, sources, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Company, &r.Status, &verdictJSON, &sourcesJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(verdictJSON) > 0 {
		r.Verdict = &model.CompanyVerdict{}
		if err := json.Unmarshal(verdictJSON, r.Verdict); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal verdict")
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, company, status, verdict, sources, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Company != "" {
		query += fmt.Sprintf(` AND company = $%d`, argIdx)
		args = append(args, filter.Company)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var verdictJSON, sourcesJSON []byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &r.Company, &r.Status, &verdictJSON, &sourcesJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(verdictJSON) > 0 {
			r.Verdict = &model.CompanyVerdict{}
			if err := json.Unmarshal(verdictJSON, r.Verdict); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal verdict")
			}
		}
		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal sources")
			}
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCachedVerdict(ctx context.Context, company string) (*model.CompanyVerdict, error) {
	var verdictJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT verdict FROM verdict_cache WHERE company = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
		company,
	).Scan(&verdictJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached verdict")
	}

	var v model.CompanyVerdict
	if err := json.Unmarshal(verdictJSON, &v); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached verdict")
	}
	return &v, nil
}

func (s *PostgresStore) SetCachedVerdict(ctx context.Context, company string, verdict *model.CompanyVerdict, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verdict")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO verdict_cache (id, company, verdict, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (company) DO UPDATE SET verdict = EXCLUDED.verdict, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		id, company, verdictJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached verdict")
}

func (s *PostgresStore) DeleteExpiredVerdicts(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM verdict_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired verdicts")
	}
	return int(tag.RowsAffected()), nil
}
