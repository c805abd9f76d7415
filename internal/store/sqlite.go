package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reputato/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	company    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	verdict    TEXT,
	sources    TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS verdict_cache (
	id         TEXT PRIMARY KEY,
	company    TEXT NOT NULL UNIQUE,
	verdict    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_company ON runs(company);
CREATE INDEX IF NOT EXISTS idx_verdict_cache_company ON verdict_cache(company);
CREATE INDEX IF NOT EXISTS idx_verdict_cache_expires_at ON verdict_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, company string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, company, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, company, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Company:   company,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, verdict *model.CompanyVerdict, sources []model.FetchOutcome) error {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verdict")
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET verdict = ?, sources = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(verdictJSON), string(sourcesJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company, status, verdict, sources, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, company, status, verdict, sources, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Company != "" {
		query += ` AND company = ?`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedVerdict(ctx context.Context, company string) (*model.CompanyVerdict, error) {
	// The expiry bound is passed in rather than computed with datetime('now')
	// so both sides use the driver's time encoding.
	row := s.db.QueryRowContext(ctx,
		`SELECT verdict FROM verdict_cache
		 WHERE company = ? AND expires_at > ?
		 ORDER BY cached_at DESC LIMIT 1`,
		company, time.Now().UTC(),
	)

	var verdictJSON string
	err := row.Scan(&verdictJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached verdict")
	}

	var v model.CompanyVerdict
	if err := json.Unmarshal([]byte(verdictJSON), &v); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached verdict")
	}
	return &v, nil
}

func (s *SQLiteStore) SetCachedVerdict(ctx context.Context, company string, verdict *model.CompanyVerdict, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verdict")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdict_cache (id, company, verdict, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(company) DO UPDATE SET verdict = excluded.verdict, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		id, company, string(verdictJSON), now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: set cached verdict")
}

func (s *SQLiteStore) DeleteExpiredVerdicts(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM verdict_cache WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired verdicts")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var verdictJSON, sourcesJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Company, &r.Status, &verdictJSON, &sourcesJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if verdictJSON.Valid {
		r.Verdict = &model.CompanyVerdict{}
		if err := json.Unmarshal([]byte(verdictJSON.String), r.Verdict); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal verdict")
		}
	}
	if sourcesJSON.Valid {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &r.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}
