package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/optima/verdict"
)

// DefaultHistoryPath is where the CLI keeps its run history.
const DefaultHistoryPath = "optima_cfg/history.db"

// ErrRunNotFound is returned by Get for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one pipeline run as kept in the history.
type RunRecord struct {
	ID             string
	ProblemDir     string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Winner         string
	Objective      *float64
	Direction      string
	OptiMUSStatus  string
	OptiMindStatus string
	Verdict        json.RawMessage
	Error          string
}

// NewRunRecord starts a record with a fresh id.
func NewRunRecord(problemDir string, started time.Time) *RunRecord {
	return &RunRecord{ID: uuid.NewString(), ProblemDir: problemDir, StartedAt: started.UTC()}
}

// Finish stamps the record with the verdict (nil when none was produced) and
// the terminal error, if any.
func (r *RunRecord) Finish(v *verdict.Verdict, runErr error, finished time.Time) error {
	t := finished.UTC()
	r.FinishedAt = &t
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Verdict = data
	r.Winner = v.Winner
	r.Objective = v.ObjectiveValue
	r.Direction = v.Direction
	r.OptiMUSStatus = v.Solvers.OptiMUS.Status
	r.OptiMindStatus = v.Solvers.OptiMind.Status
	return nil
}

// RunStore persists run records between invocations.
type RunStore interface {
	Record(ctx context.Context, run *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	List(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// SQLiteRunStore keeps the run history in a SQLite database.
type SQLiteRunStore struct {
	db *sql.DB
}

// OpenSQLiteRunStore opens or creates the database at path.
func OpenSQLiteRunStore(path string) (*SQLiteRunStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteRunStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run history: %w", err)
	}
	return store, nil
}

func (s *SQLiteRunStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		problem_dir TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		winner TEXT,
		objective REAL,
		direction TEXT,
		optimus_status TEXT,
		optimind_status TEXT,
		verdict_json TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteRunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts run by id.
func (s *SQLiteRunStore) Record(ctx context.Context, run *RunRecord) error {
	if run == nil || run.ID == "" {
		return errors.New("run id required")
	}
	query := `
	INSERT INTO runs (
		id, problem_dir, started_at, finished_at, winner, objective, direction,
		optimus_status, optimind_status, verdict_json, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		problem_dir=excluded.problem_dir,
		started_at=excluded.started_at,
		finished_at=excluded.finished_at,
		winner=excluded.winner,
		objective=excluded.objective,
		direction=excluded.direction,
		optimus_status=excluded.optimus_status,
		optimind_status=excluded.optimind_status,
		verdict_json=excluded.verdict_json,
		error=excluded.error
	`
	var verdictJSON sql.NullString
	if len(run.Verdict) > 0 {
		verdictJSON = sql.NullString{String: string(run.Verdict), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.ProblemDir,
		run.StartedAt.UTC(),
		nullTime(run.FinishedAt),
		nullString(run.Winner),
		nullFloat(run.Objective),
		nullString(run.Direction),
		nullString(run.OptiMUSStatus),
		nullString(run.OptiMindStatus),
		verdictJSON,
		nullString(run.Error),
	)
	return err
}

const selectRuns = `
	SELECT id, problem_dir, started_at, finished_at, winner, objective, direction,
		optimus_status, optimind_status, verdict_json, error
	FROM runs`

// Get loads one run.
func (s *SQLiteRunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteRunStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	query := selectRuns + " ORDER BY started_at DESC, id"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		run                                                RunRecord
		finished                                           sql.NullTime
		winner, direction, optStatus, mindStatus, runError sql.NullString
		verdictJSON                                        sql.NullString
		objective                                          sql.NullFloat64
	)
	if err := row.Scan(&run.ID, &run.ProblemDir, &run.StartedAt, &finished, &winner, &objective,
		&direction, &optStatus, &mindStatus, &verdictJSON, &runError); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time.UTC()
		run.FinishedAt = &t
	}
	if objective.Valid {
		v := objective.Float64
		run.Objective = &v
	}
	if verdictJSON.Valid {
		run.Verdict = json.RawMessage(verdictJSON.String)
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Winner = winner.String
	run.Direction = direction.String
	run.OptiMUSStatus = optStatus.String
	run.OptiMindStatus = mindStatus.String
	run.Error = runError.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
