// Package store persists generated terms in SQLite and exports them as CSV.
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/dice/expr"
)

const (
	tableRuns  = "runs"
	tableTerms = "terms"

	// FnameTerms is the name of the CSV file written by WriteCSV.
	FnameTerms = "terms.csv"
)

// ErrNoRun is returned when a run does not exist.
var ErrNoRun = errors.New("no such run")

// Store is a SQLite database of runs and their terms.
type Store struct {
	Path string

	db *sql.DB
}

// Run is one invocation of the generator with a given configuration.
type Run struct {
	ID      string
	Config  string
	Created time.Time
	Done    bool
}

// Term is a tensor together with where it came from and the quantity it contributes to.
type Term struct {
	// Source is the central operator, such as "oo vv", or the partial trace block, such as "oo".
	Source string
	Depth  int
	// Class is the connectivity class of the diagrams, empty for partial traces.
	Class    string
	Residual bool
	Target   string
	Tensor   expr.Tensor
}

// Open opens the database at path, creating the tables if needed.
func Open(path string) (*Store, error) {
	db, err := newDB(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Store{Path: path, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStrs := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, config TEXT, created INTEGER, done INTEGER) STRICT`, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run TEXT REFERENCES %s(id),
			position INTEGER,
			source TEXT,
			depth INTEGER,
			class TEXT,
			residual INTEGER,
			target TEXT,
			weight TEXT,
			tensor TEXT,
			PRIMARY KEY (run, position)) STRICT`, tableTerms, tableRuns),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}

// BeginRun records a new run of config and returns its id.
func (s *Store) BeginRun(ctx context.Context, config string) (string, error) {
	id := uuid.NewString()
	sqlStr := fmt.Sprintf(`INSERT INTO %s (id, config, created, done) VALUES (?, ?, ?, 0)`, tableRuns)
	if _, err := s.db.ExecContext(ctx, sqlStr, id, config, time.Now().Unix()); err != nil {
		return "", errors.Wrap(err, "")
	}
	return id, nil
}

// FinishRun marks a run as done.
func (s *Store) FinishRun(ctx context.Context, id string) error {
	sqlStr := fmt.Sprintf(`UPDATE %s SET done=1 WHERE id=?`, tableRuns)
	res, err := s.db.ExecContext(ctx, sqlStr, id)
	if err != nil {
		return errors.Wrap(err, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "")
	}
	if n == 0 {
		return errors.Wrapf(ErrNoRun, "%s", id)
	}
	return nil
}

// Done returns the latest finished run of config.
func (s *Store) Done(ctx context.Context, config string) (string, bool, error) {
	sqlStr := fmt.Sprintf(`SELECT id FROM %s WHERE config=? AND done=1 ORDER BY created DESC, rowid DESC LIMIT 1`, tableRuns)
	var id string
	err := s.db.QueryRowContext(ctx, sqlStr, config).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrap(err, "")
	default:
		return id, true, nil
	}
}

// Runs lists all runs, latest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	sqlStr := fmt.Sprintf(`SELECT id, config, created, done FROM %s ORDER BY created DESC, rowid DESC`, tableRuns)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.Config, &created, &r.Done); err != nil {
			return nil, errors.Wrap(err, "")
		}
		r.Created = time.Unix(created, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return runs, nil
}

// PutTerms appends terms to a run.
func (s *Store) PutTerms(ctx context.Context, run string, terms []Term) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	var start int
	sqlStr := fmt.Sprintf(`SELECT count(1) FROM %s WHERE run=?`, tableTerms)
	if err := tx.QueryRowContext(ctx, sqlStr, run).Scan(&start); err != nil {
		return errors.Wrap(err, "")
	}

	sqlStr = fmt.Sprintf(`INSERT INTO %s (run, position, source, depth, class, residual, target, weight, tensor) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, tableTerms)
	for i, t := range terms {
		b, err := json.Marshal(t.Tensor)
		if err != nil {
			return errors.Wrap(err, "")
		}
		args := []any{run, start + i, t.Source, t.Depth, t.Class, t.Residual, t.Target, t.Tensor.Weight.RatString(), string(b)}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Terms returns the terms of a run in the order they were put.
func (s *Store) Terms(ctx context.Context, run string) ([]Term, error) {
	sqlStr := fmt.Sprintf(`SELECT source, depth, class, residual, target, tensor FROM %s WHERE run=? ORDER BY position`, tableTerms)
	rows, err := s.db.QueryContext(ctx, sqlStr, run)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	terms := make([]Term, 0)
	for rows.Next() {
		var t Term
		var b string
		if err := rows.Scan(&t.Source, &t.Depth, &t.Class, &t.Residual, &t.Target, &b); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if err := json.Unmarshal([]byte(b), &t.Tensor); err != nil {
			return nil, errors.Wrap(err, b)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return terms, nil
}

// WriteCSV writes the terms of a run to dir/terms.csv, one row per term.
func (s *Store) WriteCSV(ctx context.Context, run, dir string) error {
	terms, err := s.Terms(ctx, run)
	if err != nil {
		return errors.Wrap(err, "")
	}

	f, err := os.Create(filepath.Join(dir, FnameTerms))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	if err1 := w.Write([]string{"source", "depth", "class", "residual", "target", "weight", "amplitudes", "external", "antisymmetrizers"}); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	for _, t := range terms {
		if err != nil {
			break
		}
		if err1 := w.Write(Record(t)); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

// Record returns the CSV fields of a term.
func Record(t Term) []string {
	amps := make([]string, len(t.Tensor.Amplitudes))
	for i, a := range t.Tensor.Amplitudes {
		amps[i] = fmt.Sprintf("%s(%s)", a.FullName(), a.ReducedString())
	}
	external := ""
	if t.Tensor.Rank() > 0 {
		external = letters(t.Tensor.External[0]) + " " + letters(t.Tensor.External[1])
	}
	asyms := make([]string, len(t.Tensor.Antisymmetrizers))
	for i, a := range t.Tensor.Antisymmetrizers {
		asyms[i] = a.String()
	}
	return []string{
		t.Source,
		strconv.Itoa(t.Depth),
		t.Class,
		strconv.FormatBool(t.Residual),
		t.Target,
		t.Tensor.Weight.RatString(),
		strings.Join(amps, " "),
		external,
		strings.Join(asyms, " "),
	}
}

func letters(row []expr.Symbol) string {
	var b strings.Builder
	for _, x := range row {
		b.WriteByte(x.Letter)
	}
	return b.String()
}
