// Package store handles SQLite persistence of fit results.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/pronyfit/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a fit id does not exist.
var ErrNotFound = errors.New("fit not found")

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for fit history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fits (
			id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			kind TEXT NOT NULL,
			terms INTEGER NOT NULL,
			algorithm TEXT NOT NULL,
			source TEXT NOT NULL,
			data_hash TEXT NOT NULL,
			n_samples INTEGER NOT NULL,
			r_squared REAL,
			cost REAL NOT NULL,
			iterations INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fit_params (
			fit_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			std_error REAL,
			PRIMARY KEY (fit_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS fit_samples (
			fit_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			reduced_time REAL NOT NULL,
			response REAL NOT NULL,
			PRIMARY KEY (fit_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fits_created_at ON fits(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_fits_kind ON fits(kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertFit stores a fit with its parameters and samples.
func (s *Store) InsertFit(ctx context.Context, rec model.FitRecord) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO fits (run_id, created_at, kind, terms, algorithm, source, data_hash, n_samples, r_squared, cost, iterations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.Spec.Kind.String(),
		rec.Spec.Terms,
		rec.Algorithm,
		rec.Source,
		rec.DataHash,
		len(rec.Samples),
		nullFloat(rec.RSquared),
		rec.Cost,
		rec.Iterations,
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err = insertRows(ctx, tx,
		`INSERT INTO fit_params (fit_id, idx, name, value, std_error) VALUES (?, ?, ?, ?, ?)`,
		len(rec.Params), func(i int) []any {
			p := rec.Params[i]
			return []any{id, i, p.Name, p.Value, nullFloat(p.StdError)}
		}); err != nil {
		return 0, err
	}
	if err = insertRows(ctx, tx,
		`INSERT INTO fit_samples (fit_id, idx, reduced_time, response) VALUES (?, ?, ?, ?)`,
		len(rec.Samples), func(i int) []any {
			smp := rec.Samples[i]
			return []any{id, i, smp.ReducedTime, smp.Response}
		}); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, query string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}
	return nil
}

const summaryColumns = `id, run_id, created_at, kind, terms, algorithm, source, data_hash, n_samples, r_squared, cost, iterations`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (model.FitSummary, error) {
	var (
		sum       model.FitSummary
		createdAt string
		kind      string
		r2        sql.NullFloat64
	)
	if err := row.Scan(&sum.ID, &sum.RunID, &createdAt, &kind, &sum.Spec.Terms, &sum.Algorithm,
		&sum.Source, &sum.DataHash, &sum.NSamples, &r2, &sum.Cost, &sum.Iterations); err != nil {
		return model.FitSummary{}, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return model.FitSummary{}, err
	}
	sum.CreatedAt = parsed
	sum.Spec.Kind, err = model.ParseKind(kind)
	if err != nil {
		return model.FitSummary{}, err
	}
	sum.RSquared = floatOr(r2, math.NaN())
	return sum, nil
}

// ListFits returns fit summaries filtered by cfg, oldest first.
func (s *Store) ListFits(ctx context.Context, cfg model.HistoryConfig) ([]model.FitSummary, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Kind != "" {
		kind, err := model.ParseKind(cfg.Kind)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, "kind = ?")
		args = append(args, kind.String())
	}
	if cfg.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT %s
		FROM fits
		WHERE %s
		ORDER BY created_at ASC, id ASC`, summaryColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var fits []model.FitSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		fits = append(fits, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fits, nil
}

// GetFit loads a fit with its parameters and samples.
func (s *Store) GetFit(ctx context.Context, id int64) (model.FitRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM fits WHERE id = ?`, summaryColumns), id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FitRecord{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return model.FitRecord{}, err
	}
	rec := model.FitRecord{FitSummary: sum}

	rec.Params, err = s.params(ctx, id)
	if err != nil {
		return model.FitRecord{}, err
	}
	rec.Samples, err = s.samples(ctx, id)
	if err != nil {
		return model.FitRecord{}, err
	}
	return rec, nil
}

func (s *Store) params(ctx context.Context, id int64) ([]model.Param, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, std_error FROM fit_params WHERE fit_id = ? ORDER BY idx ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var out []model.Param
	for rows.Next() {
		var p model.Param
		var se sql.NullFloat64
		if err := rows.Scan(&p.Name, &p.Value, &se); err != nil {
			return nil, err
		}
		p.StdError = floatOr(se, math.Inf(1))
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) samples(ctx context.Context, id int64) ([]model.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reduced_time, response FROM fit_samples WHERE fit_id = ? ORDER BY idx ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var out []model.Sample
	for rows.Next() {
		var smp model.Sample
		if err := rows.Scan(&smp.ReducedTime, &smp.Response); err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// nullFloat stores non-finite values as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOr(v sql.NullFloat64, fallback float64) float64 {
	if !v.Valid {
		return fallback
	}
	return v.Float64
}
