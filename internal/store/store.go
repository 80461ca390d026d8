// Package store is the single-writer persistence layer for Feedback
// records: an embedded SQLite database opened in WAL mode, with goose
// migrations and a process-wide write gate serializing every commit.
// Reads are never gated.
package store

import (
	"context"
	"database/sql"
	"embed"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a sqlx handle to the feedback database. writeMu is the
// process-wide write gate from spec §4.D: every commit acquires it, reads
// never do.
type Store struct {
	db      *sqlx.DB
	writeMu sync.Mutex
	log     *logrus.Entry
}

// Open connects to the SQLite database at dsn, enables WAL mode and a busy
// timeout suited to a single-writer workload, and applies pending goose
// migrations.
func Open(dsn string, log *logrus.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, errors.Wrap(err, "set goose dialect")
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, errors.Wrap(err, "apply migrations")
	}

	return &Store{db: db, log: log.WithField("component", "store")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByHash reads a record by its content hash. Reads are not gated.
func (s *Store) FindByHash(ctx context.Context, hash string) (*feedback.Feedback, error) {
	var f feedback.Feedback
	err := s.db.GetContext(ctx, &f, `SELECT * FROM feedback WHERE content_hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "find by hash: "+err.Error())
	}
	return &f, nil
}

// Get reads a record by id. Reads are not gated.
func (s *Store) Get(ctx context.Context, id string) (*feedback.Feedback, error) {
	var f feedback.Feedback
	err := s.db.GetContext(ctx, &f, `SELECT * FROM feedback WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "get feedback: "+err.Error())
	}
	return &f, nil
}

// ListBySource returns up to limit records with the given source, oldest
// first — used by the reconciliation scheduler to find fallback-labeled
// records to upgrade.
func (s *Store) ListBySource(ctx context.Context, source feedback.Source, limit int) ([]feedback.Feedback, error) {
	var rows []feedback.Feedback
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM feedback WHERE source = ? ORDER BY created_at ASC LIMIT ?`, source, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "list by source: "+err.Error())
	}
	return rows, nil
}

// List returns records, most recent first, optionally filtered by status
// and/or department, for the review-queue surfaces.
func (s *Store) List(ctx context.Context, status feedback.Status, department feedback.Department, limit, offset int) ([]feedback.Feedback, error) {
	query := `SELECT * FROM feedback WHERE 1=1`
	var args []interface{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if department != "" {
		query += ` AND department = ?`
		args = append(args, department)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []feedback.Feedback
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "list feedback: "+err.Error())
	}
	return rows, nil
}

// ReviewQueue returns every record flagged needs_review, oldest first, for
// the operator review surfaces.
func (s *Store) ReviewQueue(ctx context.Context) ([]feedback.Feedback, error) {
	var rows []feedback.Feedback
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM feedback WHERE needs_review = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "review queue: "+err.Error())
	}
	return rows, nil
}

// Stats summarizes the store for the operator-facing stats endpoint.
type Stats struct {
	Total           int            `db:"total" json:"total"`
	Open            int            `db:"open" json:"open"`
	Resolved        int            `db:"resolved" json:"resolved"`
	NeedsReview     int            `db:"needs_review" json:"needs_review"`
	FallbackPending int            `db:"fallback_pending" json:"fallback_pending"`
	ByDepartment    map[string]int `json:"by_department"`
}

// Stats computes aggregate counts across the whole feedback table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'OPEN' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'RESOLVED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN needs_review THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = 'FALLBACK' THEN 1 ELSE 0 END), 0)
		FROM feedback`)
	if err := row.Scan(&st.Total, &st.Open, &st.Resolved, &st.NeedsReview, &st.FallbackPending); err != nil {
		return Stats{}, apperrors.Wrap(apperrors.ErrStoreUnavailable, "scan stats: "+err.Error())
	}

	st.ByDepartment = make(map[string]int)
	deptRows, err := s.db.QueryxContext(ctx, `SELECT department, COUNT(*) AS c FROM feedback GROUP BY department`)
	if err != nil {
		return Stats{}, apperrors.Wrap(apperrors.ErrStoreUnavailable, "stats by department: "+err.Error())
	}
	defer deptRows.Close()
	for deptRows.Next() {
		var dept string
		var count int
		if err := deptRows.Scan(&dept, &count); err != nil {
			return Stats{}, apperrors.Wrap(apperrors.ErrStoreUnavailable, "scan department stats: "+err.Error())
		}
		st.ByDepartment[dept] = count
	}
	return st, nil
}

// Insert commits a new record under the write gate, implementing the
// dedup protocol from spec §4.D: a pre-check read happens in the caller
// (the ingestion pipeline), but Insert itself still treats a unique-index
// violation as "someone else won the race" and returns the existing row
// with a duplicate signal rather than failing the request.
func (s *Store) Insert(ctx context.Context, f *feedback.Feedback) (*feedback.Feedback, bool, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO feedback (
			id, created_at, raw_content, content_hash, sentiment, topics,
			is_urgent, confidence_score, source, ai_provider, department,
			status, priority, resolution_note, needs_review
		) VALUES (
			:id, :created_at, :raw_content, :content_hash, :sentiment, :topics,
			:is_urgent, :confidence_score, :source, :ai_provider, :department,
			:status, :priority, :resolution_note, :needs_review
		)`, f)
	if err != nil {
		if isUniqueConflict(err) {
			conflictErr := apperrors.Wrap(apperrors.ErrUniqueConflict, "insert lost race on content_hash")
			existing, readErr := s.FindByHash(ctx, f.ContentHash)
			if readErr != nil {
				return nil, false, readErr
			}
			if existing != nil {
				s.log.WithError(conflictErr).WithField("content_hash", f.ContentHash).
					Debug("insert lost race against a concurrent writer, returning existing row")
				return existing, true, nil
			}
			return nil, false, conflictErr
		}
		return nil, false, apperrors.Wrap(apperrors.ErrStoreUnavailable, "insert feedback: "+err.Error())
	}

	return f, false, nil
}

// Reconcile applies the reconciliation worker's upgrade under the write
// gate (spec §4.F step 4): it re-reads the row first and aborts the
// upgrade if the record no longer exists or has transitioned to RESOLVED
// in the interim. It reports whether the upgrade was actually applied, so
// callers can distinguish a real upgrade from a no-op abort.
func (s *Store) Reconcile(ctx context.Context, id string, apply func(current *feedback.Feedback) (changed bool)) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var current feedback.Feedback
	err := s.db.GetContext(ctx, &current, `SELECT * FROM feedback WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreUnavailable, "reconcile: re-read row: "+err.Error())
	}
	if current.Status == feedback.StatusResolved {
		return false, nil
	}

	if !apply(&current) {
		return false, nil
	}

	_, err = s.db.NamedExecContext(ctx, `
		UPDATE feedback SET
			sentiment = :sentiment,
			topics = :topics,
			is_urgent = :is_urgent,
			source = :source,
			ai_provider = :ai_provider,
			department = :department,
			needs_review = :needs_review
		WHERE id = :id`, current)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreUnavailable, "reconcile: write row: "+err.Error())
	}
	return true, nil
}

// Resolve transitions a record to RESOLVED, recording an optional note and
// clearing needs_review (spec §3 invariant 5).
func (s *Store) Resolve(ctx context.Context, id, note string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE feedback SET status = ?, resolution_note = ?, needs_review = 0
		WHERE id = ?`, feedback.StatusResolved, note, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, "resolve feedback: "+err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, "resolve: rows affected: "+err.Error())
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// isUniqueConflict reports whether err is a SQLite unique-constraint
// violation on the content_hash index.
func isUniqueConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
