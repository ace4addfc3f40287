package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/clarionscope/internal/clarion"
	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/outline"
)

// Store reads and writes the symbol index.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an opened index database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// FileInput is everything stored for one analysed file.
type FileInput struct {
	Path        string
	Hash        string
	Lines       int
	Symbols     []outline.Symbol
	Diagnostics []clarion.Diagnostic
}

// BeginRun records the start of an index build and returns its identifier.
func (s *Store) BeginRun(ctx context.Context, root string) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Root: root, StartedAt: s.now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, root, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Root, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	log.Debug(log.CatIndex, "run started", "run", run.ID, "root", root)
	return run, nil
}

// FinishRun stores the totals of a completed build.
func (s *Store) FinishRun(ctx context.Context, id string, files, diagnostics int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, files = ?, diagnostics = ? WHERE id = ?`,
		s.now().UnixMilli(), files, diagnostics, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &RunNotFoundError{ID: id}
	}
	return nil
}

const runColumns = `id, root, started_at, finished_at, files, diagnostics`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	var (
		run      Run
		started  int64
		finished *int64
	)
	if err := scanner.Scan(&run.ID, &run.Root, &started, &finished, &run.Files, &run.Diagnostics); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	if finished != nil {
		t := time.UnixMilli(*finished)
		run.FinishedAt = &t
	}
	return &run, nil
}

// Run returns a build by identifier.
// Returns RunNotFoundError if no matching run exists.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &RunNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently started build, or nil when the index is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest run: %w", err)
	}
	return run, nil
}

// Unchanged reports whether path is indexed with the given content hash.
func (s *Store) Unchanged(ctx context.Context, path, hash string) (bool, error) {
	f, err := s.File(ctx, path)
	var notFound *FileNotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Hash == hash, nil
}

// Touch marks an unchanged file as seen by run.
func (s *Store) Touch(ctx context.Context, runID, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE files SET run_id = ? WHERE path = ?`, runID, path)
	if err != nil {
		return fmt.Errorf("failed to touch file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &FileNotFoundError{Path: path}
	}
	return nil
}

// PutFile replaces everything stored for in.Path in one transaction.
func (s *Store) PutFile(ctx context.Context, runID string, in FileInput) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteFile(ctx, tx, in.Path); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO files (path, hash, lines, run_id, indexed_at) VALUES (?, ?, ?, ?, ?)`,
		in.Path, in.Hash, in.Lines, runID, s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert file: %w", err)
	}
	fileID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := insertSymbols(ctx, tx, fileID, nil, in.Symbols); err != nil {
		return 0, err
	}
	for _, d := range in.Diagnostics {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO diagnostics (file_id, code, severity, line, col, message) VALUES (?, ?, ?, ?, ?, ?)`,
			fileID, string(d.Code), string(d.Severity), d.Line, d.Col, d.Message,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit file: %w", err)
	}
	return fileID, nil
}

func insertSymbols(ctx context.Context, tx *sql.Tx, fileID int64, parent *int64, syms []outline.Symbol) error {
	for _, sym := range syms {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO symbols (file_id, parent_id, name, category, kind, line, col, end_line) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, parent, sym.Name, string(sym.Category), sym.Kind.String(), sym.Line, sym.Col, sym.EndLine,
		)
		if err != nil {
			return fmt.Errorf("failed to insert symbol: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		if err := insertSymbols(ctx, tx, fileID, &id, sym.Children); err != nil {
			return err
		}
	}
	return nil
}

// deleteFile removes a file row and its dependents. Rows are deleted
// explicitly so the result does not depend on the foreign_keys pragma.
func deleteFile(ctx context.Context, tx *sql.Tx, path string) error {
	for _, stmt := range []string{
		`DELETE FROM diagnostics WHERE file_id IN (SELECT id FROM files WHERE path = ?)`,
		`DELETE FROM symbols WHERE file_id IN (SELECT id FROM files WHERE path = ?)`,
		`DELETE FROM files WHERE path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, path); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return nil
}

// RemoveFile drops path from the index.
// Returns FileNotFoundError if the path was never indexed.
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	if _, err := s.File(ctx, path); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteFile(ctx, tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

// Prune removes files under root that run did not see, returning their paths.
func (s *Store) Prune(ctx context.Context, runID, root string) ([]string, error) {
	prefix := strings.TrimSuffix(root, "/") + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM files WHERE run_id != ? AND (path = ? OR substr(path, 1, ?) = ?)`,
		runID, root, len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale files: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		stale = append(stale, p)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stale files: %w", err)
	}

	for _, p := range stale {
		if err := s.RemoveFile(ctx, p); err != nil {
			return nil, err
		}
	}
	if len(stale) > 0 {
		log.Info(log.CatIndex, "pruned stale files", "count", len(stale), "root", root)
	}
	return stale, nil
}

// File returns the stored summary for path.
// Returns FileNotFoundError if the path was never indexed.
func (s *Store) File(ctx context.Context, path string) (*FileRecord, error) {
	var (
		f       FileRecord
		indexed int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, hash, lines, run_id, indexed_at FROM files WHERE path = ?`, path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.Lines, &f.RunID, &indexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &FileNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	f.IndexedAt = time.UnixMilli(indexed)
	return &f, nil
}

// Query selects symbols for Search.
type Query struct {
	// Name matches case-insensitively as a substring; '*' matches any run of characters.
	Name     string
	Category string
	Path     string
	Limit    int
}

// Search returns matching symbols ordered by path and line.
func (s *Store) Search(ctx context.Context, q Query) ([]SymbolRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.Name != "" {
		where = append(where, `s.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.Name))
	}
	if q.Category != "" {
		where = append(where, `s.category = ?`)
		args = append(args, q.Category)
	}
	if q.Path != "" {
		where = append(where, `f.path = ?`)
		args = append(args, q.Path)
	}

	query := `SELECT s.id, s.file_id, s.parent_id, f.path, s.name, s.category, s.kind, s.line, s.col, s.end_line
		FROM symbols s JOIN files f ON f.id = s.file_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY f.path, s.line, s.col`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []SymbolRecord{}
	for rows.Next() {
		var r SymbolRecord
		if err := rows.Scan(&r.ID, &r.FileID, &r.ParentID, &r.Path, &r.Name, &r.Category, &r.Kind, &r.Line, &r.Col, &r.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		hits = append(hits, r)
	}
	return hits, rows.Err()
}

// likePattern turns a user pattern into a LIKE substring pattern.
func likePattern(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)
	return "%" + r.Replace(name) + "%"
}

// Diagnostics returns stored diagnostics, for one path or all when path is empty.
func (s *Store) Diagnostics(ctx context.Context, path string) ([]DiagnosticRecord, error) {
	query := `SELECT f.path, d.code, d.severity, d.line, d.col, d.message
		FROM diagnostics d JOIN files f ON f.id = d.file_id`
	var args []any
	if path != "" {
		query += ` WHERE f.path = ?`
		args = append(args, path)
	}
	query += ` ORDER BY f.path, d.line, d.col`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []DiagnosticRecord{}
	for rows.Next() {
		var d DiagnosticRecord
		if err := rows.Scan(&d.Path, &d.Code, &d.Severity, &d.Line, &d.Col, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
