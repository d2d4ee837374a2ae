package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// SQLiteStore implements CanonicalStore on SQLite.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ CanonicalStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the canonical store at path.
// An empty path opens a private in-memory database, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if dsn == "" {
		dsn = "file:lawsearch?mode=memory&cache=shared"
	} else {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, lserr.Wrap(lserr.ErrCodeStoreUnavailable, err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the laws, articles, and staging tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS laws (
		law_id          TEXT PRIMARY KEY,
		serial          TEXT,
		name            TEXT NOT NULL,
		abbreviation    TEXT,
		department      TEXT,
		law_type        TEXT,
		status          TEXT,
		enforce_date    TEXT,
		promulgate_date TEXT,
		detail_link     TEXT,
		full_text       TEXT,
		visible         INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		law_id     TEXT NOT NULL REFERENCES laws(law_id) ON DELETE CASCADE,
		article_no TEXT NOT NULL,
		title      TEXT,
		content    TEXT NOT NULL,
		vector_id  TEXT,
		seq        INTEGER NOT NULL,
		UNIQUE (law_id, article_no)
	);
	CREATE INDEX IF NOT EXISTS idx_articles_law_id ON articles(law_id);

	CREATE TABLE IF NOT EXISTS articles_staging (
		law_id     TEXT NOT NULL,
		article_no TEXT NOT NULL,
		title      TEXT,
		content    TEXT NOT NULL,
		vector_id  TEXT,
		seq        INTEGER NOT NULL,
		UNIQUE (law_id, article_no)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertLaw inserts or updates law metadata. New rows start invisible.
func (s *SQLiteStore) UpsertLaw(ctx context.Context, law *LawDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO laws (law_id, serial, name, abbreviation, department, law_type,
			status, enforce_date, promulgate_date, detail_link, full_text,
			visible, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(law_id) DO UPDATE SET
			serial = excluded.serial,
			name = excluded.name,
			abbreviation = excluded.abbreviation,
			department = excluded.department,
			law_type = excluded.law_type,
			status = excluded.status,
			enforce_date = excluded.enforce_date,
			promulgate_date = excluded.promulgate_date,
			detail_link = excluded.detail_link,
			full_text = excluded.full_text,
			updated_at = excluded.updated_at`,
		law.LawID, law.Serial, law.Name, law.Abbreviation, law.Department,
		law.LawType, law.Status, law.EnforceDate, law.PromulgateDate,
		law.DetailLink, law.FullText, now, now)
	if err != nil {
		return fmt.Errorf("upsert law %s: %w", law.LawID, err)
	}
	return nil
}

// GetLaw returns a published law by id.
func (s *SQLiteStore) GetLaw(ctx context.Context, lawID string) (*LawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT law_id, serial, name, abbreviation, department, law_type,
			status, enforce_date, promulgate_date, detail_link, full_text,
			visible, created_at, updated_at
		FROM laws WHERE law_id = ? AND visible = 1`, lawID)

	law, err := scanLaw(row)
	if err == sql.ErrNoRows {
		return nil, lserr.NotFound("law", lawID)
	}
	if err != nil {
		return nil, fmt.Errorf("get law %s: %w", lawID, err)
	}
	return law, nil
}

// QueryLaws returns published laws matching the filter.
func (s *SQLiteStore) QueryLaws(ctx context.Context, filter Filter, limit int) ([]*LawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT law_id, serial, name, abbreviation, department, law_type,
			status, enforce_date, promulgate_date, detail_link, full_text,
			visible, created_at, updated_at
		FROM laws WHERE visible = 1`)
	var args []any
	appendFilter(&sb, &args, filter)
	sb.WriteString(" ORDER BY law_id")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query laws: %w", err)
	}
	defer rows.Close()

	var laws []*LawDocument
	for rows.Next() {
		law, err := scanLaw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan law: %w", err)
		}
		laws = append(laws, law)
	}
	return laws, rows.Err()
}

// ListArticles returns the published articles of a law in original order.
func (s *SQLiteStore) ListArticles(ctx context.Context, lawID string) ([]*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	var visible bool
	err := s.db.QueryRowContext(ctx,
		`SELECT visible FROM laws WHERE law_id = ?`, lawID).Scan(&visible)
	if err == sql.ErrNoRows || (err == nil && !visible) {
		return nil, lserr.NotFound("law", lawID)
	}
	if err != nil {
		return nil, fmt.Errorf("check law %s: %w", lawID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT law_id, article_no, title, content, vector_id
		FROM articles WHERE law_id = ? ORDER BY seq`, lawID)
	if err != nil {
		return nil, fmt.Errorf("list articles %s: %w", lawID, err)
	}
	defer rows.Close()

	var articles []*Article
	for rows.Next() {
		var a Article
		var title, vectorID sql.NullString
		if err := rows.Scan(&a.LawID, &a.ArticleNo, &title, &a.Content, &vectorID); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Title = title.String
		a.VectorID = vectorID.String
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

// StageArticles replaces the staged article set for a law.
func (s *SQLiteStore) StageArticles(ctx context.Context, lawID string, articles []*Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staging tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM articles_staging WHERE law_id = ?`, lawID); err != nil {
		return fmt.Errorf("clear staging %s: %w", lawID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles_staging (law_id, article_no, title, content, vector_id, seq)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare staging insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range articles {
		if _, err := stmt.ExecContext(ctx, lawID, a.ArticleNo, a.Title, a.Content, a.VectorID, i); err != nil {
			return fmt.Errorf("stage article %s/%s: %w", lawID, a.ArticleNo, err)
		}
	}

	return tx.Commit()
}

// PublishLaw atomically swaps the live article set for the staged set and
// flips the law visible. Concurrent readers either see the full previous
// article set or the full new one, never a partial mix.
func (s *SQLiteStore) PublishLaw(ctx context.Context, lawID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE laws SET visible = 1, updated_at = ? WHERE law_id = ?`,
		time.Now().UTC(), lawID)
	if err != nil {
		return fmt.Errorf("flip visibility %s: %w", lawID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lserr.NotFound("law", lawID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM articles WHERE law_id = ?`, lawID); err != nil {
		return fmt.Errorf("clear live articles %s: %w", lawID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO articles (law_id, article_no, title, content, vector_id, seq)
		SELECT law_id, article_no, title, content, vector_id, seq
		FROM articles_staging WHERE law_id = ?`, lawID); err != nil {
		return fmt.Errorf("promote staged articles %s: %w", lawID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM articles_staging WHERE law_id = ?`, lawID); err != nil {
		return fmt.Errorf("drop staging %s: %w", lawID, err)
	}

	return tx.Commit()
}

// VisibleLawIDs returns ids of all published laws.
func (s *SQLiteStore) VisibleLawIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT law_id FROM laws WHERE visible = 1 ORDER BY law_id`)
	if err != nil {
		return nil, fmt.Errorf("list visible laws: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanLaw.
type scanner interface {
	Scan(dest ...any) error
}

func scanLaw(row scanner) (*LawDocument, error) {
	var law LawDocument
	var serial, abbr, dept, lawType, status, enforce, promulgate, link, fullText sql.NullString
	err := row.Scan(&law.LawID, &serial, &law.Name, &abbr, &dept, &lawType,
		&status, &enforce, &promulgate, &link, &fullText,
		&law.Visible, &law.CreatedAt, &law.UpdatedAt)
	if err != nil {
		return nil, err
	}
	law.Serial = serial.String
	law.Abbreviation = abbr.String
	law.Department = dept.String
	law.LawType = lawType.String
	law.Status = status.String
	law.EnforceDate = enforce.String
	law.PromulgateDate = promulgate.String
	law.DetailLink = link.String
	law.FullText = fullText.String
	return &law, nil
}

// appendFilter adds WHERE clauses for the filter to the query under build.
func appendFilter(sb *strings.Builder, args *[]any, filter Filter) {
	if filter.LawID != "" {
		sb.WriteString(" AND law_id = ?")
		*args = append(*args, filter.LawID)
	}
	if filter.Department != "" {
		sb.WriteString(" AND department = ?")
		*args = append(*args, filter.Department)
	}
	if filter.LawType != "" {
		sb.WriteString(" AND law_type = ?")
		*args = append(*args, filter.LawType)
	}
	if filter.Status != "" {
		sb.WriteString(" AND status = ?")
		*args = append(*args, filter.Status)
	}
	if filter.EnforceFrom != "" {
		sb.WriteString(" AND enforce_date >= ?")
		*args = append(*args, filter.EnforceFrom)
	}
	if filter.EnforceTo != "" {
		sb.WriteString(" AND enforce_date <= ?")
		*args = append(*args, filter.EnforceTo)
	}
}
