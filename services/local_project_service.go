package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studioAPI/internal/types/project"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ProjectRepository is the gallery of saved projects. The local backend
// ignores ownerID.
type ProjectRepository interface {
	List(ctx context.Context, ownerID string) ([]project.Summary, error)
	Get(ctx context.Context, ownerID, id string) (*project.Saved, error)
	Save(ctx context.Context, ownerID string, p project.Saved) (*project.Saved, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// LocalProjectService keeps the local gallery and the per-session work in
// progress in a SQLite file.
type LocalProjectService struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLocalProjectService opens (or creates) the database at path.
func OpenLocalProjectService(path string) (*LocalProjectService, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if err := initLocalSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &LocalProjectService{db: db, now: time.Now}, nil
}

func initLocalSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			thumbnail TEXT NOT NULL DEFAULT '',
			document TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drafts (
			session_id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at DESC);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *LocalProjectService) Close() error {
	return s.db.Close()
}

// List returns the gallery, most recently updated first.
func (s *LocalProjectService) List(ctx context.Context, _ string) ([]project.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, asset_type, thumbnail, updated_at
		FROM projects
		ORDER BY updated_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]project.Summary, 0)
	for rows.Next() {
		var sum project.Summary
		var updated int64
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.AssetType, &sum.Thumbnail, &updated); err != nil {
			return nil, err
		}
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *LocalProjectService) Get(ctx context.Context, _ string, id string) (*project.Saved, error) {
	var saved project.Saved
	var doc string
	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, thumbnail, document, updated_at
		FROM projects
		WHERE id = ?
	`, id).Scan(&saved.ID, &saved.Name, &saved.Thumbnail, &doc, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	exp, err := project.ParseExport([]byte(doc))
	if err != nil {
		return nil, err
	}
	saved.Export = exp
	saved.UpdatedAt = time.UnixMilli(updated).UTC()
	return &saved, nil
}

// Save inserts p, or replaces the entry with the same id. A missing id gets
// a fresh one. UpdatedAt is always set to now.
func (s *LocalProjectService) Save(ctx context.Context, _ string, p project.Saved) (*project.Saved, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Version == "" {
		p.Version = project.ExportVersion
	}
	p.OwnerID = ""
	p.IsPublic = false
	p.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	doc, err := json.Marshal(p.Export)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, asset_type, thumbnail, document, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			asset_type = excluded.asset_type,
			thumbnail = excluded.thumbnail,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, string(p.AssetType), p.Thumbnail, string(doc), p.UpdatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return &p, nil
}

func (s *LocalProjectService) Delete(ctx context.Context, _ string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// SaveDraft stores the work in progress of a session, replacing the
// previous one.
func (s *LocalProjectService) SaveDraft(ctx context.Context, sessionID string, st project.State) error {
	doc, err := json.Marshal(st.Export())
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (session_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, sessionID, string(doc), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *LocalProjectService) LoadDraft(ctx context.Context, sessionID string) (project.State, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM drafts WHERE session_id = ?`, sessionID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.State{}, ErrDraftNotFound
		}
		return project.State{}, fmt.Errorf("load draft: %w", err)
	}
	exp, err := project.ParseExport([]byte(doc))
	if err != nil {
		return project.State{}, err
	}
	return exp.State(), nil
}

func (s *LocalProjectService) DeleteDraft(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
