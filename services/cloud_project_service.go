package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"studioAPI/internal/types/project"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CloudProjectService stores projects per owner in PostgreSQL. Owners are
// the Clerk user ids of the authenticated caller.
type CloudProjectService struct {
	db *pgxpool.Pool
}

func NewCloudProjectService(db *pgxpool.Pool) *CloudProjectService {
	return &CloudProjectService{db: db}
}

func (s *CloudProjectService) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS studio_projects (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			thumbnail TEXT NOT NULL DEFAULT '',
			document JSONB NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_studio_projects_owner ON studio_projects(owner_id, updated_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create studio_projects: %w", err)
	}
	return nil
}

func (s *CloudProjectService) List(ctx context.Context, ownerID string) ([]project.Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, asset_type, thumbnail, is_public, updated_at
		FROM studio_projects
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	out := make([]project.Summary, 0)
	for rows.Next() {
		var sum project.Summary
		var id uuid.UUID
		if err := rows.Scan(&id, &sum.Name, &sum.AssetType, &sum.Thumbnail, &sum.IsPublic, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.ID = id.String()
		out = append(out, sum)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CloudProjectService) Get(ctx context.Context, ownerID, id string) (*project.Saved, error) {
	return s.fetch(ctx, `
		SELECT id, owner_id, name, thumbnail, document, is_public, updated_at
		FROM studio_projects
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
}

// GetShared reads a project through its public deep link.
func (s *CloudProjectService) GetShared(ctx context.Context, id string) (*project.Saved, error) {
	saved, err := s.fetch(ctx, `
		SELECT id, owner_id, name, thumbnail, document, is_public, updated_at
		FROM studio_projects
		WHERE id = $1 AND is_public
	`, id)
	if err != nil {
		return nil, err
	}
	saved.OwnerID = ""
	return saved, nil
}

func (s *CloudProjectService) fetch(ctx context.Context, query string, id string, args ...any) (*project.Saved, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrProjectNotFound
	}

	var saved project.Saved
	var rowID uuid.UUID
	var doc []byte
	err = s.db.QueryRow(ctx, query, append([]any{projectID}, args...)...).Scan(
		&rowID,
		&saved.OwnerID,
		&saved.Name,
		&saved.Thumbnail,
		&doc,
		&saved.IsPublic,
		&saved.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	exp, err := project.ParseExport(doc)
	if err != nil {
		return nil, err
	}
	saved.ID = rowID.String()
	saved.Export = exp
	return &saved, nil
}

// Save upserts the project for ownerID. Saving over a project that belongs
// to someone else reports ErrProjectNotFound.
func (s *CloudProjectService) Save(ctx context.Context, ownerID string, p project.Saved) (*project.Saved, error) {
	projectID := uuid.New()
	if p.ID != "" {
		parsed, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid project ID: %w", err)
		}
		projectID = parsed
	}
	if p.Version == "" {
		p.Version = project.ExportVersion
	}

	doc, err := json.Marshal(p.Export)
	if err != nil {
		return nil, fmt.Errorf("failed to encode project: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO studio_projects (id, owner_id, name, asset_type, thumbnail, document, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			asset_type = EXCLUDED.asset_type,
			thumbnail = EXCLUDED.thumbnail,
			document = EXCLUDED.document,
			updated_at = NOW()
		WHERE studio_projects.owner_id = EXCLUDED.owner_id
		RETURNING is_public, updated_at
	`, projectID, ownerID, p.Name, string(p.AssetType), p.Thumbnail, doc).Scan(&p.IsPublic, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	p.ID = projectID.String()
	p.OwnerID = ownerID
	log.Printf("[Projects] saved %s for %s", p.ID, ownerID)
	return &p, nil
}

// SetPublic toggles the public deep link of a project.
func (s *CloudProjectService) SetPublic(ctx context.Context, ownerID, id string, public bool) error {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return ErrProjectNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE studio_projects SET is_public = $3, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`, projectID, ownerID, public)
	if err != nil {
		return fmt.Errorf("failed to update visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *CloudProjectService) Delete(ctx context.Context, ownerID, id string) error {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return ErrProjectNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM studio_projects WHERE id = $1 AND owner_id = $2`, projectID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
