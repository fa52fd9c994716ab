package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"studioAPI/internal/types/project"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB connects to TEST_DATABASE_URL and skips the test when it is
// not set.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestCloudProjects(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	s := NewCloudProjectService(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	const owner, intruder = "user_test_owner", "user_test_intruder"
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM studio_projects WHERE owner_id IN ($1, $2)`, owner, intruder)
	})

	saved, err := s.Save(ctx, owner, project.Saved{Name: "Cloud", Export: sampleState().Export()})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, owner, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Cloud" || !got.State().Equal(sampleState()) {
		t.Errorf("round trip mismatch: %+v", got.Meta)
	}

	if _, err := s.Get(ctx, intruder, saved.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("other owners must not read the project: %v", err)
	}
	if _, err := s.Save(ctx, intruder, project.Saved{ID: saved.ID, Name: "stolen", Export: sampleState().Export()}); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("other owners must not overwrite the project: %v", err)
	}

	if _, err := s.GetShared(ctx, saved.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("private project shared: %v", err)
	}
	if err := s.SetPublic(ctx, owner, saved.ID, true); err != nil {
		t.Fatal(err)
	}
	shared, err := s.GetShared(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if shared.OwnerID != "" {
		t.Error("shared read should hide the owner")
	}

	list, err := s.List(ctx, owner)
	if err != nil || len(list) != 1 || !list[0].IsPublic {
		t.Fatalf("list = %+v, %v", list, err)
	}

	if err := s.Delete(ctx, owner, saved.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, owner, saved.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if _, err := s.Get(ctx, owner, "not-a-uuid"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("malformed id: %v", err)
	}
}
