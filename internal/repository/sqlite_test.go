package repository

import (
	"context"
	"testing"
	"time"

	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/pipelinedef"
	"github.com/adapipe/engine/internal/stage"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testDefinition(t *testing.T, name string) pipelinedef.Definition {
	t.Helper()
	id, err := ids.New(ids.KindPipeline)
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	now := time.Now().UTC()
	def, err := pipelinedef.New(id, name, []stage.Configuration{
		{Name: "compression", Algorithm: "zstd", Operation: stage.Forward},
	}, "test pipeline", now)
	if err != nil {
		t.Fatalf("pipelinedef.New: %v", err)
	}
	return def
}

func TestSaveAndFindByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	def := testDefinition(t, "nightly-archive")

	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.FindByID(ctx, def.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != def.Name || len(got.Stages) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFindByNameAndNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	def := testDefinition(t, "weekly-backup")
	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := repo.FindByName(ctx, "weekly-backup"); err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if _, err := repo.FindByName(ctx, "does-not-exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveExcludesFromListAllAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	def := testDefinition(t, "quarterly-export")
	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := repo.Archive(ctx, def.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected archived definition excluded from ListAll, got %d", len(all))
	}

	archived, err := repo.ListArchived(ctx)
	if err != nil {
		t.Fatalf("ListArchived: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived definition, got %d", len(archived))
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected Count to exclude archived rows, got %d", count)
	}

	if err := repo.Restore(ctx, def.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected Count 1 after Restore, got %d", count)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	def := testDefinition(t, "monthly-rollup")
	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save: %v", err)
	}

	def.Description = "updated description"
	def.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, def); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.FindByID(ctx, def.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Description != "updated description" {
		t.Fatalf("expected updated description, got %q", got.Description)
	}

	if err := repo.Delete(ctx, def.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, def.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestExistsAndListPaginated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := repo.Save(ctx, testDefinition(t, name)); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	def := testDefinition(t, "delta")
	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save: %v", err)
	}
	exists, err := repo.Exists(ctx, def.ID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("expected Exists to return true")
	}

	page, err := repo.ListPaginated(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListPaginated: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page size 2, got %d", len(page))
	}
}
