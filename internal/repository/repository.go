// Package repository is the PipelineRepository collaborator (§6.3): a
// persistence boundary for pipelinedef.Definition, out of the processing
// core's critical path but wired to two real adapters so the SQL driver
// dependencies in the teacher pack get a home. Grounded on
// sambhavthakkar-QuantaraX/backend/daemon/manager/persistence.go (SQLite
// schema/connection-pool shape) and internal/database/postgres.go
// (Postgres connection-pool shape).
package repository

import (
	"context"

	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/pipelinedef"
)

// Repository is the persistence boundary for pipeline definitions.
type Repository interface {
	Save(ctx context.Context, def pipelinedef.Definition) error
	FindByID(ctx context.Context, id ids.ID) (pipelinedef.Definition, error)
	FindByName(ctx context.Context, name string) (pipelinedef.Definition, error)
	ListAll(ctx context.Context) ([]pipelinedef.Definition, error)
	ListPaginated(ctx context.Context, offset, limit int) ([]pipelinedef.Definition, error)
	Update(ctx context.Context, def pipelinedef.Definition) error
	Delete(ctx context.Context, id ids.ID) error
	Exists(ctx context.Context, id ids.ID) (bool, error)
	Count(ctx context.Context) (int64, error)
	Archive(ctx context.Context, id ids.ID) error
	Restore(ctx context.Context, id ids.ID) error
	ListArchived(ctx context.Context) ([]pipelinedef.Definition, error)
}

// ErrNotFound is returned by FindByID/FindByName when no matching
// definition exists.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "pipeline definition not found" }
