package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/pipelinedef"
	"github.com/adapipe/engine/internal/stage"
)

// SQLiteRepository is a modernc.org/sqlite-backed Repository, grounded on
// PersistentStore's schema/connection-pool shape.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dbPath and ensures the schema exists.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, perr.IO(err, "open sqlite database %q", dbPath)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	r := &SQLiteRepository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS pipeline_definitions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			stages_json TEXT NOT NULL,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pipeline_definitions_archived
			ON pipeline_definitions(archived);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return perr.IO(err, "initialize pipeline_definitions schema")
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Save(ctx context.Context, def pipelinedef.Definition) error {
	stagesJSON, err := json.Marshal(def.Stages)
	if err != nil {
		return perr.Wrap(perr.KindIO, err, "marshal stages for pipeline %q", def.Name)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipeline_definitions (id, name, description, stages_json, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		def.ID.String(), def.Name, def.Description, string(stagesJSON), def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return perr.IO(err, "save pipeline definition %q", def.Name)
	}
	return nil
}

func (r *SQLiteRepository) scanRow(row *sql.Row) (pipelinedef.Definition, error) {
	var (
		idStr, name, description, stagesJSON string
		createdAt, updatedAt                 time.Time
	)
	if err := row.Scan(&idStr, &name, &description, &stagesJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pipelinedef.Definition{}, ErrNotFound
		}
		return pipelinedef.Definition{}, perr.IO(err, "scan pipeline definition")
	}
	id, err := ids.Parse(ids.KindPipeline, idStr)
	if err != nil {
		return pipelinedef.Definition{}, err
	}
	var stages []stage.Configuration
	if err := json.Unmarshal([]byte(stagesJSON), &stages); err != nil {
		return pipelinedef.Definition{}, perr.Wrap(perr.KindIO, err, "unmarshal stages for pipeline %q", name)
	}
	return pipelinedef.Definition{
		ID: id, Name: name, Description: description, Stages: stages,
		CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id ids.ID) (pipelinedef.Definition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, stages_json, created_at, updated_at
		 FROM pipeline_definitions WHERE id = ? AND archived = 0`, id.String())
	return r.scanRow(row)
}

func (r *SQLiteRepository) FindByName(ctx context.Context, name string) (pipelinedef.Definition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, stages_json, created_at, updated_at
		 FROM pipeline_definitions WHERE name = ? AND archived = 0`, name)
	return r.scanRow(row)
}

func (r *SQLiteRepository) listWhere(ctx context.Context, where string, args ...any) ([]pipelinedef.Definition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, stages_json, created_at, updated_at
		 FROM pipeline_definitions WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, perr.IO(err, "list pipeline definitions")
	}
	defer rows.Close()

	var out []pipelinedef.Definition
	for rows.Next() {
		var (
			idStr, name, description, stagesJSON string
			createdAt, updatedAt                 time.Time
		)
		if err := rows.Scan(&idStr, &name, &description, &stagesJSON, &createdAt, &updatedAt); err != nil {
			return nil, perr.IO(err, "scan pipeline definition row")
		}
		id, err := ids.Parse(ids.KindPipeline, idStr)
		if err != nil {
			return nil, err
		}
		var stages []stage.Configuration
		if err := json.Unmarshal([]byte(stagesJSON), &stages); err != nil {
			return nil, perr.Wrap(perr.KindIO, err, "unmarshal stages for pipeline %q", name)
		}
		out = append(out, pipelinedef.Definition{
			ID: id, Name: name, Description: description, Stages: stages,
			CreatedAt: createdAt, UpdatedAt: updatedAt,
		})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]pipelinedef.Definition, error) {
	return r.listWhere(ctx, "archived = 0")
}

func (r *SQLiteRepository) ListPaginated(ctx context.Context, offset, limit int) ([]pipelinedef.Definition, error) {
	return r.listWhere(ctx, "id IN (SELECT id FROM pipeline_definitions WHERE archived = 0 ORDER BY created_at LIMIT ? OFFSET ?)", limit, offset)
}

func (r *SQLiteRepository) ListArchived(ctx context.Context) ([]pipelinedef.Definition, error) {
	return r.listWhere(ctx, "archived = 1")
}

func (r *SQLiteRepository) Update(ctx context.Context, def pipelinedef.Definition) error {
	stagesJSON, err := json.Marshal(def.Stages)
	if err != nil {
		return perr.Wrap(perr.KindIO, err, "marshal stages for pipeline %q", def.Name)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_definitions SET name = ?, description = ?, stages_json = ?, updated_at = ?
		WHERE id = ?`,
		def.Name, def.Description, string(stagesJSON), def.UpdatedAt, def.ID.String())
	if err != nil {
		return perr.IO(err, "update pipeline definition %q", def.Name)
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id ids.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pipeline_definitions WHERE id = ?`, id.String())
	if err != nil {
		return perr.IO(err, "delete pipeline definition %q", id)
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) Exists(ctx context.Context, id ids.ID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pipeline_definitions WHERE id = ?`, id.String()).Scan(&count)
	if err != nil {
		return false, perr.IO(err, "check pipeline definition existence")
	}
	return count > 0, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pipeline_definitions WHERE archived = 0`).Scan(&count)
	if err != nil {
		return 0, perr.IO(err, "count pipeline definitions")
	}
	return count, nil
}

func (r *SQLiteRepository) Archive(ctx context.Context, id ids.ID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_definitions SET archived = 1 WHERE id = ?`, id.String())
	if err != nil {
		return perr.IO(err, "archive pipeline definition %q", id)
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) Restore(ctx context.Context, id ids.ID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_definitions SET archived = 0 WHERE id = ?`, id.String())
	if err != nil {
		return perr.IO(err, "restore pipeline definition %q", id)
	}
	return checkRowsAffected(res)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return perr.IO(err, "check rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*SQLiteRepository)(nil)
