package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/pipelinedef"
	"github.com/adapipe/engine/internal/stage"
)

// PostgresConfig mirrors internal/database.Config's field shape.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// PostgresRepository is a github.com/lib/pq-backed Repository, grounded on
// internal/database/postgres.go's connection-pool configuration.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository opens a connection and ensures the schema exists.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, perr.IO(err, "open postgres connection")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	r := &PostgresRepository{db: db}
	if err := r.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_definitions (
			id VARCHAR(26) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			description TEXT,
			stages_json JSONB NOT NULL,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return perr.IO(err, "initialize pipeline_definitions schema")
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *PostgresRepository) Close() error { return r.db.Close() }

func (r *PostgresRepository) Save(ctx context.Context, def pipelinedef.Definition) error {
	stagesJSON, err := json.Marshal(def.Stages)
	if err != nil {
		return perr.Wrap(perr.KindIO, err, "marshal stages for pipeline %q", def.Name)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipeline_definitions (id, name, description, stages_json, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)`,
		def.ID.String(), def.Name, def.Description, string(stagesJSON), def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return perr.IO(err, "save pipeline definition %q", def.Name)
	}
	return nil
}

func (r *PostgresRepository) scanRow(row *sql.Row) (pipelinedef.Definition, error) {
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

func (r *PostgresRepository) FindByID(ctx context.Context, id ids.ID) (pipelinedef.Definition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, stages_json, created_at, updated_at
		 FROM pipeline_definitions WHERE id = $1 AND NOT archived`, id.String())
	return r.scanRow(row)
}

func (r *PostgresRepository) FindByName(ctx context.Context, name string) (pipelinedef.Definition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, stages_json, created_at, updated_at
		 FROM pipeline_definitions WHERE name = $1 AND NOT archived`, name)
	return r.scanRow(row)
}

func (r *PostgresRepository) listWhere(ctx context.Context, where string, args ...any) ([]pipelinedef.Definition, error) {
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

func (r *PostgresRepository) ListAll(ctx context.Context) ([]pipelinedef.Definition, error) {
	return r.listWhere(ctx, "NOT archived")
}

func (r *PostgresRepository) ListPaginated(ctx context.Context, offset, limit int) ([]pipelinedef.Definition, error) {
	return r.listWhere(ctx, "id IN (SELECT id FROM pipeline_definitions WHERE NOT archived ORDER BY created_at LIMIT $1 OFFSET $2)", limit, offset)
}

func (r *PostgresRepository) ListArchived(ctx context.Context) ([]pipelinedef.Definition, error) {
	return r.listWhere(ctx, "archived")
}

func (r *PostgresRepository) Update(ctx context.Context, def pipelinedef.Definition) error {
	stagesJSON, err := json.Marshal(def.Stages)
	if err != nil {
		return perr.Wrap(perr.KindIO, err, "marshal stages for pipeline %q", def.Name)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_definitions SET name = $1, description = $2, stages_json = $3, updated_at = $4
		WHERE id = $5`,
		def.Name, def.Description, string(stagesJSON), def.UpdatedAt, def.ID.String())
	if err != nil {
		return perr.IO(err, "update pipeline definition %q", def.Name)
	}
	return checkRowsAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id ids.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pipeline_definitions WHERE id = $1`, id.String())
	if err != nil {
		return perr.IO(err, "delete pipeline definition %q", id)
	}
	return checkRowsAffected(res)
}

func (r *PostgresRepository) Exists(ctx context.Context, id ids.ID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pipeline_definitions WHERE id = $1`, id.String()).Scan(&count)
	if err != nil {
		return false, perr.IO(err, "check pipeline definition existence")
	}
	return count > 0, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pipeline_definitions WHERE NOT archived`).Scan(&count)
	if err != nil {
		return 0, perr.IO(err, "count pipeline definitions")
	}
	return count, nil
}

func (r *PostgresRepository) Archive(ctx context.Context, id ids.ID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_definitions SET archived = TRUE WHERE id = $1`, id.String())
	if err != nil {
		return perr.IO(err, "archive pipeline definition %q", id)
	}
	return checkRowsAffected(res)
}

func (r *PostgresRepository) Restore(ctx context.Context, id ids.ID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_definitions SET archived = FALSE WHERE id = $1`, id.String())
	if err != nil {
		return perr.IO(err, "restore pipeline definition %q", id)
	}
	return checkRowsAffected(res)
}

var _ Repository = (*PostgresRepository)(nil)
