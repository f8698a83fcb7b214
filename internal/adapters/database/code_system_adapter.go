package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

var codeSystemColumns = []interface{}{
	"id", "kind", "name", "version", "description", "active", "created_at", "updated_at",
}

// CodeSystemAdapter implements CodeSystemRepository
type CodeSystemAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCodeSystemAdapter creates a new code system adapter
func NewCodeSystemAdapter(client *postgres.Client) repositories.CodeSystemRepository {
	return &CodeSystemAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates or updates a code system keyed by (kind, version)
func (a *CodeSystemAdapter) Upsert(ctx context.Context, input entities.CodeSystemInput) (*entities.CodeSystem, error) {
	now := time.Now().UTC()

	description := ""
	if input.Description != nil {
		description = *input.Description
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}

	update := goqu.Record{
		"name":       goqu.L("EXCLUDED.name"),
		"updated_at": goqu.L("EXCLUDED.updated_at"),
	}
	// unset optional fields keep their stored value
	if input.Description != nil {
		update["description"] = goqu.L("EXCLUDED.description")
	}
	if input.Active != nil {
		update["active"] = goqu.L("EXCLUDED.active")
	}

	query, args, err := a.db.Insert("code_systems").
		Rows(goqu.Record{
			"id":          uuid.NewString(),
			"kind":        input.Kind,
			"name":        input.Name,
			"version":     entities.VersionKey(input.Version),
			"description": description,
			"active":      active,
			"created_at":  now,
			"updated_at":  now,
		}).
		OnConflict(goqu.DoUpdate("kind, version", update)).
		Returning(codeSystemColumns...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build upsert query", err)
	}

	system, err := scanCodeSystem(a.client.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to upsert code system", err)
	}
	return system, nil
}

// GetByKindAndVersion retrieves a code system by kind and version
func (a *CodeSystemAdapter) GetByKindAndVersion(ctx context.Context, kind string, version *string) (*entities.CodeSystem, error) {
	return a.getOne(ctx, goqu.Ex{"kind": kind, "version": entities.VersionKey(version)},
		fmt.Sprintf("code system %s (version %q) not found", kind, entities.VersionKey(version)))
}

// GetByID retrieves a code system by ID
func (a *CodeSystemAdapter) GetByID(ctx context.Context, id string) (*entities.CodeSystem, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, "code system not found")
}

// List retrieves all code systems
func (a *CodeSystemAdapter) List(ctx context.Context) ([]*entities.CodeSystem, error) {
	query, args, err := a.db.From("code_systems").
		Select(codeSystemColumns...).
		Order(goqu.C("kind").Asc(), goqu.C("version").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list code systems", err)
	}
	defer rows.Close()

	systems := []*entities.CodeSystem{}
	for rows.Next() {
		system, err := scanCodeSystem(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan code system", err)
		}
		systems = append(systems, system)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate code systems", err)
	}
	return systems, nil
}

func (a *CodeSystemAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.CodeSystem, error) {
	query, args, err := a.db.From("code_systems").
		Select(codeSystemColumns...).
		Where(where).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	system, err := scanCodeSystem(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get code system", err)
	}
	return system, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCodeSystem(row rowScanner) (*entities.CodeSystem, error) {
	system := &entities.CodeSystem{}
	var version string
	var description sql.NullString

	if err := row.Scan(
		&system.ID,
		&system.Kind,
		&system.Name,
		&version,
		&description,
		&system.Active,
		&system.CreatedAt,
		&system.UpdatedAt,
	); err != nil {
		return nil, err
	}

	system.Version = entities.VersionFromKey(version)
	system.Description = description.String
	return system, nil
}
