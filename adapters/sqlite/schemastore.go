package sqlite

import (
	"context"
	"fmt"

	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/ports"
	"github.com/rs/zerolog"
)

// SchemaStore implements ports.SchemaStore over the SQLite catalog.
type SchemaStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewSchemaStore creates a new SQLite schema store.
func NewSchemaStore(db *DB, logger zerolog.Logger) *SchemaStore {
	return &SchemaStore{
		db:     db,
		logger: logger.With().Str("component", "schema_store").Str("driver", "sqlite").Logger(),
	}
}

// ListEntityNames returns user-defined tables, skipping SQLite internals
// and the migrations table.
func (s *SchemaStore) ListEntityNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		  AND name <> ?
		ORDER BY name
	`, migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %w", ports.ErrStore, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan table name: %w", ports.ErrStore, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list tables: %w", ports.ErrStore, err)
	}
	return names, nil
}

// ApplyDefinition executes the creation statement for def.
func (s *SchemaStore) ApplyDefinition(ctx context.Context, def entity.Definition) (string, error) {
	stmt := def.CreateStatement()

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		s.logger.Error().Err(err).Str("entity", def.TableName()).Str("statement", stmt).Msg("create table failed")
		return stmt, fmt.Errorf("%w: create table %s: %w", ports.ErrStore, def.TableName(), err)
	}

	s.logger.Info().Str("entity", def.TableName()).Str("statement", stmt).Msg("table created")
	return stmt, nil
}

// Ensure interface compliance.
var _ ports.SchemaStore = (*SchemaStore)(nil)
