package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/ports"
	"github.com/rs/zerolog"
)

// SchemaStore keeps entity definitions in memory. Only the catalog is
// modelled; no rows are stored.
type SchemaStore struct {
	mu     sync.RWMutex
	tables map[string]entity.Definition
	logger zerolog.Logger
}

// NewSchemaStore creates a catalog holding the given table names.
func NewSchemaStore(logger zerolog.Logger, tables ...string) *SchemaStore {
	s := &SchemaStore{
		tables: make(map[string]entity.Definition, len(tables)),
		logger: logger.With().Str("component", "schema_store").Str("driver", "memory").Logger(),
	}
	for _, t := range tables {
		s.tables[t] = entity.Definition{Name: t}
	}
	return s
}

// ListEntityNames returns the defined tables in name order.
func (s *SchemaStore) ListEntityNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrStore, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ApplyDefinition records def. An existing table fails like a real backend.
func (s *SchemaStore) ApplyDefinition(ctx context.Context, def entity.Definition) (string, error) {
	stmt := def.CreateStatement()
	name := def.TableName()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[name]; exists {
		err := fmt.Errorf("%w: table %s already exists", ports.ErrStore, name)
		s.logger.Error().Err(err).Str("entity", name).Str("statement", stmt).Msg("create table failed")
		return stmt, err
	}

	s.tables[name] = def
	s.logger.Info().Str("entity", name).Str("statement", stmt).Msg("table created")
	return stmt, nil
}

// Ensure interface compliance.
var _ ports.SchemaStore = (*SchemaStore)(nil)
