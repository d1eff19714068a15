package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/ports"
	"github.com/rs/zerolog"
)

// Schema mutation outcomes reported to Metrics.
const (
	MutationApplied = "applied"
	MutationInvalid = "invalid"
	MutationFailed  = "store_error"
)

// SchemaService validates and applies entity definitions.
type SchemaService struct {
	schema  ports.SchemaStore
	metrics Metrics
	logger  zerolog.Logger
}

// NewSchemaService creates a schema service. m may be nil.
func NewSchemaService(schema ports.SchemaStore, m Metrics, logger zerolog.Logger) *SchemaService {
	return &SchemaService{
		schema:  schema,
		metrics: metricsOrNoop(m),
		logger:  logger.With().Str("service", "schema").Logger(),
	}
}

// Define validates def and creates its table.
//
// Invalid definitions fail with entity.ErrInvalidDefinition and never reach
// the store. Store failures wrap ports.ErrStore; the statement that was
// attempted is returned alongside.
func (s *SchemaService) Define(ctx context.Context, def entity.Definition) (string, error) {
	if err := def.Validate(); err != nil {
		s.metrics.ObserveSchemaMutation(MutationInvalid)
		if entity.IsReserved(def.TableName()) {
			return "", fmt.Errorf("%w: %w", err, ErrReservedEntity)
		}
		return "", err
	}

	stmt, err := s.schema.ApplyDefinition(ctx, def)
	if err != nil {
		s.metrics.ObserveSchemaMutation(MutationFailed)
		if !errors.Is(err, ports.ErrStore) {
			err = fmt.Errorf("%w: %w", ports.ErrStore, err)
		}
		return stmt, err
	}

	s.metrics.ObserveSchemaMutation(MutationApplied)
	s.logger.Info().Str("entity", def.TableName()).Int("fields", len(def.Fields)).Msg("entity defined")
	return stmt, nil
}
