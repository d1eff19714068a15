package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/domain/route"
	"github.com/artpar/tablegate/ports"
	"github.com/rs/zerolog"
)

// RouteBuilder derives route tables from the live schema.
type RouteBuilder struct {
	schema ports.SchemaStore
	logger zerolog.Logger
}

// NewRouteBuilder creates a route builder over schema.
func NewRouteBuilder(schema ports.SchemaStore, logger zerolog.Logger) *RouteBuilder {
	return &RouteBuilder{
		schema: schema,
		logger: logger.With().Str("service", "routes").Logger(),
	}
}

// Build lists the current entities and returns their route table.
// A listing failure is returned wrapped in ports.ErrStore and no table is
// produced.
func (b *RouteBuilder) Build(ctx context.Context) (route.Table, error) {
	names, err := b.schema.ListEntityNames(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrStore) {
			err = fmt.Errorf("%w: %w", ports.ErrStore, err)
		}
		return route.Table{}, err
	}

	table := route.Build(names)

	for _, rej := range table.Rejected {
		event := b.logger.Warn().Str("entity", rej.Entity).Str("reason", rej.Reason)
		if entity.IsReserved(rej.Entity) {
			event = event.Err(ErrReservedEntity)
		}
		event.Msg("entity not bound")
	}

	b.logger.Debug().
		Int("entities", len(names)).
		Int("bindings", len(table.Bindings)).
		Msg("route table built")

	return table, nil
}
