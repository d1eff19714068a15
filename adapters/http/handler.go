// Package http provides the HTTP surface of a listener: the router built
// from a route table and the handlers it dispatches to.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/tablegate/domain/entity"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies read by JSON handlers.
const maxBodyBytes = 1 << 20

// UnknownHandlerBody is the fixed body of every entity endpoint.
const UnknownHandlerBody = "Unknown handler"

// ErrorResponse is the JSON error body: {"code": 409, "message": "..."}.
type ErrorResponse struct {
	Code    int    `json:"code" example:"409"`
	Message string `json:"message" example:"Username already exists"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"tablegate"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------
// Entity endpoint
// -----------------------------------------------------------------------------

// EntityHandler serves POST /{entity} for every discovered entity.
type EntityHandler struct {
	logger zerolog.Logger
}

// NewEntityHandler creates the generic entity handler.
func NewEntityHandler(logger zerolog.Logger) *EntityHandler {
	return &EntityHandler{logger: logger.With().Str("handler", "entity").Logger()}
}

// For returns the handler bound to name. It answers 200 with a fixed
// diagnostic body and never touches the store.
func (h *EntityHandler) For(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug().Str("entity", name).Msg("entity endpoint hit")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, UnknownHandlerBody)
	}
}

// -----------------------------------------------------------------------------
// Schema-mutation endpoint
// -----------------------------------------------------------------------------

// SchemaDefiner validates and applies entity definitions.
type SchemaDefiner interface {
	Define(ctx context.Context, def entity.Definition) (string, error)
}

// Restarter asks the listener supervisor to rebuild the route table.
type Restarter interface {
	Restart() error
}

// TypesHandler serves POST /types.
type TypesHandler struct {
	schema    SchemaDefiner
	restarter Restarter
	logger    zerolog.Logger
}

// NewTypesHandler creates the schema-mutation handler.
func NewTypesHandler(schema SchemaDefiner, restarter Restarter, logger zerolog.Logger) *TypesHandler {
	return &TypesHandler{
		schema:    schema,
		restarter: restarter,
		logger:    logger.With().Str("handler", "types").Logger(),
	}
}

// ServeHTTP creates a new entity from {name, fields}.
//
// On success the creation statement is written and flushed before Restart
// is requested, because the restart cancels the listener serving this
// request.
//
//	@Summary		Define an entity
//	@Description	Creates a table and reloads the route table
//	@Tags			Schema
//	@Accept			json
//	@Produce		plain
//	@Success		200	{string}	string			"CREATE TABLE statement"
//	@Failure		400	{object}	ErrorResponse	"Invalid definition"
//	@Failure		500	{string}	string			"Statement and store error"
//	@Router			/types [post]
func (h *TypesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var def entity.Definition
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body: trailing data after definition")
		return
	}

	stmt, err := h.schema.Define(r.Context(), def)
	switch {
	case errors.Is(err, entity.ErrInvalidDefinition):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Str("entity", def.Name).Msg("entity definition failed")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, stmt+"\n\n"+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(stmt)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, stmt)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	if err := h.restarter.Restart(); err != nil {
		h.logger.Warn().Err(err).Msg("restart not scheduled")
	}
}

// -----------------------------------------------------------------------------
// Health and version
// -----------------------------------------------------------------------------

// Pinger checks the database connection. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness returns a simple liveness check.
//
//	@Summary	Liveness check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness checks that the database answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Version returns a handler reporting version.
func Version(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "tablegate"})
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Code: status, Message: message})
}
