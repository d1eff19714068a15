package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/artpar/tablegate/app"
	"github.com/artpar/tablegate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// UserService is the users CRUD collaborator.
type UserService interface {
	Create(ctx context.Context, in app.CreateUserInput) (ports.User, error)
	Get(ctx context.Context, id string) (ports.User, error)
	Update(ctx context.Context, id string, in app.UpdateUserInput) (ports.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]ports.User, error)
}

// UserResponse is the public view of a user. The password hash is never
// serialized.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u ports.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UsersHandler serves the /users collaborator endpoints.
type UsersHandler struct {
	users  UserService
	logger zerolog.Logger
}

// NewUsersHandler creates the users handler.
func NewUsersHandler(users UserService, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		logger: logger.With().Str("handler", "users").Logger(),
	}
}

// Create handles POST /users.
//
//	@Summary	Create a user
//	@Tags		Users
//	@Accept		json
//	@Produce	json
//	@Success	201	{object}	UserResponse
//	@Failure	400	{object}	ErrorResponse
//	@Failure	409	{object}	ErrorResponse	"Username already exists"
//	@Failure	500	{object}	ErrorResponse
//	@Router		/users [post]
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in app.CreateUserInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// Get handles GET /users/{id}. A missing user is 200 with null.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Update handles PUT /users/{id}. A missing user is 200 with null.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in app.UpdateUserInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), in)
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Delete handles DELETE /users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrDuplicate):
		writeError(w, http.StatusConflict, "Username already exists")
	default:
		h.logger.Error().Err(err).Msg("users request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
