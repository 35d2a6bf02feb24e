package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/service"
	"github.com/cetzal/authcore/pkg/httputil"
	"github.com/cetzal/authcore/pkg/pagination"
)

// UserService manages accounts.
type UserService interface {
	Create(ctx context.Context, input service.CreateUserInput) (*domain.User, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
	Update(ctx context.Context, id int64, in domain.UserUpdate) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// CreateUserRequest is the JSON request body for creating a user.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Age       *int   `json:"age" validate:"omitempty,min=0,max=150"`
	Password  string `json:"password" validate:"required,max=72"`
	IsActive  *bool  `json:"is_active"`
}

// UpdateUserRequest is the JSON request body for a partial user update.
type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Age       *int    `json:"age" validate:"omitempty,min=0,max=150"`
	Password  *string `json:"password" validate:"omitempty,max=72"`
	IsActive  *bool   `json:"is_active"`
}

// Create handles POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	user, err := h.service.Create(r.Context(), service.CreateUserInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Age:       req.Age,
		Password:  req.Password,
		IsActive:  active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: user})
}

// List handles GET /users. Unparseable numeric or boolean filters are
// ignored.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	q := r.URL.Query()

	filter := domain.UserFilter{
		Username: q.Get("username"),
		Name:     q.Get("name"),
		Email:    q.Get("email"),
		Age:      queryInt(r, "age"),
		Active:   queryBool(r, "active"),
		Limit:    page.PerPage,
		Offset:   page.Offset,
	}

	users, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(users, total, page))
}

// Get handles GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// Update handles PUT /users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	user, err := h.service.Update(r.Context(), id, domain.UserUpdate{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Age:       req.Age,
		IsActive:  req.IsActive,
		Password:  req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// Delete handles DELETE /users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
