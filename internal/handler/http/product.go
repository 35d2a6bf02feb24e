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

// ProductService manages inventory items.
type ProductService interface {
	Create(ctx context.Context, input service.CreateProductInput) (*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)
	Update(ctx context.Context, id int64, in domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// CreateProductRequest is the JSON request body for creating a product.
// Price accepts "19.99" or 19.99.
type CreateProductRequest struct {
	Name   string       `json:"name" validate:"required,max=200"`
	Price  domain.Cents `json:"price" validate:"min=0"`
	Stock  int          `json:"stock" validate:"min=0"`
	Active *bool        `json:"active"`
}

// UpdateProductRequest is the JSON request body for a partial update.
type UpdateProductRequest struct {
	Name   *string       `json:"name" validate:"omitempty,max=200"`
	Price  *domain.Cents `json:"price" validate:"omitempty,min=0"`
	Stock  *int          `json:"stock" validate:"omitempty,min=0"`
	Active *bool         `json:"active"`
}

// Create handles POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	product, err := h.service.Create(r.Context(), service.CreateProductInput{
		Name:   req.Name,
		Price:  req.Price,
		Stock:  req.Stock,
		Active: active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// List handles GET /products. Unparseable filters are ignored.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	q := r.URL.Query()

	filter := domain.ProductFilter{
		Name:     q.Get("name"),
		Active:   queryBool(r, "active"),
		PriceMin: queryCents(r, "price_min"),
		PriceMax: queryCents(r, "price_max"),
		Stock:    queryInt(r, "stock"),
		Limit:    page.PerPage,
		Offset:   page.Offset,
	}

	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, page))
}

// Get handles GET /products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, "id")
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Update handles PUT /products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.service.Update(r.Context(), id, domain.ProductUpdate{
		Name:   req.Name,
		Price:  req.Price,
		Stock:  req.Stock,
		Active: req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Delete handles DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func queryCents(r *http.Request, key string) *domain.Cents {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	c, err := domain.ParseCents(v)
	if err != nil {
		return nil
	}
	return &c
}
