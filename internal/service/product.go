package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/repository"
	apperrors "github.com/cetzal/authcore/pkg/errors"
)

// ProductService implements the business logic for product operations.
type ProductService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{repo: repo, logger: logger}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name   string
	Price  domain.Cents
	Stock  int
	Active bool
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if input.Stock < 0 {
		return nil, apperrors.InvalidInput("stock must not be negative")
	}

	product := &domain.Product{
		Name:   input.Name,
		Price:  input.Price,
		Stock:  input.Stock,
		Active: input.Active,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", product.ID),
		slog.String("name", product.Name),
	)
	return product, nil
}

// Get returns the product with the given id.
func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// List returns one page of products ordered by id.
func (s *ProductService) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// Update applies a partial update.
func (s *ProductService) Update(ctx context.Context, id int64, in domain.ProductUpdate) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperrors.InvalidInput("product name must not be empty")
		}
		product.Name = *in.Name
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, apperrors.InvalidInput("price must not be negative")
		}
		product.Price = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, apperrors.InvalidInput("stock must not be negative")
		}
		product.Stock = *in.Stock
	}
	if in.Active != nil {
		product.Active = *in.Active
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated", slog.Int64("product_id", product.ID))
	return product, nil
}

// Delete removes the product.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", id))
	return nil
}
