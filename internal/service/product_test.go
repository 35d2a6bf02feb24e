package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cetzal/authcore/internal/domain"
	apperrors "github.com/cetzal/authcore/pkg/errors"
)

func TestProductService_Create(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, newTestLogger())
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*domain.Product")).Return(nil)

	p, err := svc.Create(ctx, CreateProductInput{Name: "Widget", Price: 1999, Stock: 3, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "19.99", p.Price.String())
	repo.AssertExpectations(t)
}

func TestProductService_Create_Validation(t *testing.T) {
	svc := NewProductService(new(mockProductRepository), newTestLogger())

	for name, in := range map[string]CreateProductInput{
		"empty name":     {Name: " "},
		"negative price": {Name: "w", Price: -1},
		"negative stock": {Name: "w", Stock: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestProductService_Update_Partial(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, newTestLogger())
	ctx := context.Background()

	existing := &domain.Product{ID: 3, Name: "Widget", Price: 1999, Stock: 3, Active: true}
	repo.On("GetByID", ctx, int64(3)).Return(existing, nil)
	repo.On("Update", ctx, existing).Return(nil)

	price := domain.Cents(2500)
	p, err := svc.Update(ctx, 3, domain.ProductUpdate{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(2500), p.Price)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, 3, p.Stock)
}

func TestProductService_Update_NegativeStock(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, newTestLogger())
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(3)).Return(&domain.Product{ID: 3, Name: "Widget"}, nil)

	_, err := svc.Update(ctx, 3, domain.ProductUpdate{Stock: intPtr(-5)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProductService_GetAndDelete_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, newTestLogger())
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(8)).Return(nil, apperrors.NotFound("product", "8"))
	repo.On("Delete", ctx, int64(8)).Return(apperrors.NotFound("product", "8"))

	_, err := svc.Get(ctx, 8)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 8), apperrors.ErrNotFound)
}
