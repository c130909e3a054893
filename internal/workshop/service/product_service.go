package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/google/uuid"
)

// ProductService 配件与库存服务
type ProductService struct {
	repo *repository.ProductRepository
}

func NewProductService(repo *repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

type CreateProductRequest struct {
	Code     string  `json:"code" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Brand    string  `json:"brand"`
	Unit     string  `json:"unit"`
	Price    float64 `json:"price" binding:"gte=0"`
	Stock    float64 `json:"stock" binding:"gte=0"`
	MinStock float64 `json:"min_stock" binding:"gte=0"`
}

// UpdateProductRequest 库存不在此修改，走 AdjustStock
type UpdateProductRequest struct {
	Name     *string  `json:"name"`
	Brand    *string  `json:"brand"`
	Unit     *string  `json:"unit"`
	Price    *float64 `json:"price" binding:"omitempty,gte=0"`
	MinStock *float64 `json:"min_stock" binding:"omitempty,gte=0"`
}

// AdjustStockRequest 库存调整（正数入库，负数出库）
type AdjustStockRequest struct {
	Delta  float64 `json:"delta" binding:"required"`
	Reason string  `json:"reason"`
}

func (s *ProductService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Product, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *ProductService) Get(ctx context.Context, id string) (*entity.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProductService) LowStock(ctx context.Context) ([]entity.Product, error) {
	return s.repo.FindLowStock(ctx)
}

func (s *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*entity.Product, error) {
	unit := req.Unit
	if unit == "" {
		unit = "un"
	}
	product := &entity.Product{
		ID:       uuid.New().String(),
		Code:     req.Code,
		Name:     req.Name,
		Brand:    req.Brand,
		Unit:     unit,
		Price:    req.Price,
		Stock:    req.Stock,
		MinStock: req.MinStock,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, id string, req *UpdateProductRequest) (*entity.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Unit != nil {
		product.Unit = *req.Unit
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.MinStock != nil {
		product.MinStock = *req.MinStock
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AdjustStock 调整库存，不允许扣成负数
func (s *ProductService) AdjustStock(ctx context.Context, id string, req *AdjustStockRequest) (*entity.Product, error) {
	if req.Delta == 0 {
		return nil, fmt.Errorf("delta must not be zero: %w", ErrInvalidInput)
	}
	return s.repo.AdjustStock(ctx, id, req.Delta)
}
