package service

import (
	"context"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/google/uuid"
)

// CatalogService 服务项目目录
type CatalogService struct {
	repo *repository.ServiceRepository
}

func NewCatalogService(repo *repository.ServiceRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

type CreateServiceRequest struct {
	Name             string  `json:"name" binding:"required"`
	Description      string  `json:"description"`
	Price            float64 `json:"price" binding:"gte=0"`
	EstimatedMinutes int     `json:"estimated_minutes" binding:"gte=0"`
}

type UpdateServiceRequest struct {
	Name             *string  `json:"name"`
	Description      *string  `json:"description"`
	Price            *float64 `json:"price" binding:"omitempty,gte=0"`
	EstimatedMinutes *int     `json:"estimated_minutes" binding:"omitempty,gte=0"`
}

func (s *CatalogService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Service, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *CatalogService) Get(ctx context.Context, id string) (*entity.Service, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, req *CreateServiceRequest) (*entity.Service, error) {
	svc := &entity.Service{
		ID:               uuid.New().String(),
		Name:             req.Name,
		Description:      req.Description,
		Price:            req.Price,
		EstimatedMinutes: req.EstimatedMinutes,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, req *UpdateServiceRequest) (*entity.Service, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.Description != nil {
		svc.Description = *req.Description
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	if req.EstimatedMinutes != nil {
		svc.EstimatedMinutes = *req.EstimatedMinutes
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
