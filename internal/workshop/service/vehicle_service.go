package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/google/uuid"
)

// VehicleService 车辆服务
type VehicleService struct {
	repo         *repository.VehicleRepository
	customerRepo *repository.CustomerRepository
}

func NewVehicleService(repo *repository.VehicleRepository, customerRepo *repository.CustomerRepository) *VehicleService {
	return &VehicleService{repo: repo, customerRepo: customerRepo}
}

type CreateVehicleRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
	Plate      string `json:"plate" binding:"required"`
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
	Color      string `json:"color"`
	Mileage    int    `json:"mileage"`
	Notes      string `json:"notes"`
}

type UpdateVehicleRequest struct {
	CustomerID *string `json:"customer_id"`
	Plate      *string `json:"plate"`
	Brand      *string `json:"brand"`
	Model      *string `json:"model"`
	Year       *int    `json:"year"`
	Color      *string `json:"color"`
	Mileage    *int    `json:"mileage"`
	Notes      *string `json:"notes"`
}

func (s *VehicleService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Vehicle, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *VehicleService) Get(ctx context.Context, id string) (*entity.Vehicle, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *VehicleService) Create(ctx context.Context, req *CreateVehicleRequest) (*entity.Vehicle, error) {
	if _, err := s.customerRepo.FindByID(ctx, req.CustomerID); err != nil {
		return nil, fmt.Errorf("customer %s: %w", req.CustomerID, err)
	}

	vehicle := &entity.Vehicle{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Plate:      normalizePlate(req.Plate),
		Brand:      req.Brand,
		Model:      req.Model,
		Year:       req.Year,
		Color:      req.Color,
		Mileage:    req.Mileage,
		Notes:      req.Notes,
	}
	if err := s.repo.Create(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *VehicleService) Update(ctx context.Context, id string, req *UpdateVehicleRequest) (*entity.Vehicle, error) {
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil && *req.CustomerID != vehicle.CustomerID {
		if _, err := s.customerRepo.FindByID(ctx, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("customer %s: %w", *req.CustomerID, err)
		}
		vehicle.CustomerID = *req.CustomerID
		vehicle.Customer = nil
	}
	if req.Plate != nil {
		vehicle.Plate = normalizePlate(*req.Plate)
	}
	if req.Brand != nil {
		vehicle.Brand = *req.Brand
	}
	if req.Model != nil {
		vehicle.Model = *req.Model
	}
	if req.Year != nil {
		vehicle.Year = *req.Year
	}
	if req.Color != nil {
		vehicle.Color = *req.Color
	}
	if req.Mileage != nil {
		if *req.Mileage < vehicle.Mileage {
			return nil, fmt.Errorf("mileage can not decrease: %w", ErrInvalidInput)
		}
		vehicle.Mileage = *req.Mileage
	}
	if req.Notes != nil {
		vehicle.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *VehicleService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// normalizePlate 车牌统一大写去掉分隔符（ABC-1234 / ABC1D23）
func normalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	return strings.NewReplacer("-", "", " ", "").Replace(plate)
}
