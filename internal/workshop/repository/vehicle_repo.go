package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"gorm.io/gorm"
)

// VehicleRepository 车辆仓库
type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// FindAll 查询车辆列表，可按客户过滤
func (r *VehicleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Vehicle, int64, error) {
	var items []entity.Vehicle
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Vehicle{})
	if search := filters["search"]; search != "" {
		query = query.Where("plate ILIKE ? OR brand ILIKE ? OR model ILIKE ?",
			like(search), like(search), like(search))
	}
	if customerID := filters["customer_id"]; customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.Preload("Customer").Order("created_at DESC"), page, pageSize).Find(&items).Error
	return items, total, err
}

func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*entity.Vehicle, error) {
	var vehicle entity.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("id = ?", id).
		First(&vehicle).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &vehicle, nil
}

// FindByPlate 按车牌查找
func (r *VehicleRepository) FindByPlate(ctx context.Context, plate string) (*entity.Vehicle, error) {
	var vehicle entity.Vehicle
	err := r.db.WithContext(ctx).
		Where("plate = ?", strings.ToUpper(plate)).
		First(&vehicle).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &vehicle, nil
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *entity.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

func (r *VehicleRepository) Update(ctx context.Context, vehicle *entity.Vehicle) error {
	return r.db.WithContext(ctx).Omit("Customer").Save(vehicle).Error
}

func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Vehicle{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
