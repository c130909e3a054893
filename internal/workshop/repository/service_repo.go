package repository

import (
	"context"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"gorm.io/gorm"
)

// ServiceRepository 服务项目仓库
type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Service, int64, error) {
	var items []entity.Service
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Service{})
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR description ILIKE ?", like(search), like(search))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.Order("name ASC"), page, pageSize).Find(&items).Error
	return items, total, err
}

func (r *ServiceRepository) FindByID(ctx context.Context, id string) (*entity.Service, error) {
	var svc entity.Service
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&svc).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

func (r *ServiceRepository) Create(ctx context.Context, svc *entity.Service) error {
	return r.db.WithContext(ctx).Create(svc).Error
}

func (r *ServiceRepository) Update(ctx context.Context, svc *entity.Service) error {
	return r.db.WithContext(ctx).Save(svc).Error
}

func (r *ServiceRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Service{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
