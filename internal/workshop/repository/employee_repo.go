package repository

import (
	"context"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"gorm.io/gorm"
)

// EmployeeRepository 员工仓库
type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Employee, int64, error) {
	var items []entity.Employee
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Employee{})
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", like(search), like(search))
	}
	if role := filters["role"]; role != "" {
		query = query.Where("role = ?", role)
	}
	if active := filters["active"]; active != "" {
		query = query.Where("active = ?", active == "true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.Order("name ASC"), page, pageSize).Find(&items).Error
	return items, total, err
}

func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*entity.Employee, error) {
	var employee entity.Employee
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error; err != nil {
		return nil, notFound(err)
	}
	return &employee, nil
}

func (r *EmployeeRepository) Create(ctx context.Context, employee *entity.Employee) error {
	return r.db.WithContext(ctx).Create(employee).Error
}

func (r *EmployeeRepository) Update(ctx context.Context, employee *entity.Employee) error {
	return r.db.WithContext(ctx).Save(employee).Error
}

func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Employee{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
