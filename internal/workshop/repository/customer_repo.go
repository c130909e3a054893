package repository

import (
	"context"
	"fmt"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"gorm.io/gorm"
)

// CustomerRepository 客户仓库
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindAll 查询客户列表
func (r *CustomerRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Customer, int64, error) {
	var items []entity.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Customer{})
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ? OR document ILIKE ? OR phone ILIKE ?",
			like(search), like(search), like(search), like(search))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.Order("created_at DESC"), page, pageSize).Find(&items).Error
	return items, total, err
}

// FindByID 根据ID查找客户（含车辆）
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	var customer entity.Customer
	err := r.db.WithContext(ctx).
		Preload("Vehicles").
		Where("id = ?", id).
		First(&customer).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &customer, nil
}

func (r *CustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *CustomerRepository) Update(ctx context.Context, customer *entity.Customer) error {
	return r.db.WithContext(ctx).Omit("Vehicles").Save(customer).Error
}

func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Customer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateCode 生成客户编码 CLI-{5位}
func (r *CustomerRepository) GenerateCode(ctx context.Context) (string, error) {
	var maxCode string
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&entity.Customer{}).
		Select("COALESCE(MAX(code), 'CLI-00000')").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	fmt.Sscanf(maxCode, "CLI-%05d", &seq)
	return fmt.Sprintf("CLI-%05d", seq+1), nil
}
