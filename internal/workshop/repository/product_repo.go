package repository

import (
	"context"
	"fmt"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"gorm.io/gorm"
)

// ProductRepository 配件仓库
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Product, int64, error) {
	var items []entity.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Product{})
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ? OR brand ILIKE ?",
			like(search), like(search), like(search))
	}
	if brand := filters["brand"]; brand != "" {
		query = query.Where("brand = ?", brand)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.Order("name ASC"), page, pageSize).Find(&items).Error
	return items, total, err
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// FindLowStock 查询低于安全库存的配件
func (r *ProductRepository) FindLowStock(ctx context.Context) ([]entity.Product, error) {
	var items []entity.Product
	err := r.db.WithContext(ctx).
		Where("stock <= min_stock").
		Order("stock - min_stock ASC").
		Find(&items).Error
	return items, err
}

func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock 调整库存（delta可为负），库存不能为负
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta float64) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := adjustStock(tx, id, delta); err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&product).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// adjustStock 条件更新，保证并发扣减不会把库存扣成负数
func adjustStock(tx *gorm.DB, id string, delta float64) error {
	res := tx.Model(&entity.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&entity.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return ErrInsufficientStock
}
