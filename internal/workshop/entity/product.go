package entity

import (
	"time"

	"gorm.io/gorm"
)

// Product 配件/库存商品
type Product struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	Code      string         `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string         `json:"name" gorm:"size:200;not null"`
	Brand     string         `json:"brand" gorm:"size:100"`
	Unit      string         `json:"unit" gorm:"size:20;default:un"`
	Price     float64        `json:"price" gorm:"type:decimal(12,2);default:0"`
	Stock     float64        `json:"stock" gorm:"type:decimal(12,2);default:0"`
	MinStock  float64        `json:"min_stock" gorm:"type:decimal(12,2);default:0"` // 安全库存
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Product) TableName() string {
	return "products"
}

// LowStock 是否低于安全库存
func (p *Product) LowStock() bool {
	return p.Stock <= p.MinStock
}
