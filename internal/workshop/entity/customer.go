package entity

import (
	"time"

	"gorm.io/gorm"
)

// Customer 客户
type Customer struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	Code      string         `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string         `json:"name" gorm:"size:200;not null"`
	Document  string         `json:"document" gorm:"size:20;index"` // CPF/CNPJ
	Phone     string         `json:"phone" gorm:"size:20"`
	Email     string         `json:"email" gorm:"size:100"`
	Address   string         `json:"address" gorm:"size:500"`
	Notes     string         `json:"notes" gorm:"type:text"`
	CreatedBy string         `json:"created_by" gorm:"size:64"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Vehicles []Vehicle `json:"vehicles,omitempty" gorm:"foreignKey:CustomerID"`
}

func (Customer) TableName() string {
	return "customers"
}
