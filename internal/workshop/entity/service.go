package entity

import (
	"time"

	"gorm.io/gorm"
)

// Service 服务项目（目录）
type Service struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	Name             string         `json:"name" gorm:"size:200;not null"`
	Description      string         `json:"description" gorm:"type:text"`
	Price            float64        `json:"price" gorm:"type:decimal(12,2);default:0"`
	EstimatedMinutes int            `json:"estimated_minutes"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Service) TableName() string {
	return "services"
}
