package entity

import (
	"time"

	"gorm.io/gorm"
)

// Vehicle 车辆
type Vehicle struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	CustomerID string         `json:"customer_id" gorm:"size:36;not null;index"`
	Plate      string         `json:"plate" gorm:"size:10;not null;uniqueIndex"`
	Brand      string         `json:"brand" gorm:"size:50"`
	Model      string         `json:"model" gorm:"size:100"`
	Year       int            `json:"year"`
	Color      string         `json:"color" gorm:"size:30"`
	Mileage    int            `json:"mileage"`
	Notes      string         `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
