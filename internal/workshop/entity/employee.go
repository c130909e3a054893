package entity

import (
	"time"

	"gorm.io/gorm"
)

// EmployeeRole 员工岗位
const (
	EmployeeRoleMechanic    = "mechanic"
	EmployeeRoleElectrician = "electrician"
	EmployeeRoleAttendant   = "attendant"
	EmployeeRoleManager     = "manager"
)

// Employee 员工
type Employee struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	Name      string         `json:"name" gorm:"size:100;not null"`
	Role      string         `json:"role" gorm:"size:30;not null;default:mechanic"`
	Phone     string         `json:"phone" gorm:"size:20"`
	Email     string         `json:"email" gorm:"size:100"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Employee) TableName() string {
	return "employees"
}
