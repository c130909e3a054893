package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repositories 维修车间仓库集合
type Repositories struct {
	Customer    *CustomerRepository
	Vehicle     *VehicleRepository
	Employee    *EmployeeRepository
	Product     *ProductRepository
	Service     *ServiceRepository
	Appointment *AppointmentRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Customer:    NewCustomerRepository(db),
		Vehicle:     NewVehicleRepository(db),
		Employee:    NewEmployeeRepository(db),
		Product:     NewProductRepository(db),
		Service:     NewServiceRepository(db),
		Appointment: NewAppointmentRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}

func like(s string) string {
	return "%" + s + "%"
}
