package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/google/uuid"
)

// EmployeeService 员工服务
type EmployeeService struct {
	repo *repository.EmployeeRepository
}

func NewEmployeeService(repo *repository.EmployeeRepository) *EmployeeService {
	return &EmployeeService{repo: repo}
}

type CreateEmployeeRequest struct {
	Name  string `json:"name" binding:"required"`
	Role  string `json:"role"`
	Phone string `json:"phone"`
	Email string `json:"email" binding:"omitempty,email"`
}

type UpdateEmployeeRequest struct {
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Phone  *string `json:"phone"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Active *bool   `json:"active"`
}

func validRole(role string) bool {
	switch role {
	case entity.EmployeeRoleMechanic, entity.EmployeeRoleElectrician,
		entity.EmployeeRoleAttendant, entity.EmployeeRoleManager:
		return true
	}
	return false
}

func (s *EmployeeService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Employee, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *EmployeeService) Get(ctx context.Context, id string) (*entity.Employee, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *EmployeeService) Create(ctx context.Context, req *CreateEmployeeRequest) (*entity.Employee, error) {
	role := req.Role
	if role == "" {
		role = entity.EmployeeRoleMechanic
	}
	if !validRole(role) {
		return nil, fmt.Errorf("unknown role %q: %w", role, ErrInvalidInput)
	}

	employee := &entity.Employee{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Role:   role,
		Phone:  req.Phone,
		Email:  req.Email,
		Active: true,
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *EmployeeService) Update(ctx context.Context, id string, req *UpdateEmployeeRequest) (*entity.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		employee.Name = *req.Name
	}
	if req.Role != nil {
		if !validRole(*req.Role) {
			return nil, fmt.Errorf("unknown role %q: %w", *req.Role, ErrInvalidInput)
		}
		employee.Role = *req.Role
	}
	if req.Phone != nil {
		employee.Phone = *req.Phone
	}
	if req.Email != nil {
		employee.Email = *req.Email
	}
	if req.Active != nil {
		employee.Active = *req.Active
	}

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
