package service

import (
	"context"
	"strings"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/google/uuid"
)

// CustomerService 客户服务
type CustomerService struct {
	repo *repository.CustomerRepository
}

func NewCustomerService(repo *repository.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// CreateCustomerRequest 创建客户请求
type CreateCustomerRequest struct {
	Name     string `json:"name" binding:"required"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
	Email    string `json:"email" binding:"omitempty,email"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

// UpdateCustomerRequest 更新客户请求
type UpdateCustomerRequest struct {
	Name     *string `json:"name"`
	Document *string `json:"document"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Address  *string `json:"address"`
	Notes    *string `json:"notes"`
}

func (s *CustomerService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Customer, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *CustomerService) Get(ctx context.Context, id string) (*entity.Customer, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *CustomerService) Create(ctx context.Context, userID string, req *CreateCustomerRequest) (*entity.Customer, error) {
	code, err := s.repo.GenerateCode(ctx)
	if err != nil {
		return nil, err
	}

	customer := &entity.Customer{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      strings.TrimSpace(req.Name),
		Document:  onlyDigits(req.Document),
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *CustomerService) Update(ctx context.Context, id string, req *UpdateCustomerRequest) (*entity.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Document != nil {
		customer.Document = onlyDigits(*req.Document)
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.Email != nil {
		customer.Email = *req.Email
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Notes != nil {
		customer.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// onlyDigits CPF/CNPJ只保留数字
func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
