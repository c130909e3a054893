package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handlers 处理器集合
type Handlers struct {
	Customer    *CustomerHandler
	Vehicle     *VehicleHandler
	Employee    *EmployeeHandler
	Product     *ProductHandler
	Catalog     *CatalogHandler
	Appointment *AppointmentHandler
	SSE         *SSEHandler
}

// NewHandlers 创建处理器集合。hub为nil时不注册 /events
func NewHandlers(svc *service.Services, hub EventHub) *Handlers {
	h := &Handlers{
		Customer:    NewCustomerHandler(svc.Customer),
		Vehicle:     NewVehicleHandler(svc.Vehicle),
		Employee:    NewEmployeeHandler(svc.Employee),
		Product:     NewProductHandler(svc.Product),
		Catalog:     NewCatalogHandler(svc.Catalog),
		Appointment: NewAppointmentHandler(svc.Appointment, svc.Export),
	}
	if hub != nil {
		var worktimes WorkTimeSource
		if svc.Appointment != nil {
			worktimes = svc.Appointment
		}
		h.SSE = NewSSEHandler(hub, worktimes)
	}
	return h
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{Code: 0, Message: "success", Data: data})
}

// Error HTTP状态码取 code/100
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// 业务错误码
const (
	CodeInvalidTransition   = 40900
	CodePendingExtraService = 40901
	CodeInsufficientStock   = 40902
	CodeDuplicate           = 40903
	CodeStorageUnavailable  = 50300
)

// Fail 按错误类型返回对应的错误码
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPendingExtraServices):
		Error(c, CodePendingExtraService, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		Error(c, CodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		Error(c, CodeInsufficientStock, err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Error(c, CodeDuplicate, "record already exists")
	case errors.Is(err, service.ErrStorageUnavailable):
		Error(c, CodeStorageUnavailable, err.Error())
	default:
		c.Error(err)
		InternalError(c, "internal error")
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetOperator 操作人名称，未登录时回退到user_id
func GetOperator(c *gin.Context) string {
	if name := c.GetString("user_name"); name != "" {
		return name
	}
	return GetUserID(c)
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

// Filters 从query中提取过滤条件，忽略空值
func Filters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			filters[k] = v
		}
	}
	return filters
}

func successList(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}
