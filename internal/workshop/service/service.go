package service

import (
	"errors"

	"github.com/bitfantasy/oficina/internal/config"
	"github.com/bitfantasy/oficina/internal/metrics"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrInvalidTransition 当前工时状态不允许该操作
	ErrInvalidTransition = errors.New("invalid work session transition")
	// ErrPendingExtraServices 仍有追加服务待客户确认，不能结束工单
	ErrPendingExtraServices = errors.New("extra services pending approval")
	ErrInsufficientStock    = repository.ErrInsufficientStock
	ErrStorageUnavailable   = errors.New("attachment storage not configured")
	ErrInvalidInput         = errors.New("invalid input")
)

// EventPublisher 工单变更推送（SSE）
type EventPublisher interface {
	PublishAppointmentUpdate(appointmentID, action, status string)
}

// Services 服务集合
type Services struct {
	Customer    *CustomerService
	Vehicle     *VehicleService
	Employee    *EmployeeService
	Product     *ProductService
	Catalog     *CatalogService
	Appointment *AppointmentService
	Export      *ExportService
}

// NewServices 创建服务集合。rdb为nil时不使用缓存，未配置MinIO时附件功能不可用
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger, events EventPublisher, m *metrics.Server) *Services {
	appointmentSvc := NewAppointmentService(repos.Appointment, logger)
	appointmentSvc.SetPublisher(events)
	appointmentSvc.SetMetrics(m)

	if rdb != nil && cfg.Redis.CacheTTL > 0 {
		appointmentSvc.SetCache(NewAppointmentCache(rdb, cfg.Redis.CacheTTL, m))
	}

	// 初始化MinIO客户端
	if cfg.MinIO.Endpoint != "" {
		client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio unavailable, attachments disabled", zap.Error(err))
		} else {
			appointmentSvc.SetStorage(NewAttachmentStorage(client, cfg.MinIO.Bucket, cfg.MinIO.URLExpiry))
		}
	}

	return &Services{
		Customer:    NewCustomerService(repos.Customer),
		Vehicle:     NewVehicleService(repos.Vehicle, repos.Customer),
		Employee:    NewEmployeeService(repos.Employee),
		Product:     NewProductService(repos.Product),
		Catalog:     NewCatalogService(repos.Service),
		Appointment: appointmentSvc,
		Export:      NewExportService(repos.Appointment, appointmentSvc.clock),
	}
}
