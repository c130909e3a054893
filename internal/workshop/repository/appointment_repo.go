package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppointmentRepository 服务工单仓库
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindAll 查询工单列表
func (r *AppointmentRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Appointment, int64, error) {
	var items []entity.Appointment
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Appointment{})
	if search := filters["search"]; search != "" {
		query = query.Where("code ILIKE ? OR notes ILIKE ? OR vehicle_id IN (?)",
			like(search), like(search),
			r.db.Model(&entity.Vehicle{}).Select("id").Where("plate ILIKE ?", like(search)))
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if customerID := filters["customer_id"]; customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if employeeID := filters["employee_id"]; employeeID != "" {
		query = query.Where("employee_id = ?", employeeID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.
		Preload("Customer").
		Preload("Vehicle").
		Preload("Employee").
		Order("created_at DESC"), page, pageSize).
		Find(&items).Error
	return items, total, err
}

// FindByID 查找工单详情
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*entity.Appointment, error) {
	var a entity.Appointment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vehicle").
		Preload("Service").
		Preload("Employee").
		Preload("ExtraServices", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Parts.Product").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, a *entity.Appointment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error
}

// Update 更新工单基本信息（不含工时字段）
func (r *AppointmentRepository) Update(ctx context.Context, a *entity.Appointment) error {
	return r.db.WithContext(ctx).
		Model(&entity.Appointment{ID: a.ID}).
		Omit(clause.Associations).
		Updates(map[string]interface{}{
			"customer_id":  a.CustomerID,
			"vehicle_id":   a.VehicleID,
			"service_id":   a.ServiceID,
			"employee_id":  a.EmployeeID,
			"scheduled_at": a.ScheduledAt,
			"notes":        a.Notes,
		}).Error
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Appointment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateCode 生成工单编码 OS-YYYYMMDD{4位}
func (r *AppointmentRepository) GenerateCode(ctx context.Context, day time.Time) (string, error) {
	prefix := "OS-" + day.Format("20060102")
	var maxCode string
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&entity.Appointment{}).
		Select("COALESCE(MAX(code), ?)", prefix+"0000").
		Where("code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	fmt.Sscanf(maxCode[len(prefix):], "%04d", &seq)
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// Mutate 在行锁内读取工单、执行fn并写回工时字段。
// fn返回错误时事务回滚，工单不变。
func (r *AppointmentRepository) Mutate(ctx context.Context, id string, fn func(a *entity.Appointment) error) (*entity.Appointment, error) {
	var a entity.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&a).Error
		if err != nil {
			return notFound(err)
		}
		if err := tx.Where("appointment_id = ?", id).Order("created_at ASC").Find(&a.ExtraServices).Error; err != nil {
			return err
		}

		if err := fn(&a); err != nil {
			return err
		}

		return tx.Model(&entity.Appointment{ID: a.ID}).Updates(map[string]interface{}{
			"status":              a.Status,
			"start_time":          a.StartTime,
			"is_paused":           a.IsPaused,
			"paused_at":           a.PausedAt,
			"resumed_at":          a.ResumedAt,
			"accumulated_seconds": a.AccumulatedSeconds,
			"finished_at":         a.FinishedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateExtraService 在工单行锁内校验并新增追加服务，与 Mutate 中的结束校验互斥
func (r *AppointmentRepository) CreateExtraService(ctx context.Context, e *entity.AppointmentExtraService, check func(a *entity.Appointment) error) (*entity.Appointment, error) {
	var a entity.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", e.AppointmentID).
			First(&a).Error
		if err != nil {
			return notFound(err)
		}
		if err := check(&a); err != nil {
			return err
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DecideExtraService 在行锁内修改追加服务的审批状态
func (r *AppointmentRepository) DecideExtraService(ctx context.Context, appointmentID, extraID string, fn func(e *entity.AppointmentExtraService) error) (*entity.AppointmentExtraService, error) {
	var e entity.AppointmentExtraService
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND appointment_id = ?", extraID, appointmentID).
			First(&e).Error
		if err != nil {
			return notFound(err)
		}
		if err := fn(&e); err != nil {
			return err
		}
		return tx.Model(&e).Updates(map[string]interface{}{
			"state":      e.State,
			"decided_at": e.DecidedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateComment 新增备注
func (r *AppointmentRepository) CreateComment(ctx context.Context, c *entity.AppointmentComment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// AddPart 登记用料并扣减库存，库存不足时整体回滚
func (r *AppointmentRepository) AddPart(ctx context.Context, p *entity.AppointmentPart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := adjustStock(tx, p.ProductID, -p.Quantity); err != nil {
			return err
		}
		if p.UnitPrice == 0 {
			var product entity.Product
			if err := tx.Select("price").Where("id = ?", p.ProductID).First(&product).Error; err != nil {
				return notFound(err)
			}
			p.UnitPrice = product.Price
		}
		return tx.Omit("Product").Create(p).Error
	})
}

// CreateAttachment 登记附件
func (r *AppointmentRepository) CreateAttachment(ctx context.Context, a *entity.AppointmentAttachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// FindAttachments 查询工单附件
func (r *AppointmentRepository) FindAttachments(ctx context.Context, appointmentID string) ([]entity.AppointmentAttachment, error) {
	var items []entity.AppointmentAttachment
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindForExport 导出用：按过滤条件查询全部工单
func (r *AppointmentRepository) FindForExport(ctx context.Context, filters map[string]string) ([]entity.Appointment, error) {
	items, _, err := r.FindAll(ctx, 1, 10000, filters)
	return items, err
}
