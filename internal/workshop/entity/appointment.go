package entity

import (
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/worksession"
	"gorm.io/gorm"
)

// AppointmentStatus 服务工单原始状态（后端标签，拼写沿用旧系统）
const (
	StatusPending          = "Pendente"
	StatusAwaitingApproval = "Awaiting Approval"
	StatusInRepair         = "In Repair"
	StatusWaitingPayment   = "Waitting Payment"
	StatusFinalized        = "Finalized"
	StatusCanceled         = "Canceled"
)

// ExtraServiceState 追加服务审批状态
const (
	ExtraStatePending  = worksession.ExtraPending
	ExtraStateApproved = worksession.ExtraApproved
	ExtraStateRejected = worksession.ExtraRejected
)

// Appointment 服务工单（预约）
type Appointment struct {
	ID                 string         `json:"id" gorm:"primaryKey;size:36"`
	Code               string         `json:"code" gorm:"size:50;not null;uniqueIndex"`
	CustomerID         string         `json:"customer_id" gorm:"size:36;not null;index"`
	VehicleID          string         `json:"vehicle_id" gorm:"size:36;index"`
	ServiceID          string         `json:"service_id" gorm:"size:36;index"`
	EmployeeID         string         `json:"employee_id" gorm:"size:36;index"`
	ScheduledAt        *time.Time     `json:"scheduled_at"`
	Status             string         `json:"status" gorm:"size:50;not null;default:Pendente"`
	StartTime          *time.Time     `json:"start_time"`
	IsPaused           bool           `json:"is_paused" gorm:"default:false"`
	PausedAt           *time.Time     `json:"paused_at"`
	ResumedAt          *time.Time     `json:"resumed_at"`                        // 当前计时段起点
	AccumulatedSeconds int64          `json:"accumulated_seconds" gorm:"default:0"` // 已结算工时
	FinishedAt         *time.Time     `json:"finished_at"`
	Notes              string         `json:"notes" gorm:"type:text"`
	CreatedBy          string         `json:"created_by" gorm:"size:64"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`

	// 计算字段
	ElapsedSeconds int64 `json:"elapsed_seconds" gorm:"-"`

	Customer      *Customer                 `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Vehicle       *Vehicle                  `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
	Service       *Service                  `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
	Employee      *Employee                 `json:"employee,omitempty" gorm:"foreignKey:EmployeeID"`
	ExtraServices []AppointmentExtraService `json:"extra_services" gorm:"foreignKey:AppointmentID"`
	Comments      []AppointmentComment      `json:"comments" gorm:"foreignKey:AppointmentID"`
	Parts         []AppointmentPart         `json:"parts" gorm:"foreignKey:AppointmentID"`
	Attachments   []AppointmentAttachment   `json:"attachments,omitempty" gorm:"foreignKey:AppointmentID"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// SessionState 当前工时状态
func (a *Appointment) SessionState() worksession.State {
	return worksession.Derive(a.Status, a.StartTime != nil, a.IsPaused)
}

// Elapsed 截至now的累计工时（秒），不会为负
func (a *Appointment) Elapsed(now time.Time) int64 {
	total := a.AccumulatedSeconds
	if a.StartTime != nil && !a.IsPaused && a.FinishedAt == nil && a.ResumedAt != nil {
		total += worksession.ClampSeconds(now.Sub(*a.ResumedAt))
	}
	if total < 0 {
		return 0
	}
	return total
}

// settle 把当前计时段计入累计工时
func (a *Appointment) settle(now time.Time) {
	a.AccumulatedSeconds = a.Elapsed(now)
	a.ResumedAt = nil
}

// BeginWork 开始计时
func (a *Appointment) BeginWork(now time.Time) {
	a.StartTime = &now
	a.ResumedAt = &now
	a.IsPaused = false
	a.PausedAt = nil
	a.AccumulatedSeconds = 0
	a.Status = StatusInRepair
}

// PauseWork 暂停计时
func (a *Appointment) PauseWork(now time.Time) {
	a.settle(now)
	a.IsPaused = true
	a.PausedAt = &now
}

// ResumeWork 恢复计时
func (a *Appointment) ResumeWork(now time.Time) {
	a.IsPaused = false
	a.PausedAt = nil
	a.ResumedAt = &now
}

// FinishWork 结束工单
func (a *Appointment) FinishWork(now time.Time) {
	if !a.IsPaused {
		a.settle(now)
	}
	a.IsPaused = false
	a.PausedAt = nil
	a.ResumedAt = nil
	a.FinishedAt = &now
	a.Status = StatusFinalized
}

// HasPendingExtras 是否存在待审批的追加服务
func (a *Appointment) HasPendingExtras() bool {
	for _, e := range a.ExtraServices {
		if e.State == ExtraStatePending {
			return true
		}
	}
	return false
}

// AppointmentExtraService 追加服务（需客户确认）
type AppointmentExtraService struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	AppointmentID string     `json:"appointment_id" gorm:"size:36;not null;index"`
	ServiceID     string     `json:"service_id" gorm:"size:36"`
	Description   string     `json:"description" gorm:"type:text;not null"`
	Price         float64    `json:"price" gorm:"type:decimal(12,2);default:0"`
	State         string     `json:"state" gorm:"size:20;not null;default:pending"`
	ProposedBy    string     `json:"proposed_by" gorm:"size:64"`
	DecidedAt     *time.Time `json:"decided_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (AppointmentExtraService) TableName() string {
	return "appointment_extra_services"
}

// AppointmentComment 工单备注
type AppointmentComment struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	AppointmentID string    `json:"appointment_id" gorm:"size:36;not null;index"`
	Author        string    `json:"author" gorm:"size:100"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (AppointmentComment) TableName() string {
	return "appointment_comments"
}

// AppointmentPart 工单用料
type AppointmentPart struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	AppointmentID string    `json:"appointment_id" gorm:"size:36;not null;index"`
	ProductID     string    `json:"product_id" gorm:"size:36;not null"`
	Quantity      float64   `json:"quantity" gorm:"type:decimal(12,2);not null"`
	UnitPrice     float64   `json:"unit_price" gorm:"type:decimal(12,2);default:0"`
	CreatedAt     time.Time `json:"created_at"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (AppointmentPart) TableName() string {
	return "appointment_parts"
}

// AppointmentAttachment 工单附件（照片/单据），文件存于对象存储
type AppointmentAttachment struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	AppointmentID string    `json:"appointment_id" gorm:"size:36;not null;index"`
	ObjectKey     string    `json:"object_key" gorm:"size:500;not null"`
	FileName      string    `json:"file_name" gorm:"size:255;not null"`
	ContentType   string    `json:"content_type" gorm:"size:100"`
	Size          int64     `json:"size"`
	UploadedBy    string    `json:"uploaded_by" gorm:"size:64"`
	CreatedAt     time.Time `json:"created_at"`
}

func (AppointmentAttachment) TableName() string {
	return "appointment_attachments"
}
