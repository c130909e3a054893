package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/oficina/internal/metrics"
	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/status"
	"github.com/bitfantasy/oficina/internal/workshop/worksession"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// AppointmentRepo 工单持久化，生产实现为 repository.AppointmentRepository
type AppointmentRepo interface {
	FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Appointment, int64, error)
	FindByID(ctx context.Context, id string) (*entity.Appointment, error)
	Create(ctx context.Context, a *entity.Appointment) error
	Update(ctx context.Context, a *entity.Appointment) error
	Delete(ctx context.Context, id string) error
	GenerateCode(ctx context.Context, day time.Time) (string, error)
	Mutate(ctx context.Context, id string, fn func(a *entity.Appointment) error) (*entity.Appointment, error)
	CreateExtraService(ctx context.Context, e *entity.AppointmentExtraService, check func(a *entity.Appointment) error) (*entity.Appointment, error)
	DecideExtraService(ctx context.Context, appointmentID, extraID string, fn func(e *entity.AppointmentExtraService) error) (*entity.AppointmentExtraService, error)
	CreateComment(ctx context.Context, c *entity.AppointmentComment) error
	AddPart(ctx context.Context, p *entity.AppointmentPart) error
	CreateAttachment(ctx context.Context, a *entity.AppointmentAttachment) error
	FindAttachments(ctx context.Context, appointmentID string) ([]entity.AppointmentAttachment, error)
}

// AppointmentService 服务工单与工时会话。
// 所有工时迁移都在仓库行锁内完成，服务端是唯一的串行化点。
type AppointmentService struct {
	repo    AppointmentRepo
	logger  *zap.Logger
	clock   clockwork.Clock
	cache   *AppointmentCache
	storage ObjectStorage
	events  EventPublisher
	metrics *metrics.Server
}

func NewAppointmentService(repo AppointmentRepo, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		repo:   repo,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
}

func (s *AppointmentService) SetClock(clock clockwork.Clock) { s.clock = clock }
func (s *AppointmentService) SetCache(cache *AppointmentCache) { s.cache = cache }
func (s *AppointmentService) SetStorage(storage ObjectStorage) { s.storage = storage }
func (s *AppointmentService) SetPublisher(events EventPublisher) { s.events = events }
func (s *AppointmentService) SetMetrics(m *metrics.Server) { s.metrics = m }

// CreateAppointmentRequest 创建工单请求
type CreateAppointmentRequest struct {
	CustomerID  string     `json:"customer_id" binding:"required"`
	VehicleID   string     `json:"vehicle_id"`
	ServiceID   string     `json:"service_id"`
	EmployeeID  string     `json:"employee_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Notes       string     `json:"notes"`
}

// UpdateAppointmentRequest 更新工单请求（不含状态与工时）
type UpdateAppointmentRequest struct {
	CustomerID  *string    `json:"customer_id"`
	VehicleID   *string    `json:"vehicle_id"`
	ServiceID   *string    `json:"service_id"`
	EmployeeID  *string    `json:"employee_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Notes       *string    `json:"notes"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ProposeExtraServiceRequest struct {
	ServiceID   string  `json:"service_id"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price" binding:"gte=0"`
}

type AddCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type AddPartRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"gte=0"`
}

// WorkTime 工时查询结果
type WorkTime struct {
	AppointmentID  string `json:"appointment_id"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Formatted      string `json:"formatted"`
	IsPaused       bool   `json:"is_paused"`
	State          string `json:"state"`
}

// AttachmentView 附件及下载链接
type AttachmentView struct {
	entity.AppointmentAttachment
	URL string `json:"url"`
}

// List 工单列表，elapsed_seconds 按当前时刻计算
func (s *AppointmentService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Appointment, int64, error) {
	items, total, err := s.repo.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	for i := range items {
		items[i].ElapsedSeconds = items[i].Elapsed(now)
	}
	return items, total, nil
}

// Get 工单详情（优先读缓存）
func (s *AppointmentService) Get(ctx context.Context, id string) (*entity.Appointment, error) {
	a := s.cache.Get(ctx, id)
	if a == nil {
		version, cacheable := s.cache.Version(ctx, id)
		var err error
		a, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.cache.Set(ctx, a, version)
		}
	}
	a.ElapsedSeconds = a.Elapsed(s.clock.Now())
	return a, nil
}

func (s *AppointmentService) Create(ctx context.Context, userID string, req *CreateAppointmentRequest) (*entity.Appointment, error) {
	now := s.clock.Now()
	code, err := s.repo.GenerateCode(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	a := &entity.Appointment{
		ID:          uuid.New().String(),
		Code:        code,
		CustomerID:  req.CustomerID,
		VehicleID:   req.VehicleID,
		ServiceID:   req.ServiceID,
		EmployeeID:  req.EmployeeID,
		ScheduledAt: req.ScheduledAt,
		Status:      entity.StatusPending,
		Notes:       req.Notes,
		CreatedBy:   userID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("appointment created", zap.String("appointment_id", a.ID), zap.String("code", a.Code))
	s.publish(a.ID, "created", a.Status)
	return a, nil
}

func (s *AppointmentService) Update(ctx context.Context, id string, req *UpdateAppointmentRequest) (*entity.Appointment, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CustomerID != nil {
		a.CustomerID = *req.CustomerID
	}
	if req.VehicleID != nil {
		a.VehicleID = *req.VehicleID
	}
	if req.ServiceID != nil {
		a.ServiceID = *req.ServiceID
	}
	if req.EmployeeID != nil {
		a.EmployeeID = *req.EmployeeID
	}
	if req.ScheduledAt != nil {
		a.ScheduledAt = req.ScheduledAt
	}
	if req.Notes != nil {
		a.Notes = *req.Notes
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.changed(ctx, a.ID, "updated", a.Status)
	return s.Get(ctx, id)
}

func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, id, "deleted", "")
	return nil
}

// StartWork 开始工时：仅未开始、未取消且非待付款/已结束的工单
func (s *AppointmentService) StartWork(ctx context.Context, id string) (*entity.Appointment, error) {
	return s.transition(ctx, id, worksession.ActionStart, func(a *entity.Appointment, now time.Time) error {
		if err := checkOpen(a); err != nil {
			return err
		}
		if status.IsPaymentOrFinalized(a.Status) {
			return fmt.Errorf("order is %q: %w", a.Status, ErrInvalidTransition)
		}
		if a.SessionState() != worksession.NotStarted {
			return fmt.Errorf("work already started: %w", ErrInvalidTransition)
		}
		a.BeginWork(now)
		return nil
	})
}

// PauseWork 暂停：仅计时中的工单
func (s *AppointmentService) PauseWork(ctx context.Context, id string) (*entity.Appointment, error) {
	return s.transition(ctx, id, worksession.ActionPause, func(a *entity.Appointment, now time.Time) error {
		if err := checkOpen(a); err != nil {
			return err
		}
		if a.SessionState() != worksession.Running {
			return fmt.Errorf("work is %s, not running: %w", a.SessionState(), ErrInvalidTransition)
		}
		a.PauseWork(now)
		return nil
	})
}

// ResumeWork 恢复：仅已暂停的工单
func (s *AppointmentService) ResumeWork(ctx context.Context, id string) (*entity.Appointment, error) {
	return s.transition(ctx, id, worksession.ActionResume, func(a *entity.Appointment, now time.Time) error {
		if err := checkOpen(a); err != nil {
			return err
		}
		if status.IsPaymentOrFinalized(a.Status) {
			return fmt.Errorf("order is %q: %w", a.Status, ErrInvalidTransition)
		}
		if a.SessionState() != worksession.Paused {
			return fmt.Errorf("work is %s, not paused: %w", a.SessionState(), ErrInvalidTransition)
		}
		a.ResumeWork(now)
		return nil
	})
}

// FinalizeWork 结束工单：计时中或已暂停，且没有待确认的追加服务
func (s *AppointmentService) FinalizeWork(ctx context.Context, id string) (*entity.Appointment, error) {
	return s.transition(ctx, id, worksession.ActionFinalize, func(a *entity.Appointment, now time.Time) error {
		if err := checkOpen(a); err != nil {
			return err
		}
		state := a.SessionState()
		if state != worksession.Running && state != worksession.Paused {
			return fmt.Errorf("work is %s: %w", state, ErrInvalidTransition)
		}
		if a.HasPendingExtras() {
			return ErrPendingExtraServices
		}
		a.FinishWork(now)
		return nil
	})
}

// WorkTime 当前累计工时
func (s *AppointmentService) WorkTime(ctx context.Context, id string) (*WorkTime, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WorkTime{
		AppointmentID:  a.ID,
		ElapsedSeconds: a.ElapsedSeconds,
		Formatted:      worksession.FormatClock(a.ElapsedSeconds),
		IsPaused:       a.IsPaused,
		State:          a.SessionState().String(),
	}, nil
}

// SetStatus 直接设置原始状态（如待付款、取消）。结束工单必须走 FinalizeWork。
func (s *AppointmentService) SetStatus(ctx context.Context, id string, req *SetStatusRequest) (*entity.Appointment, error) {
	label := strings.TrimSpace(req.Status)
	if label == "" {
		return nil, fmt.Errorf("status is empty: %w", ErrInvalidInput)
	}
	canonical := status.Normalize(label)
	if canonical == status.Done {
		return nil, fmt.Errorf("use finalize to close an order: %w", ErrInvalidTransition)
	}

	return s.transition(ctx, id, "status", func(a *entity.Appointment, now time.Time) error {
		if a.SessionState() == worksession.Finalized {
			return fmt.Errorf("order already finalized: %w", ErrInvalidTransition)
		}
		// 取消时冻结计时
		if canonical == status.Canceled && a.SessionState() == worksession.Running {
			a.PauseWork(now)
		}
		a.Status = label
		return nil
	})
}

func (s *AppointmentService) transition(ctx context.Context, id string, action worksession.Action, apply func(a *entity.Appointment, now time.Time) error) (*entity.Appointment, error) {
	a, err := s.repo.Mutate(ctx, id, func(a *entity.Appointment) error {
		return apply(a, s.clock.Now())
	})
	s.metrics.ObserveTransition(string(action), err)
	if err != nil {
		s.logger.Info("appointment transition rejected",
			zap.String("appointment_id", id),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, err
	}

	a.ElapsedSeconds = a.Elapsed(s.clock.Now())
	s.changed(ctx, id, string(action), a.Status)
	s.logger.Info("appointment transition applied",
		zap.String("appointment_id", id),
		zap.String("action", string(action)),
		zap.String("status", a.Status),
		zap.Int64("elapsed_seconds", a.ElapsedSeconds),
	)
	return a, nil
}

// checkOpen 已取消的工单不能再操作工时
func checkOpen(a *entity.Appointment) error {
	if status.Normalize(a.Status) == status.Canceled {
		return fmt.Errorf("order is canceled: %w", ErrInvalidTransition)
	}
	return nil
}

// ProposeExtraService 新增追加服务，等待客户确认。
// 状态校验与插入在同一行锁内，不会给刚结束的工单追加待确认项
func (s *AppointmentService) ProposeExtraService(ctx context.Context, userID, id string, req *ProposeExtraServiceRequest) (*entity.AppointmentExtraService, error) {
	extra := &entity.AppointmentExtraService{
		ID:            uuid.New().String(),
		AppointmentID: id,
		ServiceID:     req.ServiceID,
		Description:   req.Description,
		Price:         req.Price,
		State:         entity.ExtraStatePending,
		ProposedBy:    userID,
	}
	a, err := s.repo.CreateExtraService(ctx, extra, func(a *entity.Appointment) error {
		if canonical := status.Normalize(a.Status); canonical.IsTerminal() {
			return fmt.Errorf("order is %s: %w", canonical, ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, id, "extra_proposed", a.Status)
	return extra, nil
}

func (s *AppointmentService) ApproveExtraService(ctx context.Context, id, extraID string) (*entity.AppointmentExtraService, error) {
	return s.decideExtra(ctx, id, extraID, entity.ExtraStateApproved)
}

func (s *AppointmentService) RejectExtraService(ctx context.Context, id, extraID string) (*entity.AppointmentExtraService, error) {
	return s.decideExtra(ctx, id, extraID, entity.ExtraStateRejected)
}

func (s *AppointmentService) decideExtra(ctx context.Context, id, extraID, state string) (*entity.AppointmentExtraService, error) {
	extra, err := s.repo.DecideExtraService(ctx, id, extraID, func(e *entity.AppointmentExtraService) error {
		if e.State != entity.ExtraStatePending {
			return fmt.Errorf("extra service already %s: %w", e.State, ErrInvalidTransition)
		}
		now := s.clock.Now()
		e.State = state
		e.DecidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, id, "extra_"+state, "")
	return extra, nil
}

func (s *AppointmentService) AddComment(ctx context.Context, author, id string, req *AddCommentRequest) (*entity.AppointmentComment, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	comment := &entity.AppointmentComment{
		ID:            uuid.New().String(),
		AppointmentID: id,
		Author:        author,
		Content:       strings.TrimSpace(req.Content),
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	s.changed(ctx, id, "commented", "")
	return comment, nil
}

// AddPart 登记用料并扣减库存
func (s *AppointmentService) AddPart(ctx context.Context, id string, req *AddPartRequest) (*entity.AppointmentPart, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if canonical := status.Normalize(a.Status); canonical.IsTerminal() {
		return nil, fmt.Errorf("order is %s: %w", canonical, ErrInvalidTransition)
	}

	part := &entity.AppointmentPart{
		ID:            uuid.New().String(),
		AppointmentID: id,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
	}
	if err := s.repo.AddPart(ctx, part); err != nil {
		return nil, err
	}
	s.changed(ctx, id, "part_added", a.Status)
	return part, nil
}

// UploadAttachment 上传照片/单据到对象存储
func (s *AppointmentService) UploadAttachment(ctx context.Context, userID, id string, r io.Reader, fileName string, size int64, contentType string) (*entity.AppointmentAttachment, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("appointments/%s/%s%s", id, uuid.New().String()[:8], strings.ToLower(filepath.Ext(fileName)))
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}

	att := &entity.AppointmentAttachment{
		ID:            uuid.New().String(),
		AppointmentID: id,
		ObjectKey:     key,
		FileName:      filepath.Base(fileName),
		ContentType:   contentType,
		Size:          size,
		UploadedBy:    userID,
	}
	if err := s.repo.CreateAttachment(ctx, att); err != nil {
		return nil, err
	}
	s.changed(ctx, id, "attachment_added", "")
	return att, nil
}

// ListAttachments 附件列表（含临时下载链接）
func (s *AppointmentService) ListAttachments(ctx context.Context, id string) ([]AttachmentView, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	items, err := s.repo.FindAttachments(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]AttachmentView, 0, len(items))
	for _, item := range items {
		u, err := s.storage.URL(ctx, item.ObjectKey, item.FileName)
		if err != nil {
			return nil, err
		}
		views = append(views, AttachmentView{AppointmentAttachment: item, URL: u})
	}
	return views, nil
}

// PrepareStorage 确保附件bucket存在，未配置存储时跳过
func (s *AppointmentService) PrepareStorage(ctx context.Context) error {
	b, ok := s.storage.(interface{ EnsureBucket(context.Context) error })
	if !ok {
		return nil
	}
	return b.EnsureBucket(ctx)
}

// changed 失效缓存并推送事件
func (s *AppointmentService) changed(ctx context.Context, id, action, rawStatus string) {
	s.cache.Invalidate(ctx, id)
	s.publish(id, action, rawStatus)
}

func (s *AppointmentService) publish(id, action, rawStatus string) {
	if s.events == nil {
		return
	}
	s.events.PublishAppointmentUpdate(id, action, rawStatus)
}
