package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/repository"
)

// MemoryAppointmentRepo 内存版工单仓库，语义与 repository.AppointmentRepository 一致
// （Mutate失败不落盘、用料扣减库存）
type MemoryAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[string]*entity.Appointment
	extras       map[string][]entity.AppointmentExtraService
	comments     map[string][]entity.AppointmentComment
	parts        map[string][]entity.AppointmentPart
	attachments  map[string][]entity.AppointmentAttachment
	stock        map[string]float64
	seq          int

	MutateCalls int
}

func NewMemoryAppointmentRepo() *MemoryAppointmentRepo {
	return &MemoryAppointmentRepo{
		appointments: make(map[string]*entity.Appointment),
		extras:       make(map[string][]entity.AppointmentExtraService),
		comments:     make(map[string][]entity.AppointmentComment),
		parts:        make(map[string][]entity.AppointmentPart),
		attachments:  make(map[string][]entity.AppointmentAttachment),
		stock:        make(map[string]float64),
	}
}

// Put 直接写入工单（测试数据准备）
func (r *MemoryAppointmentRepo) Put(a *entity.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.extras[a.ID] = append([]entity.AppointmentExtraService(nil), a.ExtraServices...)
	cp.ExtraServices = nil
	r.appointments[a.ID] = &cp
}

// SetStock 设置配件库存
func (r *MemoryAppointmentRepo) SetStock(productID string, qty float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[productID] = qty
}

func (r *MemoryAppointmentRepo) Stock(productID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[productID]
}

func (r *MemoryAppointmentRepo) load(id string) (*entity.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	cp.ExtraServices = append([]entity.AppointmentExtraService(nil), r.extras[id]...)
	cp.Comments = append([]entity.AppointmentComment(nil), r.comments[id]...)
	cp.Parts = append([]entity.AppointmentPart(nil), r.parts[id]...)
	return &cp, nil
}

func (r *MemoryAppointmentRepo) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Appointment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []entity.Appointment
	for id, a := range r.appointments {
		if s := filters["status"]; s != "" && a.Status != s {
			continue
		}
		if c := filters["customer_id"]; c != "" && a.CustomerID != c {
			continue
		}
		item, _ := r.load(id)
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })

	total := int64(len(items))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []entity.Appointment{}, total, nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total, nil
}

func (r *MemoryAppointmentRepo) FindForExport(ctx context.Context, filters map[string]string) ([]entity.Appointment, error) {
	items, _, err := r.FindAll(ctx, 1, 10000, filters)
	return items, err
}

func (r *MemoryAppointmentRepo) FindByID(ctx context.Context, id string) (*entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(id)
}

func (r *MemoryAppointmentRepo) Create(ctx context.Context, a *entity.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appointments[a.ID]; exists {
		return fmt.Errorf("duplicate id %s", a.ID)
	}
	cp := *a
	cp.CreatedAt = time.Now()
	r.appointments[a.ID] = &cp
	return nil
}

func (r *MemoryAppointmentRepo) Update(ctx context.Context, a *entity.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.appointments[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.CustomerID = a.CustomerID
	cur.VehicleID = a.VehicleID
	cur.ServiceID = a.ServiceID
	cur.EmployeeID = a.EmployeeID
	cur.ScheduledAt = a.ScheduledAt
	cur.Notes = a.Notes
	return nil
}

func (r *MemoryAppointmentRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *MemoryAppointmentRepo) GenerateCode(ctx context.Context, day time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("OS-%s%04d", day.Format("20060102"), r.seq), nil
}

func (r *MemoryAppointmentRepo) Mutate(ctx context.Context, id string, fn func(a *entity.Appointment) error) (*entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MutateCalls++

	a, err := r.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}

	cur := r.appointments[id]
	cur.Status = a.Status
	cur.StartTime = a.StartTime
	cur.IsPaused = a.IsPaused
	cur.PausedAt = a.PausedAt
	cur.ResumedAt = a.ResumedAt
	cur.AccumulatedSeconds = a.AccumulatedSeconds
	cur.FinishedAt = a.FinishedAt
	return a, nil
}

func (r *MemoryAppointmentRepo) CreateExtraService(ctx context.Context, e *entity.AppointmentExtraService, check func(a *entity.Appointment) error) (*entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.load(e.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := check(a); err != nil {
		return nil, err
	}
	r.extras[e.AppointmentID] = append(r.extras[e.AppointmentID], *e)
	return a, nil
}

func (r *MemoryAppointmentRepo) DecideExtraService(ctx context.Context, appointmentID, extraID string, fn func(e *entity.AppointmentExtraService) error) (*entity.AppointmentExtraService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.extras[appointmentID]
	for i := range list {
		if list[i].ID != extraID {
			continue
		}
		e := list[i]
		if err := fn(&e); err != nil {
			return nil, err
		}
		list[i] = e
		return &e, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryAppointmentRepo) CreateComment(ctx context.Context, c *entity.AppointmentComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments[c.AppointmentID] = append(r.comments[c.AppointmentID], *c)
	return nil
}

func (r *MemoryAppointmentRepo) AddPart(ctx context.Context, p *entity.AppointmentPart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stock[p.ProductID]
	if !ok {
		return fmt.Errorf("product %s: %w", p.ProductID, repository.ErrNotFound)
	}
	if stock < p.Quantity {
		return repository.ErrInsufficientStock
	}
	r.stock[p.ProductID] = stock - p.Quantity
	r.parts[p.AppointmentID] = append(r.parts[p.AppointmentID], *p)
	return nil
}

func (r *MemoryAppointmentRepo) CreateAttachment(ctx context.Context, a *entity.AppointmentAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments[a.AppointmentID] = append(r.attachments[a.AppointmentID], *a)
	return nil
}

func (r *MemoryAppointmentRepo) FindAttachments(ctx context.Context, appointmentID string) ([]entity.AppointmentAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.AppointmentAttachment(nil), r.attachments[appointmentID]...), nil
}
