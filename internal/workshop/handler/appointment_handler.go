package handler

import (
	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/gin-gonic/gin"
)

// 附件上传大小上限
const maxAttachmentSize = 20 << 20

// AppointmentHandler 服务工单处理器
type AppointmentHandler struct {
	svc    *service.AppointmentService
	export *service.ExportService
}

func NewAppointmentHandler(svc *service.AppointmentService, export *service.ExportService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, export: export}
}

// List 工单列表
// GET /api/v1/appointments?search=xxx&status=xxx&customer_id=xxx&employee_id=xxx
func (h *AppointmentHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize,
		Filters(c, "search", "status", "customer_id", "employee_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	successList(c, items, total, page, pageSize)
}

// Export 导出工单Excel
// GET /api/v1/appointments/export?status=xxx
func (h *AppointmentHandler) Export(c *gin.Context) {
	f, filename, err := h.export.ExportAppointments(c.Request.Context(),
		Filters(c, "search", "status", "customer_id", "employee_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}

// Create POST /api/v1/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, a)
}

// Get GET /api/v1/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

// Update PUT /api/v1/appointments/:id
func (h *AppointmentHandler) Update(c *gin.Context) {
	var req service.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

// Delete DELETE /api/v1/appointments/:id
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// ==================== 工时会话 ====================

// Start POST /api/v1/appointments/:id/start
func (h *AppointmentHandler) Start(c *gin.Context) {
	h.respond(c)(h.svc.StartWork(c.Request.Context(), c.Param("id")))
}

// Pause POST /api/v1/appointments/:id/pause
func (h *AppointmentHandler) Pause(c *gin.Context) {
	h.respond(c)(h.svc.PauseWork(c.Request.Context(), c.Param("id")))
}

// Resume POST /api/v1/appointments/:id/resume
func (h *AppointmentHandler) Resume(c *gin.Context) {
	h.respond(c)(h.svc.ResumeWork(c.Request.Context(), c.Param("id")))
}

// Finalize POST /api/v1/appointments/:id/finalize
func (h *AppointmentHandler) Finalize(c *gin.Context) {
	h.respond(c)(h.svc.FinalizeWork(c.Request.Context(), c.Param("id")))
}

// WorkTime 当前累计工时
// GET /api/v1/appointments/:id/worktime
func (h *AppointmentHandler) WorkTime(c *gin.Context) {
	wt, err := h.svc.WorkTime(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wt)
}

// SetStatus 直接设置原始状态（如 Waitting Payment / Canceled）
// POST /api/v1/appointments/:id/status
func (h *AppointmentHandler) SetStatus(c *gin.Context) {
	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c)(h.svc.SetStatus(c.Request.Context(), c.Param("id"), &req))
}

func (h *AppointmentHandler) respond(c *gin.Context) func(*entity.Appointment, error) {
	return func(a *entity.Appointment, err error) {
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, a)
	}
}

// ==================== 追加服务 / 备注 / 用料 / 附件 ====================

// ProposeExtraService POST /api/v1/appointments/:id/extra-services
func (h *AppointmentHandler) ProposeExtraService(c *gin.Context) {
	var req service.ProposeExtraServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	extra, err := h.svc.ProposeExtraService(c.Request.Context(), GetOperator(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, extra)
}

// ApproveExtraService POST /api/v1/appointments/:id/extra-services/:extraId/approve
func (h *AppointmentHandler) ApproveExtraService(c *gin.Context) {
	extra, err := h.svc.ApproveExtraService(c.Request.Context(), c.Param("id"), c.Param("extraId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, extra)
}

// RejectExtraService POST /api/v1/appointments/:id/extra-services/:extraId/reject
func (h *AppointmentHandler) RejectExtraService(c *gin.Context) {
	extra, err := h.svc.RejectExtraService(c.Request.Context(), c.Param("id"), c.Param("extraId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, extra)
}

// AddComment POST /api/v1/appointments/:id/comments
func (h *AppointmentHandler) AddComment(c *gin.Context) {
	var req service.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), GetOperator(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, comment)
}

// AddPart 登记用料并扣减库存
// POST /api/v1/appointments/:id/parts
func (h *AppointmentHandler) AddPart(c *gin.Context) {
	var req service.AddPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	part, err := h.svc.AddPart(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, part)
}

// ListAttachments GET /api/v1/appointments/:id/attachments
func (h *AppointmentHandler) ListAttachments(c *gin.Context) {
	items, err := h.svc.ListAttachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// UploadAttachment multipart字段 file
// POST /api/v1/appointments/:id/attachments
func (h *AppointmentHandler) UploadAttachment(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	if fh.Size > maxAttachmentSize {
		BadRequest(c, "file too large")
		return
	}

	file, err := fh.Open()
	if err != nil {
		BadRequest(c, "open file: "+err.Error())
		return
	}
	defer file.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	att, err := h.svc.UploadAttachment(c.Request.Context(), GetOperator(c), c.Param("id"), file, fh.Filename, fh.Size, contentType)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, att)
}
