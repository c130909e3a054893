package handler

import (
	"github.com/bitfantasy/oficina/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Register 注册 /api/v1 下的全部路由
func (h *Handlers) Register(api *gin.RouterGroup) {
	customers := api.Group("/customers")
	{
		customers.GET("", h.Customer.List)
		customers.POST("", h.Customer.Create)
		customers.GET("/:id", h.Customer.Get)
		customers.PUT("/:id", h.Customer.Update)
		customers.DELETE("/:id", middleware.RequireRole("attendant"), h.Customer.Delete)
	}

	vehicles := api.Group("/vehicles")
	{
		vehicles.GET("", h.Vehicle.List)
		vehicles.POST("", h.Vehicle.Create)
		vehicles.GET("/:id", h.Vehicle.Get)
		vehicles.PUT("/:id", h.Vehicle.Update)
		vehicles.DELETE("/:id", middleware.RequireRole("attendant"), h.Vehicle.Delete)
	}

	employees := api.Group("/employees")
	{
		employees.GET("", h.Employee.List)
		employees.POST("", middleware.RequireRole("manager"), h.Employee.Create)
		employees.GET("/:id", h.Employee.Get)
		employees.PUT("/:id", middleware.RequireRole("manager"), h.Employee.Update)
		employees.DELETE("/:id", middleware.RequireRole("manager"), h.Employee.Delete)
	}

	products := api.Group("/products")
	{
		products.GET("", h.Product.List)
		products.GET("/low-stock", h.Product.LowStock)
		products.POST("", h.Product.Create)
		products.GET("/:id", h.Product.Get)
		products.PUT("/:id", h.Product.Update)
		products.DELETE("/:id", middleware.RequireRole("manager"), h.Product.Delete)
		products.POST("/:id/stock", h.Product.AdjustStock)
	}

	services := api.Group("/services")
	{
		services.GET("", h.Catalog.List)
		services.POST("", middleware.RequireRole("manager"), h.Catalog.Create)
		services.GET("/:id", h.Catalog.Get)
		services.PUT("/:id", middleware.RequireRole("manager"), h.Catalog.Update)
		services.DELETE("/:id", middleware.RequireRole("manager"), h.Catalog.Delete)
	}

	appointments := api.Group("/appointments")
	{
		appointments.GET("", h.Appointment.List)
		appointments.GET("/export", h.Appointment.Export)
		appointments.POST("", h.Appointment.Create)
		appointments.GET("/:id", h.Appointment.Get)
		appointments.PUT("/:id", h.Appointment.Update)
		appointments.DELETE("/:id", middleware.RequireRole("manager"), h.Appointment.Delete)

		// 工时会话
		appointments.POST("/:id/start", h.Appointment.Start)
		appointments.POST("/:id/pause", h.Appointment.Pause)
		appointments.POST("/:id/resume", h.Appointment.Resume)
		appointments.POST("/:id/finalize", h.Appointment.Finalize)
		appointments.GET("/:id/worktime", h.Appointment.WorkTime)
		appointments.POST("/:id/status", h.Appointment.SetStatus)

		appointments.POST("/:id/extra-services", h.Appointment.ProposeExtraService)
		appointments.POST("/:id/extra-services/:extraId/approve", h.Appointment.ApproveExtraService)
		appointments.POST("/:id/extra-services/:extraId/reject", h.Appointment.RejectExtraService)
		appointments.POST("/:id/comments", h.Appointment.AddComment)
		appointments.POST("/:id/parts", h.Appointment.AddPart)
		appointments.GET("/:id/attachments", h.Appointment.ListAttachments)
		appointments.POST("/:id/attachments", h.Appointment.UploadAttachment)
	}

	if h.SSE != nil {
		api.GET("/events", h.SSE.Stream)
		appointments.GET("/:id/events", h.SSE.StreamAppointment)
	}
}
