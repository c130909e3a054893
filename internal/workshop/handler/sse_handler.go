package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitfantasy/oficina/internal/shared/sse"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 30 * time.Second

// EventHub SSE连接管理，由 sse.Hub 实现
type EventHub interface {
	Register(client *sse.Client)
	Unregister(clientID string)
}

// WorkTimeSource 订阅单个工单时用于推送首帧工时
type WorkTimeSource interface {
	WorkTime(ctx context.Context, id string) (*service.WorkTime, error)
}

// SSEHandler 推送工单变更事件。
// 订阅单个工单时先推送一帧 worktime，之后只转发该工单的 appointment_update
type SSEHandler struct {
	hub       EventHub
	worktimes WorkTimeSource
}

func NewSSEHandler(hub EventHub, worktimes WorkTimeSource) *SSEHandler {
	return &SSEHandler{hub: hub, worktimes: worktimes}
}

// Stream GET /api/v1/events?token=xxx[&appointment_id=xxx]
func (h *SSEHandler) Stream(c *gin.Context) {
	h.stream(c, c.Query("appointment_id"))
}

// StreamAppointment GET /api/v1/appointments/:id/events
func (h *SSEHandler) StreamAppointment(c *gin.Context) {
	h.stream(c, c.Param("id"))
}

func (h *SSEHandler) stream(c *gin.Context, appointmentID string) {
	var initial *service.WorkTime
	if appointmentID != "" && h.worktimes != nil {
		wt, err := h.worktimes.WorkTime(c.Request.Context(), appointmentID)
		if err != nil {
			Fail(c, err)
			return
		}
		initial = wt
	}

	userID := GetUserID(c)
	clientID := fmt.Sprintf("%s_%d", userID, time.Now().UnixNano())
	client := &sse.Client{
		ID:            clientID,
		UserID:        userID,
		AppointmentID: appointmentID,
		Events:        make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(clientID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	writeEvent(c, "connected", gin.H{"client_id": clientID, "appointment_id": appointmentID})
	if initial != nil {
		writeEvent(c, "worktime", initial)
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}

func writeEvent(c *gin.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
	c.Writer.Flush()
}
