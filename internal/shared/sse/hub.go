package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	// AppointmentID 非空时只接收该工单的事件
	AppointmentID string
	Events        chan Event
}

// Hub 管理所有SSE连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger

	// OnChange 在连接数变化时回调（用于指标）
	OnChange func(delta float64)
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	if h.OnChange != nil {
		h.OnChange(1)
	}
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", total),
	)
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		close(client.Events)
		delete(h.clients, clientID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if h.OnChange != nil {
		h.OnChange(-1)
	}
	h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", total))
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 向所有客户端发送事件，缓冲区满的客户端跳过
func (h *Hub) Broadcast(event Event) {
	h.Publish("", event)
}

// Publish 发送工单事件：未订阅具体工单的客户端和订阅了该工单的客户端都会收到。
// appointmentID为空时发给所有客户端
func (h *Hub) Publish(appointmentID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if appointmentID != "" && client.AppointmentID != "" && client.AppointmentID != appointmentID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event",
				zap.String("client_id", client.ID),
				zap.String("event", event.EventType),
			)
		}
	}
}

// AppointmentUpdate appointment_update 事件载荷
type AppointmentUpdate struct {
	AppointmentID string `json:"appointment_id"`
	Action        string `json:"action"`
	Status        string `json:"status"`
}

// PublishAppointmentUpdate 广播工单变更（开始/暂停/状态变化等）
func (h *Hub) PublishAppointmentUpdate(appointmentID, action, status string) {
	data, err := json.Marshal(AppointmentUpdate{
		AppointmentID: appointmentID,
		Action:        action,
		Status:        status,
	})
	if err != nil {
		h.logger.Error("marshal appointment_update", zap.Error(err))
		return
	}
	h.Publish(appointmentID, Event{EventType: "appointment_update", Data: string(data)})
}
