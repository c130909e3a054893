// Package metrics 暴露服务端与客户端的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oficina"

// NewRegistry 创建带 Go runtime/process 采集器的注册表
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler 返回 /metrics 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Server 服务端指标
type Server struct {
	Transitions   *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	SSEClients    prometheus.Gauge
	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewServer 创建并注册服务端指标
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointment",
			Name:      "transitions_total",
			Help:      "Work session transitions by action and result.",
		}, []string{"action", "result"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointment_cache",
			Name:      "lookups_total",
			Help:      "Appointment cache lookups by result (hit, miss, error, stale).",
		}, []string{"result"}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Connected SSE clients.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.Transitions, m.CacheLookups, m.SSEClients, m.HTTPRequests, m.HTTPDurations)
	return m
}

// ObserveTransition 记录一次状态迁移。m为nil时忽略
func (m *Server) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, result(err)).Inc()
}

// ObserveCache 记录一次缓存查询
func (m *Server) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// SSEConnected 调整SSE连接数
func (m *Server) SSEConnected(delta float64) {
	if m == nil {
		return
	}
	m.SSEClients.Add(delta)
}

// Middleware gin请求指标中间件，按路由模板聚合
func (m *Server) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDurations.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Session 客户端工时会话指标
type Session struct {
	Polls   *prometheus.CounterVec
	Actions *prometheus.CounterVec
}

// NewSession 创建并注册客户端指标
func NewSession(reg prometheus.Registerer) *Session {
	m := &Session{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "polls_total",
			Help:      "Reconciliation polls by result.",
		}, []string{"result"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "actions_total",
			Help:      "Work session actions issued by the client, by action and result.",
		}, []string{"action", "result"}),
	}
	reg.MustRegister(m.Polls, m.Actions)
	return m
}

func (m *Session) ObservePoll(err error) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(result(err)).Inc()
}

func (m *Session) ObserveAction(action string, err error) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
