package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ExtraService 追加服务
type ExtraService struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	State       string  `json:"state"`
}

// Party 关联记录里客户端用到的字段
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Plate string `json:"plate"`
}

// Appointment 服务工单
type Appointment struct {
	ID             string         `json:"id"`
	Code           string         `json:"code"`
	Status         string         `json:"status"`
	StartTime      *time.Time     `json:"start_time"`
	IsPaused       bool           `json:"is_paused"`
	FinishedAt     *time.Time     `json:"finished_at"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	Notes          string         `json:"notes"`
	Customer       *Party         `json:"customer"`
	Vehicle        *Party         `json:"vehicle"`
	Employee       *Party         `json:"employee"`
	ExtraServices  []ExtraService `json:"extra_services"`
}

// WorkTime GET /appointments/{id}/worktime
type WorkTime struct {
	AppointmentID  string `json:"appointment_id"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Formatted      string `json:"formatted"`
	IsPaused       bool   `json:"is_paused"`
	State          string `json:"state"`
}

// ListOptions 列表过滤
type ListOptions struct {
	Search   string
	Status   string
	Page     int
	PageSize int
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// AppointmentPage 工单分页结果
type AppointmentPage struct {
	Items      []Appointment `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

func (c *Client) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	if err := c.doRequest(ctx, http.MethodGet, appointmentPath(id, ""), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ListAppointments(ctx context.Context, opts ListOptions) (*AppointmentPage, error) {
	q := url.Values{}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	path := "/appointments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page AppointmentPage
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) StartWork(ctx context.Context, id string) (*Appointment, error) {
	return c.transition(ctx, id, "/start")
}

func (c *Client) PauseWork(ctx context.Context, id string) (*Appointment, error) {
	return c.transition(ctx, id, "/pause")
}

func (c *Client) ResumeWork(ctx context.Context, id string) (*Appointment, error) {
	return c.transition(ctx, id, "/resume")
}

func (c *Client) FinalizeWork(ctx context.Context, id string) (*Appointment, error) {
	return c.transition(ctx, id, "/finalize")
}

func (c *Client) transition(ctx context.Context, id, suffix string) (*Appointment, error) {
	var a Appointment
	if err := c.doRequest(ctx, http.MethodPost, appointmentPath(id, suffix), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) WorkTime(ctx context.Context, id string) (*WorkTime, error) {
	var wt WorkTime
	if err := c.doRequest(ctx, http.MethodGet, appointmentPath(id, "/worktime"), nil, &wt); err != nil {
		return nil, err
	}
	return &wt, nil
}
