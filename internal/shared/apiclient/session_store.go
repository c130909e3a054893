package apiclient

import (
	"context"

	"github.com/bitfantasy/oficina/internal/workshop/worksession"
)

// SessionStore 基于REST接口的 worksession.Store 实现
type SessionStore struct {
	client *Client
}

func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client}
}

var _ worksession.Store = (*SessionStore)(nil)

func (s *SessionStore) Fetch(ctx context.Context, orderID string) (*worksession.Order, error) {
	a, err := s.client.GetAppointment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return a.Order(), nil
}

func (s *SessionStore) Start(ctx context.Context, orderID string) error {
	_, err := s.client.StartWork(ctx, orderID)
	return err
}

func (s *SessionStore) Pause(ctx context.Context, orderID string) error {
	_, err := s.client.PauseWork(ctx, orderID)
	return err
}

func (s *SessionStore) Resume(ctx context.Context, orderID string) error {
	_, err := s.client.ResumeWork(ctx, orderID)
	return err
}

func (s *SessionStore) Finalize(ctx context.Context, orderID string) error {
	_, err := s.client.FinalizeWork(ctx, orderID)
	return err
}

func (s *SessionStore) WorkTime(ctx context.Context, orderID string) (int64, error) {
	wt, err := s.client.WorkTime(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return wt.ElapsedSeconds, nil
}

// Order 转换为工时会话视图
func (a *Appointment) Order() *worksession.Order {
	o := &worksession.Order{
		ID:             a.ID,
		Status:         a.Status,
		StartTime:      a.StartTime,
		IsPaused:       a.IsPaused,
		ElapsedSeconds: a.ElapsedSeconds,
	}
	for _, e := range a.ExtraServices {
		o.ExtraServices = append(o.ExtraServices, worksession.ExtraService{
			ID:          e.ID,
			Description: e.Description,
			State:       e.State,
		})
	}
	return o
}
