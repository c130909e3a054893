package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/oficina/internal/shared/sse"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/bitfantasy/oficina/internal/workshop/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSEHandler_Stream(t *testing.T) {
	hub := sse.NewHub(nil)
	r := testutil.SetupRouter()
	r.GET("/events", NewSSEHandler(hub, nil).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, _ := readEvent(t, reader)
	assert.Equal(t, "connected", event)
	assert.Equal(t, 1, hub.Count())

	hub.PublishAppointmentUpdate("a1", "start", "In Repair")
	event, data := readEvent(t, reader)
	assert.Equal(t, "appointment_update", event)
	assert.JSONEq(t, `{"appointment_id":"a1","action":"start","status":"In Repair"}`, data)

	cancel()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func openStream(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSSEHandler_StreamAppointment(t *testing.T) {
	repo := testutil.NewMemoryAppointmentRepo()
	svc := service.NewAppointmentService(repo, nil)
	hub := sse.NewHub(nil)
	svc.SetPublisher(hub)

	r := testutil.SetupRouter()
	NewHandlers(&service.Services{Appointment: svc}, hub).Register(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	bg := context.Background()
	mine, err := svc.Create(bg, "attendant", &service.CreateAppointmentRequest{CustomerID: "c1"})
	require.NoError(t, err)
	other, err := svc.Create(bg, "attendant", &service.CreateAppointmentRequest{CustomerID: "c2"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(bg)
	defer cancel()

	resp := openStream(t, ctx, srv.URL+"/api/v1/appointments/missing/events")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = openStream(t, ctx, srv.URL+"/api/v1/appointments/"+mine.ID+"/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reader := bufio.NewReader(resp.Body)

	event, data := readEvent(t, reader)
	assert.Equal(t, "connected", event)
	assert.Contains(t, data, mine.ID)

	event, data = readEvent(t, reader)
	assert.Equal(t, "worktime", event)
	assert.Contains(t, data, `"formatted":"00:00:00"`)
	assert.Contains(t, data, `"state":"not_started"`)

	// 其他工单的变更不推送给本订阅
	_, err = svc.StartWork(bg, other.ID)
	require.NoError(t, err)
	_, err = svc.StartWork(bg, mine.ID)
	require.NoError(t, err)

	event, data = readEvent(t, reader)
	assert.Equal(t, "appointment_update", event)
	assert.JSONEq(t, `{"appointment_id":"`+mine.ID+`","action":"start","status":"In Repair"}`, data)
}
