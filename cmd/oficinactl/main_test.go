package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/handler"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/bitfantasy/oficina/internal/workshop/testutil"
	"github.com/bitfantasy/oficina/internal/workshop/worksession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	url  string
	repo *testutil.MemoryAppointmentRepo
	svc  *service.AppointmentService
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	repo := testutil.NewMemoryAppointmentRepo()
	svc := service.NewAppointmentService(repo, nil)

	r := testutil.SetupRouter()
	handler.NewHandlers(&service.Services{Appointment: svc}, nil).Register(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &backend{url: srv.URL + "/api/v1", repo: repo, svc: svc}
}

func (b *backend) create(t *testing.T) string {
	t.Helper()
	a, err := b.svc.Create(context.Background(), "attendant", &service.CreateAppointmentRequest{CustomerID: "c1"})
	require.NoError(t, err)
	return a.ID
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(strings.NewReader(stdin))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestStatusNormalize(t *testing.T) {
	out, _, err := run(t, "", "status", "normalize", "Waitting Payment")
	require.NoError(t, err)
	assert.Equal(t, "Em Andamento\n", out)

	out, _, err = run(t, "", "status", "normalize", "")
	require.NoError(t, err)
	assert.Equal(t, "Pendente\n", out)
}

func TestSessionOneShot(t *testing.T) {
	b := newBackend(t)
	id := b.create(t)

	out, _, err := run(t, "", "--api-url", b.url, "session", "start", id)
	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "[pause finalize]")

	_, _, err = run(t, "", "--api-url", b.url, "session", "resume", id)
	assert.ErrorIs(t, err, worksession.ErrActionUnavailable)

	out, _, err = run(t, "", "--api-url", b.url, "session", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Em Andamento")

	_, _, err = run(t, "", "--api-url", b.url, "session", "start", "missing")
	assert.Error(t, err)
}

func TestSessionOneShot_PendingExtraBlocksFinalize(t *testing.T) {
	b := newBackend(t)
	id := b.create(t)
	_, err := b.svc.StartWork(context.Background(), id)
	require.NoError(t, err)
	_, err = b.svc.ProposeExtraService(context.Background(), "mec", id, &service.ProposeExtraServiceRequest{Description: "Troca de correia"})
	require.NoError(t, err)

	// 有待确认的追加服务时前端即拒绝
	_, _, err = run(t, "", "--api-url", b.url, "session", "finalize", id)
	assert.ErrorIs(t, err, worksession.ErrActionUnavailable)
}

func TestSessionWatch(t *testing.T) {
	b := newBackend(t)
	id := b.create(t)

	done := make(chan struct{})
	var out, errOut string
	var err error
	go func() {
		defer close(done)
		out, errOut, err = run(t, "start\npause\nbogus\nquit\n", "--api-url", b.url, "--poll-interval", "1h", "session", "watch", id)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not exit")
	}
	require.NoError(t, err)
	assert.Contains(t, out, "not_started")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "paused")
	assert.Contains(t, errOut, `unknown action "bogus"`)

	a, ferr := b.repo.FindByID(context.Background(), id)
	require.NoError(t, ferr)
	assert.Equal(t, entity.StatusInRepair, a.Status)
	assert.True(t, a.IsPaused)
}

func TestSessionWatch_ZeroPollIntervalUsesDefault(t *testing.T) {
	b := newBackend(t)
	id := b.create(t)

	done := make(chan struct{})
	var out string
	var err error
	go func() {
		defer close(done)
		out, _, err = run(t, "quit\n", "--api-url", b.url, "--poll-interval", "0", "session", "watch", id)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not exit")
	}
	require.NoError(t, err)
	assert.Contains(t, out, "not_started")
}

func TestSessionWatch_ServerErrorNotifies(t *testing.T) {
	b := newBackend(t)

	// 已取消的工单前端不拦截 start，由服务端拒绝
	b.repo.Put(&entity.Appointment{ID: "stale", Code: "OS-9", Status: entity.StatusPending})
	_, err := b.svc.SetStatus(context.Background(), "stale", &service.SetStatusRequest{Status: entity.StatusCanceled})
	require.NoError(t, err)

	out, errOut, err := run(t, "start\nquit\n", "--api-url", b.url, "--poll-interval", "1h", "session", "watch", "stale")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelada")
	assert.Contains(t, errOut, "Failed to start work session")
}
