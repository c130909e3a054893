package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/bitfantasy/oficina/internal/workshop/testutil"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type appointmentEnv struct {
	router *gin.Engine
	repo   *testutil.MemoryAppointmentRepo
	clock  *clockwork.FakeClock
	svc    *service.AppointmentService
	token  string
}

func newAppointmentEnv(t *testing.T) *appointmentEnv {
	t.Helper()
	repo := testutil.NewMemoryAppointmentRepo()
	clock := clockwork.NewFakeClockAt(t0)
	svc := service.NewAppointmentService(repo, nil)
	svc.SetClock(clock)

	h := NewHandlers(&service.Services{
		Appointment: svc,
		Export:      service.NewExportService(repo, clock),
	}, nil)

	r := testutil.SetupRouter()
	h.Register(testutil.AuthGroup(r, "/api/v1"))
	return &appointmentEnv{router: r, repo: repo, clock: clock, svc: svc, token: testutil.DefaultTestToken()}
}

func (e *appointmentEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	return testutil.DoRequest(e.router, method, path, body, e.token)
}

func (e *appointmentEnv) create(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/appointments", map[string]interface{}{"customer_id": "c1", "notes": "barulho no freio"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := testutil.ResponseData(w)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func code(w *httptest.ResponseRecorder) float64 {
	c, _ := testutil.ParseResponse(w)["code"].(float64)
	return c
}

func TestAppointmentHandler_RequiresAuth(t *testing.T) {
	env := newAppointmentEnv(t)
	w := testutil.DoRequest(env.router, http.MethodGet, "/api/v1/appointments", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAppointmentHandler_WorkSession(t *testing.T) {
	env := newAppointmentEnv(t)
	id := env.create(t)
	base := "/api/v1/appointments/" + id

	w := env.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.StatusPending, testutil.ResponseData(w)["status"])

	w = env.do(http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.StatusInRepair, testutil.ResponseData(w)["status"])

	env.clock.Advance(65 * time.Second)
	w = env.do(http.MethodGet, base+"/worktime", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := testutil.ResponseData(w)
	assert.Equal(t, float64(65), data["elapsed_seconds"])
	assert.Equal(t, "00:01:05", data["formatted"])
	assert.Equal(t, false, data["is_paused"])

	w = env.do(http.MethodPost, base+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, testutil.ResponseData(w)["is_paused"])

	w = env.do(http.MethodPost, base+"/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(CodeInvalidTransition), code(w))

	w = env.do(http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env.clock.Advance(5 * time.Second)
	w = env.do(http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = testutil.ResponseData(w)
	assert.Equal(t, entity.StatusFinalized, data["status"])
	assert.Equal(t, float64(70), data["elapsed_seconds"])

	w = env.do(http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "finalized is terminal")
}

func TestAppointmentHandler_NotFound(t *testing.T) {
	env := newAppointmentEnv(t)
	for _, path := range []string{"/start", "/pause", "/resume", "/finalize"} {
		w := env.do(http.MethodPost, "/api/v1/appointments/missing"+path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := env.do(http.MethodGet, "/api/v1/appointments/missing/worktime", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAppointmentHandler_PendingExtraBlocksFinalize(t *testing.T) {
	env := newAppointmentEnv(t)
	id := env.create(t)
	base := "/api/v1/appointments/" + id

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, base+"/start", nil).Code)

	w := env.do(http.MethodPost, base+"/extra-services", map[string]interface{}{"description": "Troca do disco", "price": 320})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	extraID, _ := testutil.ResponseData(w)["id"].(string)

	w = env.do(http.MethodPost, base+"/finalize", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(CodePendingExtraService), code(w))

	w = env.do(http.MethodPost, base+"/extra-services/"+extraID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.ExtraStateApproved, testutil.ResponseData(w)["state"])

	w = env.do(http.MethodPost, base+"/finalize", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAppointmentHandler_Validation(t *testing.T) {
	env := newAppointmentEnv(t)

	w := env.do(http.MethodPost, "/api/v1/appointments", map[string]interface{}{"notes": "sem cliente"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := env.create(t)
	env.repo.SetStock("oil", 0)
	w = env.do(http.MethodPost, "/api/v1/appointments/"+id+"/status", map[string]interface{}{"status": "Finalized"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/appointments/"+id+"/parts", map[string]interface{}{"product_id": "oil", "quantity": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(CodeInsufficientStock), code(w))
}

func TestAppointmentHandler_SetStatusAndList(t *testing.T) {
	env := newAppointmentEnv(t)
	id := env.create(t)
	env.create(t)

	w := env.do(http.MethodPost, "/api/v1/appointments/"+id+"/status", map[string]interface{}{"status": entity.StatusWaitingPayment})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/appointments/"+id+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "waiting payment can not start")

	w = env.do(http.MethodGet, "/api/v1/appointments?page=1&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := testutil.ResponseData(w)
	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), pagination["total"])
	assert.Equal(t, float64(2), pagination["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestAppointmentHandler_Comment(t *testing.T) {
	env := newAppointmentEnv(t)
	id := env.create(t)

	w := env.do(http.MethodPost, "/api/v1/appointments/"+id+"/comments", map[string]interface{}{"content": "Cliente ligou"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Test Manager", testutil.ResponseData(w)["author"])
}

func TestAppointmentHandler_Export(t *testing.T) {
	env := newAppointmentEnv(t)
	id := env.create(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/appointments/"+id+"/start", nil).Code)
	env.clock.Advance(time.Hour)

	w := env.do(http.MethodGet, "/api/v1/appointments/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ordens_20260302_")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	header, _ := f.GetCellValue("Ordens", "A1")
	assert.Equal(t, "Código", header)
	canonical, _ := f.GetCellValue("Ordens", "E2")
	assert.Equal(t, "Em Andamento", canonical)
	worked, _ := f.GetCellValue("Ordens", "J2")
	assert.Equal(t, "01:00:00", worked)
}

type memoryStorage struct {
	objects map[string][]byte
}

func (m *memoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func (m *memoryStorage) URL(ctx context.Context, key, fileName string) (string, error) {
	return "https://files.local/" + key, nil
}

func upload(t *testing.T, env *appointmentEnv, id string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "painel.jpg")
	require.NoError(t, err)
	part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/"+id+"/attachments", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestAppointmentHandler_Attachments(t *testing.T) {
	env := newAppointmentEnv(t)
	id := env.create(t)

	w := upload(t, env, id)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, float64(CodeStorageUnavailable), code(w))

	store := &memoryStorage{objects: map[string][]byte{}}
	env.svc.SetStorage(store)

	w = upload(t, env, id)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "painel.jpg", testutil.ResponseData(w)["file_name"])
	assert.Len(t, store.objects, 1)

	w = env.do(http.MethodGet, "/api/v1/appointments/"+id+"/attachments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := testutil.ResponseData(w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Contains(t, items[0].(map[string]interface{})["url"], "https://files.local/appointments/"+id+"/")
}
