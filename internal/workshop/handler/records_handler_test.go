package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/oficina/internal/workshop/repository"
	"github.com/bitfantasy/oficina/internal/workshop/service"
	"github.com/bitfantasy/oficina/internal/workshop/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRecordsRouter 客户/车辆/配件/服务项目的集成测试路由（需要Postgres）
func setupRecordsRouter(t *testing.T) *gin.Engine {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := &service.Services{
		Customer: service.NewCustomerService(repos.Customer),
		Vehicle:  service.NewVehicleService(repos.Vehicle, repos.Customer),
		Employee: service.NewEmployeeService(repos.Employee),
		Product:  service.NewProductService(repos.Product),
		Catalog:  service.NewCatalogService(repos.Service),
	}
	r := testutil.SetupRouter()
	NewHandlers(svc, nil).Register(testutil.AuthGroup(r, "/api/v1"))
	return r
}

func TestCustomerVehicle_CRUD(t *testing.T) {
	r := setupRecordsRouter(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/customers", map[string]interface{}{
		"name": "Maria Souza", "document": "123.456.789-00", "phone": "11 99999-0000",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	customer := testutil.ResponseData(w)
	customerID := customer["id"].(string)
	assert.Equal(t, "12345678900", customer["document"])
	assert.Equal(t, "CLI-00001", customer["code"])

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/vehicles", map[string]interface{}{
		"customer_id": customerID, "plate": "abc-1d23", "brand": "Fiat", "model": "Uno", "mileage": 1000,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vehicleID := testutil.ResponseData(w)["id"].(string)
	assert.Equal(t, "ABC1D23", testutil.ResponseData(w)["plate"])

	w = testutil.DoRequest(r, http.MethodPut, "/api/v1/vehicles/"+vehicleID, map[string]interface{}{"mileage": 500}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "mileage can not decrease")

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/vehicles?customer_id="+customerID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ResponseData(w)["items"], 1)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/vehicles", map[string]interface{}{
		"customer_id": "missing", "plate": "XYZ9876",
	}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.DoRequest(r, http.MethodDelete, "/api/v1/customers/"+customerID, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/customers/"+customerID, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProduct_Stock(t *testing.T) {
	r := setupRecordsRouter(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"code": "OL-5W30", "name": "Óleo 5W30", "unit": "L", "price": 42.5, "stock": 3, "min_stock": 5,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := testutil.ResponseData(w)["id"].(string)

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/products/low-stock", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ResponseData(w)["items"], 1)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/products/"+id+"/stock", map[string]interface{}{"delta": -4}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/products/"+id+"/stock", map[string]interface{}{"delta": 10, "reason": "compra"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(13), testutil.ResponseData(w)["stock"])
}

func TestCatalog_RoleGuard(t *testing.T) {
	r := setupRecordsRouter(t)
	mechanic := testutil.GenerateTestToken("mec-1", "Carlos", []string{"mechanic"})

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/services", map[string]interface{}{"name": "Alinhamento", "price": 120}, mechanic)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/services", map[string]interface{}{"name": "Alinhamento", "price": 120}, testutil.DefaultTestToken())
	require.Equal(t, http.StatusCreated, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/services?search=alinha", nil, mechanic)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ResponseData(w)["items"], 1)
}
