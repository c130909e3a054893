package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bitfantasy/oficina/internal/middleware"
	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_oficina"
	JWTSecret  = "oficina-test-secret"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// SetupTestDB 为每个测试创建独立schema并迁移全部表，测试结束后删除。
// 数据库不可达时跳过测试。
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if root := projectRoot(); root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "127.0.0.1"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "oficina"),
		getEnv("DB_PASSWORD", "oficina"),
		getEnv("DB_NAME", "oficina"),
	)
	silent := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	setupDB, err := gorm.Open(postgres.Open(baseDSN), silent)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	if err := sqlSetup.Ping(); err != nil {
		sqlSetup.Close()
		t.Skipf("postgres not available: %v", err)
	}

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup.Close()

	// search_path放进DSN，连接池里所有连接都指向测试schema
	db, err := gorm.Open(postgres.Open(baseDSN+" search_path="+schemaName), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, err := gorm.Open(postgres.Open(baseDSN), silent)
		if err != nil {
			return
		}
		cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
			sqlClean.Close()
		}
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"roles": roles,
		"iss":   "oficina",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTSecret))
	return token
}

// DefaultTestToken returns a token for a manager test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Manager", []string{entity.EmployeeRoleManager})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ResponseData returns the "data" object of the envelope
func ResponseData(w *httptest.ResponseRecorder) map[string]interface{} {
	data, _ := ParseResponse(w)["data"].(map[string]interface{})
	return data
}

// SetupTestRedis 连接测试redis（REDIS_ADDR，默认127.0.0.1:6379，DB 15）并清空。
// redis不可用时跳过测试
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if root := projectRoot(); root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		DB:          15,
		DialTimeout: time.Second,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("redis not available: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test redis: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
