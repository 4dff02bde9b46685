package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"templeq/internal/shared/config"
	"templeq/internal/shared/database"
	"templeq/internal/shared/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const device = "9f0e8d7c-6b5a-4c3d-8e2f-1a0b9c8d7e6f"

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Database.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = false
	cfg.Queue.PaymentLatency = 0
	cfg.Queue.RefreshLatency = 0
	cfg.Queue.PaymentSuccessRate = 1
	return cfg
}

func newEngine(t *testing.T, db *database.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	r := NewRouter(testConfig(), db)
	t.Cleanup(func() { r.Close() })
	r.SetupRoutes(engine)
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.DeviceIDHeader, device)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func bookAndLeave(t *testing.T, engine *gin.Engine) {
	t.Helper()
	base := "/api/v1/temples/pavagadh/queue"
	steps := []struct {
		method string
		path   string
		body   interface{}
		want   int
	}{
		{http.MethodPost, base + "/slot", map[string]string{"slotTime": "19:00"}, http.StatusOK},
		{http.MethodPost, base + "/tier", map[string]string{"tierId": "regular"}, http.StatusOK},
		{http.MethodPost, base + "/pay", map[string]interface{}{"name": "Meera Shah", "phoneNumber": "9123456789", "partySize": 2}, http.StatusCreated},
		{http.MethodPost, base + "/refresh", nil, http.StatusOK},
		{http.MethodGet, base + "/pass", nil, http.StatusOK},
		{http.MethodPost, base + "/leave", map[string]string{"reason": "emergency"}, http.StatusOK},
		{http.MethodGet, "/api/v1/refunds", nil, http.StatusOK},
		{http.MethodGet, "/api/v1/temples/pavagadh/leave-reasons", nil, http.StatusOK},
	}
	for _, s := range steps {
		if rec := do(t, engine, s.method, s.path, s.body); rec.Code != s.want {
			t.Fatalf("%s %s = %d, want %d: %s", s.method, s.path, rec.Code, s.want, rec.Body.String())
		}
	}
}

func TestRoutesInProcess(t *testing.T) {
	engine := newEngine(t, &database.DB{})

	for _, path := range []string{"/health", "/ping", "/status", "/api/v1/temples"} {
		if rec := do(t, engine, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
	bookAndLeave(t, engine)
}

func TestRoutesWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	engine := newEngine(t, &database.DB{Redis: client})
	t.Cleanup(func() { client.Close() })

	bookAndLeave(t, engine)

	// Leaving revokes the pass in the shared used-pass set
	if !mr.Exists("templeq:passes:used") {
		t.Error("used pass set was not written")
	}

	if rec := do(t, engine, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health = %d, want 200", rec.Code)
	}
}
