package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/rcfms-admin/app"
	"github.com/upb/rcfms-admin/config"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:   "test",
		StorageDriver: config.StorageMemory,
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Auth: config.AuthConfig{
			SigningKey: strings.Repeat("k", 32),
			Issuer:     "rcfms-admin",
			Audience:   "rcfms",
			TokenTTL:   time.Hour,
			BcryptCost: 4,
		},
		Notify: config.NotifyConfig{BufferSize: 16, WorkerCount: 1, SendTimeout: time.Second},
		RateLimit: config.RateLimitConfig{
			LoginPerMinute: 60,
			LoginBurst:     20,
		},
		Bootstrap: config.BootstrapConfig{
			Email:    "root@rcfms.org",
			FullName: "Root Admin",
			WorkID:   "ADM-001",
		},
		Observability: config.ObservabilityConfig{LogLevel: "error"},
	}
}

type testServer struct {
	t          *testing.T
	deps       *app.Dependencies
	srv        *httptest.Server
	adminToken string
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	ctx := context.Background()

	deps, err := app.NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(ctx) })

	admin, secret, err := deps.BootstrapAdmin(ctx)
	require.NoError(t, err)
	require.NotNil(t, admin)

	ts := &testServer{t: t, deps: deps, srv: httptest.NewServer(SetupRoutes(deps))}
	t.Cleanup(ts.srv.Close)

	resp, body := ts.do(http.MethodPost, "/api/auth/login", "",
		`{"email":"root@rcfms.org","password":"`+secret.Reveal()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	ts.adminToken = body["data"].(map[string]interface{})["access_token"].(string)
	return ts
}

func (ts *testServer) do(method, path, token, body string) (*http.Response, map[string]interface{}) {
	ts.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(ts.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	var decoded map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(ts.t, json.Unmarshal(raw, &decoded))
	} else {
		decoded = map[string]interface{}{"raw": string(raw)}
	}
	return resp, decoded
}

// createUser provisions a user as the bootstrap admin and returns a token for it
func (ts *testServer) createUser(email, workID, role string) (id, token string) {
	ts.t.Helper()
	resp, body := ts.do(http.MethodPost, "/api/admin/users", ts.adminToken,
		`{"email":"`+email+`","full_name":"Test User","work_id":"`+workID+`","role":"`+role+`"}`)
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, "%v", body)
	id = body["data"].(map[string]interface{})["id"].(string)

	token, _, err := ts.deps.Tokens.Issue(uuid.MustParse(id), email)
	require.NoError(ts.t, err)
	return id, token
}

func TestAdminWorkflow(t *testing.T) {
	ts := newTestServer(t, testConfig())

	headID, headToken := ts.createUser("head@rcfms.org", "W-200", "social_head")
	staffID, _ := ts.createUser("staff@rcfms.org", "W-201", "social_staff")
	ts.createUser("nurse@rcfms.org", "W-300", "medical_staff")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp, body := ts.do(http.MethodPost, "/api/admin/users", ts.adminToken,
			`{"email":"HEAD@rcfms.org","full_name":"Other","work_id":"W-999","role":"rehab_staff"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "email", body["details"].(map[string]interface{})["field"])
	})

	t.Run("invalid payload is rejected", func(t *testing.T) {
		resp, body := ts.do(http.MethodPost, "/api/admin/users", ts.adminToken,
			`{"email":"bad","full_name":"","work_id":"W-1","role":"janitor"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		details := body["details"].(map[string]interface{})
		assert.Contains(t, details, "email")
		assert.Contains(t, details, "role")
	})

	t.Run("unit head sees only their unit", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/staff", headToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].([]interface{})
		assert.Len(t, data, 2)
		for _, p := range data {
			assert.Equal(t, "social", p.(map[string]interface{})["unit"])
		}
	})

	t.Run("unit head cannot administer", func(t *testing.T) {
		resp, _ := ts.do(http.MethodGet, "/api/admin/users", headToken, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = ts.do(http.MethodGet, "/api/staff/summary", headToken, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("summary for admins", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/staff/summary", ts.adminToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].([]interface{})
		require.Len(t, data, 6)
		social := data[0].(map[string]interface{})
		assert.Equal(t, "social", social["unit"])
		assert.EqualValues(t, 1, social["heads"])
		assert.EqualValues(t, 1, social["staff"])
	})

	t.Run("update and deactivate", func(t *testing.T) {
		resp, body := ts.do(http.MethodPatch, "/api/admin/users/"+staffID, ts.adminToken, `{"role":"social_head"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
		assert.Equal(t, "social_head", body["data"].(map[string]interface{})["role"])

		resp, _ = ts.do(http.MethodDelete, "/api/admin/users/"+headID, ts.adminToken, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// A deactivated profile no longer authenticates.
		resp, _ = ts.do(http.MethodGet, "/api/auth/me", headToken, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin cannot deactivate themselves", func(t *testing.T) {
		resp, me := ts.do(http.MethodGet, "/api/auth/me", ts.adminToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		adminID := me["data"].(map[string]interface{})["id"].(string)

		resp, body := ts.do(http.MethodDelete, "/api/admin/users/"+adminID, ts.adminToken, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_operation", body["error"])
	})

	t.Run("audit trail records every mutation newest first", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/admin/audit-logs?limit=10", ts.adminToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := body["data"].(map[string]interface{})
		// bootstrap + 3 creates + update + deactivate
		assert.EqualValues(t, 6, page["total"])
		entries := page["entries"].([]interface{})
		require.NotEmpty(t, entries)
		assert.Equal(t, "DEACTIVATE_USER", entries[0].(map[string]interface{})["action"])
	})

	t.Run("page far past the end is an empty page", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/admin/audit-logs?page=184467440737095517&limit=50", ts.adminToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := body["data"].(map[string]interface{})
		assert.EqualValues(t, 6, page["total"])
		assert.Empty(t, page["entries"])
	})

	t.Run("csv export", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/admin/users/export", ts.adminToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))
		assert.True(t, strings.HasPrefix(body["raw"].(string), "id,email,work_id"))
	})
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t, testConfig())

	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{"list users", http.MethodGet, "/api/admin/users"},
		{"create user", http.MethodPost, "/api/admin/users"},
		{"update user", http.MethodPatch, "/api/admin/users/" + uuid.NewString()},
		{"deactivate user", http.MethodDelete, "/api/admin/users/" + uuid.NewString()},
		{"audit logs", http.MethodGet, "/api/admin/audit-logs"},
		{"staff", http.MethodGet, "/api/staff"},
		{"me", http.MethodGet, "/api/auth/me"},
		{"password", http.MethodPost, "/api/auth/password"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := ts.do(tc.method, tc.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "unauthorized", body["error"])
		})
	}

	t.Run("garbage token", func(t *testing.T) {
		resp, _ := ts.do(http.MethodGet, "/api/admin/users", "not-a-token", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := ts.do(http.MethodPost, "/api/auth/login", "", `{"email":"root@rcfms.org","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid email or password", body["message"])
	})
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{LoginPerMinute: 1, LoginBurst: 2}
	// newTestServer spends one login on the bootstrap admin.
	ts := newTestServer(t, cfg)

	resp, _ := ts.do(http.MethodPost, "/api/auth/login", "", `{"email":"root@rcfms.org","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := ts.do(http.MethodPost, "/api/auth/login", "", `{"email":"root@rcfms.org","password":"wrong"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
}

func TestInfrastructureRoutes(t *testing.T) {
	ts := newTestServer(t, testConfig())

	t.Run("liveness", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/healthz", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["data"].(map[string]interface{})["status"])
	})

	t.Run("readiness on memory storage", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/readyz", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		checks := body["data"].(map[string]interface{})["checks"].(map[string]interface{})
		assert.Equal(t, "memory", checks["database"])
	})

	t.Run("not found", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/nonexistent", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", body["error"])
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, body := ts.do(http.MethodPut, "/healthz", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "method_not_allowed", body["error"])
	})

	t.Run("cors preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.srv.URL+"/api/admin/users", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("requests are instrumented by route pattern", func(t *testing.T) {
		ts.do(http.MethodPatch, "/api/admin/users/"+uuid.NewString(), ts.adminToken, `{"is_active":true}`)

		rec := httptest.NewRecorder()
		ts.deps.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		out := rec.Body.String()
		assert.Contains(t, out, `path="/api/admin/users/{id}"`)
		assert.Contains(t, out, `path="/api/auth/login"`)
	})
}
