package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string { return m.name }

func (m *mockHealthCheck) Check(ctx context.Context) error { return m.err }

type fakeProber struct {
	status int
	err    error
	gotURL string
}

func (f *fakeProber) Head(_ context.Context, pageURL string, _ time.Duration) (int, error) {
	f.gotURL = pageURL
	return f.status, f.err
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	t.Parallel()

	handler := NewHealthHandler(zap.NewNop())
	// 存活检查不执行依赖检查
	handler.RegisterCheck(&mockHealthCheck{name: "broken", err: errors.New("down")})

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status ServiceHealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
	assert.Empty(t, status.Checks)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupChecks    func(*HealthHandler)
		expectedStatus int
		checkStatus    func(*testing.T, *ServiceHealthResponse)
	}{
		{
			name:           "no checks - ready",
			setupChecks:    func(h *HealthHandler) {},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *ServiceHealthResponse) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all checks pass",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "wiki_site"})
				h.RegisterCheck(&mockHealthCheck{name: "llm"})
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *ServiceHealthResponse) {
				assert.Equal(t, "healthy", status.Status)
				assert.Len(t, status.Checks, 2)
				assert.Equal(t, "pass", status.Checks["wiki_site"].Status)
				assert.NotEmpty(t, status.Checks["llm"].Latency)
			},
		},
		{
			name: "one check fails",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "wiki_site", err: errors.New("connection refused")})
				h.RegisterCheck(&mockHealthCheck{name: "llm"})
			},
			expectedStatus: http.StatusServiceUnavailable,
			checkStatus: func(t *testing.T, status *ServiceHealthResponse) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "fail", status.Checks["wiki_site"].Status)
				assert.Equal(t, "connection refused", status.Checks["wiki_site"].Message)
				assert.Equal(t, "pass", status.Checks["llm"].Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(zap.NewNop())
			tt.setupChecks(h)

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var status ServiceHealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			tt.checkStatus(t, &status)
		})
	}
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	t.Parallel()

	handler := NewHealthHandler(nil)

	w := httptest.NewRecorder()
	handler.HandleVersion("1.0.0", "2026-01-01T00:00:00Z", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "2026-01-01T00:00:00Z", data["build_time"])
	assert.Equal(t, "abc123", data["git_commit"])
}

func TestHealthHandler_ConcurrentReady(t *testing.T) {
	t.Parallel()

	handler := NewHealthHandler(zap.NewNop())
	for i := 0; i < 10; i++ {
		handler.RegisterCheck(&mockHealthCheck{name: string(rune('a' + i))})
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}

// =============================================================================
// 🧪 内置检查
// =============================================================================

func TestSiteHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prober  *fakeProber
		wantErr string
	}{
		{name: "ok", prober: &fakeProber{status: http.StatusOK}},
		{name: "redirect counts as up", prober: &fakeProber{status: http.StatusFound}},
		{name: "server error", prober: &fakeProber{status: http.StatusBadGateway}, wantErr: "status 502"},
		{name: "transport error", prober: &fakeProber{err: errors.New("dial tcp: refused")}, wantErr: "refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			check := NewSiteHealthCheck(tt.prober, "https://wiki.ambisius.com", time.Second)
			err := check.Check(context.Background())

			assert.Equal(t, "wiki_site", check.Name())
			assert.Equal(t, "https://wiki.ambisius.com", tt.prober.gotURL)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
