package health

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_RequestCounters(t *testing.T) {
	h := NewHandler(nil, nil, nil, "test")

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	})
	e.GET("/health", h.Liveness)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("liveness returned %d", rec.Code)
		}
	}

	if got := atomic.LoadUint64(&h.totalRequests); got != 3 {
		t.Errorf("expected 3 requests counted, got %d", got)
	}
	if got := atomic.LoadInt64(&h.activeConnections); got != 0 {
		t.Errorf("expected connections to settle at 0, got %d", got)
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{
			name: "all healthy",
			components: map[string]ComponentStatus{
				"database": {Status: StatusHealthy},
				"redis":    {Status: StatusHealthy},
				"ollama":   {Status: StatusHealthy},
			},
			want: StatusHealthy,
		},
		{
			name: "ollama down only degrades",
			components: map[string]ComponentStatus{
				"database": {Status: StatusHealthy},
				"redis":    {Status: StatusHealthy},
				"ollama":   {Status: StatusUnhealthy},
			},
			want: StatusDegraded,
		},
		{
			name: "database down is unhealthy",
			components: map[string]ComponentStatus{
				"database": {Status: StatusUnhealthy},
				"redis":    {Status: StatusHealthy},
				"ollama":   {Status: StatusHealthy},
			},
			want: StatusUnhealthy,
		},
	}

	h := NewHandler(nil, nil, nil, "test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.computeOverallStatus(tt.components); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
