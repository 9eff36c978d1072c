package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/asrgate/component"
)

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rr.Code, body
}

func checker(statuses ...component.HealthStatus) HealthChecker {
	return func(context.Context) []component.Health {
		out := make([]component.Health, len(statuses))
		for i, s := range statuses {
			out[i] = component.Health{Name: "c", Status: s}
		}
		return out
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []component.HealthStatus
		wantCode   int
		wantStatus string
	}{
		{"all healthy", []component.HealthStatus{component.StatusHealthy}, http.StatusOK, "healthy"},
		{"degraded", []component.HealthStatus{component.StatusHealthy, component.StatusDegraded}, http.StatusOK, "degraded"},
		{"unhealthy wins", []component.HealthStatus{component.StatusDegraded, component.StatusUnhealthy}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := serve(t, Health("asrgate", checker(tc.statuses...), nil))
			if code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, code)
			}
			if body["status"] != tc.wantStatus {
				t.Errorf("expected %s, got %v", tc.wantStatus, body["status"])
			}
		})
	}
}

func TestHealth_Extras(t *testing.T) {
	extras := func(context.Context) map[string]any {
		return map[string]any{"model_loaded": false, "current_model": nil}
	}
	code, body := serve(t, Health("asrgate", checker(component.StatusDegraded), extras))
	if code != http.StatusOK {
		t.Fatalf("expected 200 while degraded, got %d", code)
	}
	if body["model_loaded"] != false {
		t.Errorf("expected model_loaded=false, got %v", body["model_loaded"])
	}
	if v, ok := body["current_model"]; !ok || v != nil {
		t.Errorf("expected current_model=null, got %v", v)
	}
}

func TestReadiness(t *testing.T) {
	code, body := serve(t, Readiness("asrgate", checker(component.StatusHealthy)))
	if code != http.StatusOK || body["status"] != "ready" {
		t.Errorf("expected ready, got %d %v", code, body["status"])
	}
	code, body = serve(t, Readiness("asrgate", checker(component.StatusDegraded)))
	if code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Errorf("expected not_ready, got %d %v", code, body["status"])
	}
}

func TestLivenessAndInfo(t *testing.T) {
	code, body := serve(t, Liveness("asrgate"))
	if code != http.StatusOK || body["status"] != "alive" {
		t.Errorf("unexpected liveness %d %v", code, body)
	}
	code, body = serve(t, Info("asrgate"))
	if code != http.StatusOK || body["version"] == "" || body["go_version"] == "" {
		t.Errorf("unexpected info %d %v", code, body)
	}
}

func TestMetrics(t *testing.T) {
	extras := func(context.Context) map[string]any {
		return map[string]any{"inference_slots": map[string]any{"in_use": 1, "max": 2}}
	}
	code, body := serve(t, Metrics(extras))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if _, ok := body["goroutines"]; !ok {
		t.Error("expected goroutines field")
	}
	if _, ok := body["inference_slots"]; !ok {
		t.Error("expected extras merged into body")
	}
}
