package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/formvault/internal/api/handler"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["success"] != true {
		t.Error("expected success to be true")
	}

	data, ok := response["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data to be a map")
	}

	if data["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", data["status"])
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyCheck(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		deps   map[string]handler.Pinger
		status int
	}{
		{"no dependencies", nil, http.StatusOK},
		{"all up", map[string]handler.Pinger{"storage": up, "redis": up}, http.StatusOK},
		{"storage down", map[string]handler.Pinger{"storage": down, "redis": up}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
			rec := httptest.NewRecorder()

			handler.ReadyCheck(tt.deps)(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

type fakeFlusher struct {
	deleted int64
	err     error
}

func (f fakeFlusher) FlushAll(ctx context.Context) (int64, error) { return f.deleted, f.err }

func TestFlushCache(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/flush", nil)

	rec := httptest.NewRecorder()
	handler.FlushCache(fakeFlusher{deleted: 3})(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Data struct {
			KeysDeleted int64 `json:"keys_deleted"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Data.KeysDeleted != 3 {
		t.Errorf("expected 3 keys deleted, got %d", response.Data.KeysDeleted)
	}

	rec = httptest.NewRecorder()
	handler.FlushCache(fakeFlusher{err: errors.New("redis gone")})(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}
