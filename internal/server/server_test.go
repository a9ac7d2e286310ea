// File: internal/server/server_test.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/storage"
)

func newTestServer(t *testing.T) (*HTTPServer, storage.Store) {
	t.Helper()

	store := storage.NewSQLiteStorage(&storage.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	cfg := &config.ServerConfig{
		Port:         0,
		Host:         "127.0.0.1",
		EnableHealth: true,
	}
	return NewHTTPServer(cfg, store, nil, nil, nil, "test"), store
}

func doRequest(t *testing.T, s *HTTPServer, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := doRequest(t, s, "GET", "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestListTargets(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, &models.Target{Name: "core-sw-01", Host: "192.168.1.10", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}))
	require.NoError(t, store.SaveTarget(ctx, &models.Target{Name: "edge-rtr-01", Host: "10.0.0.1", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: false}))

	rec, body := doRequest(t, s, "GET", "/api/v1/targets")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	rec, body = doRequest(t, s, "GET", "/api/v1/targets?enabled=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = doRequest(t, s, "GET", "/api/v1/targets?enabled=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTarget(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	target := &models.Target{Name: "core-sw-01", Host: "192.168.1.10", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}
	require.NoError(t, store.SaveTarget(ctx, target))
	require.NoError(t, store.SavePollResult(ctx, &models.PollResult{TargetID: target.ID, Status: models.StatusUp, PolledAt: time.Now().UTC()}))

	rec, body := doRequest(t, s, "GET", "/api/v1/targets/1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body["target"])
	assert.NotNil(t, body["latest_poll"])

	rec, _ = doRequest(t, s, "GET", "/api/v1/targets/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, s, "GET", "/api/v1/targets/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAlertsAndDeliveries(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	target := &models.Target{Name: "core-sw-01", Host: "192.168.1.10", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}
	require.NoError(t, store.SaveTarget(ctx, target))
	rule := &models.AlertRule{TargetID: target.ID, Name: "availability", RuleType: models.RuleTypeStatusChange, Severity: models.SeverityCritical, Enabled: true}
	require.NoError(t, store.SaveRule(ctx, rule))

	alert := &models.AlertHistory{TargetID: target.ID, RuleID: rule.ID, AlertType: models.AlertTypeDeviceDown, Severity: models.SeverityCritical, FiredAt: time.Now().UTC()}
	require.NoError(t, store.OpenAlert(ctx, alert))
	require.NoError(t, store.SaveDelivery(ctx, &models.AlertDelivery{AlertHistoryID: alert.ID, ChannelID: 1, Attempt: 1, Outcome: models.DeliveryOutcomeSuccess, DeliveredAt: time.Now().UTC()}))

	rec, body := doRequest(t, s, "GET", "/api/v1/alerts?active=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, body = doRequest(t, s, "GET", "/api/v1/alerts/1/deliveries")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestTargetHistory(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	target := &models.Target{Name: "core-sw-01", Host: "192.168.1.10", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}
	require.NoError(t, store.SaveTarget(ctx, target))

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SavePollResult(ctx, &models.PollResult{TargetID: target.ID, Status: models.StatusUp, PolledAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	rec, body := doRequest(t, s, "GET", "/api/v1/targets/1/history?limit=3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])
}
