// File: test/integration/pipeline_test.go
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/auspex-monitoring/auspex/internal/alerting"
	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/notification"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// TestAlertPipeline drives the full observation path: poll results go through
// the engine, open and resolve alert history rows, and deliver over a real
// HTTP webhook endpoint.
func TestAlertPipeline(t *testing.T) {
	utils.InitLogger("error", "text", "stdout", "")
	ctx := context.Background()

	// Webhook receiver standing in for an external alerting endpoint
	var mu sync.Mutex
	var received []notification.WebhookPayload
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload notification.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode webhook payload: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	store := storage.NewSQLiteStorage(&storage.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "pipeline.db"),
	})
	if err := store.Connect(); err != nil {
		t.Fatalf("Failed to connect to storage: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("Failed to migrate storage: %v", err)
	}

	target := &models.Target{Name: "edge-rtr-01", Host: "10.0.0.1", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}
	if err := store.SaveTarget(ctx, target); err != nil {
		t.Fatalf("Failed to save target: %v", err)
	}

	channel := &models.AlertChannel{
		Name:    "ops-webhook",
		Type:    "webhook",
		Config:  map[string]interface{}{"url": receiver.URL},
		Enabled: true,
	}
	if err := store.SaveChannel(ctx, channel); err != nil {
		t.Fatalf("Failed to save channel: %v", err)
	}

	rule := &models.AlertRule{
		TargetID: target.ID,
		Name:     "availability",
		RuleType: models.RuleTypeStatusChange,
		Severity: models.SeverityCritical,
		Enabled:  true,
		Channels: []int64{channel.ID},
	}
	if err := store.SaveRule(ctx, rule); err != nil {
		t.Fatalf("Failed to save rule: %v", err)
	}

	dispatcher := notification.NewDispatcher(&notification.DispatcherConfig{
		RetryAttempts:       3,
		RetryDelay:          10 * time.Millisecond,
		NotificationTimeout: 5 * time.Second,
	}, store, nil, notification.NewWebhookSender(5*time.Second))

	engine := alerting.NewEngine(&config.EngineConfig{
		MaxConcurrentEvaluations: 5,
		EvaluationTimeout:        10 * time.Second,
	}, store, dispatcher, nil)
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}
	defer engine.Stop()

	observe := func(status models.Status, message string, at time.Time) {
		observation := &models.PollResult{TargetID: target.ID, Status: status, Message: message, PolledAt: at}
		if err := store.SavePollResult(ctx, observation); err != nil {
			t.Fatalf("Failed to save poll result: %v", err)
		}
		if err := engine.OnPollResult(ctx, observation); err != nil {
			t.Fatalf("Failed to evaluate poll result: %v", err)
		}
	}

	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("Down Transition Opens And Delivers", func(t *testing.T) {
		observe(models.StatusUp, "ok", base)
		observe(models.StatusDown, "timeout", base.Add(time.Minute))

		alert, err := store.GetActiveAlert(ctx, target.ID, rule.ID)
		if err != nil {
			t.Fatalf("Failed to query active alert: %v", err)
		}
		if alert == nil {
			t.Fatal("Expected an active alert after down transition")
		}

		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count != 1 {
			t.Fatalf("Expected 1 webhook delivery, got %d", count)
		}
		mu.Lock()
		payload := received[0]
		mu.Unlock()
		if payload.EventKind != notification.EventTriggered {
			t.Fatalf("Expected triggered event, got %s", payload.EventKind)
		}
		if payload.TargetName != target.Name {
			t.Fatalf("Expected target %s in payload, got %s", target.Name, payload.TargetName)
		}

		deliveries, err := store.GetDeliveries(ctx, alert.ID)
		if err != nil {
			t.Fatalf("Failed to query deliveries: %v", err)
		}
		if len(deliveries) != 1 || deliveries[0].Outcome != models.DeliveryOutcomeSuccess {
			t.Fatalf("Expected one successful delivery row, got %+v", deliveries)
		}

		t.Logf("✓ Down transition opened alert %d and delivered webhook", alert.ID)
	})

	t.Run("Up Transition Resolves Same Row", func(t *testing.T) {
		observe(models.StatusUp, "ok", base.Add(2*time.Minute))

		alert, err := store.GetActiveAlert(ctx, target.ID, rule.ID)
		if err != nil {
			t.Fatalf("Failed to query active alert: %v", err)
		}
		if alert != nil {
			t.Fatalf("Expected no active alert after recovery, got %d", alert.ID)
		}

		history, err := store.GetAlertHistory(ctx, models.AlertHistoryFilter{TargetID: &target.ID})
		if err != nil {
			t.Fatalf("Failed to query alert history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("Expected exactly one history row, got %d", len(history))
		}
		if history[0].ResolvedAt == nil {
			t.Fatal("Expected the history row to be resolved in place")
		}

		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count != 2 {
			t.Fatalf("Expected 2 webhook deliveries after recovery, got %d", count)
		}
		mu.Lock()
		payload := received[1]
		mu.Unlock()
		if payload.EventKind != notification.EventResolved {
			t.Fatalf("Expected resolved event, got %s", payload.EventKind)
		}

		t.Logf("✓ Recovery resolved the row and sent a resolved notification")
	})

	t.Run("Suppression Window Mutes Delivery", func(t *testing.T) {
		windowStart := base.Add(10 * time.Minute)
		suppression := &models.AlertSuppression{
			Name:      "maintenance",
			TargetID:  &target.ID,
			StartTime: windowStart,
			EndTime:   windowStart.Add(time.Hour),
			Enabled:   true,
		}
		if err := store.SaveSuppression(ctx, suppression); err != nil {
			t.Fatalf("Failed to save suppression: %v", err)
		}

		observe(models.StatusDown, "timeout", windowStart.Add(time.Minute))

		alert, err := store.GetActiveAlert(ctx, target.ID, rule.ID)
		if err != nil {
			t.Fatalf("Failed to query active alert: %v", err)
		}
		if alert == nil {
			t.Fatal("Expected lifecycle to record the alert even while suppressed")
		}

		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count != 2 {
			t.Fatalf("Expected no new webhook during suppression window, got %d total", count)
		}

		t.Logf("✓ Suppression muted delivery while alert %d was still recorded", alert.ID)
	})
}
