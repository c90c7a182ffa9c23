package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beekeep/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{UnresolvedThreshold: 10})

	snap := &MetricsSnapshot{
		ActiveHives:       4,
		UnresolvedBacklog: 3,
		OverdueDays:       14,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_UnresolvedBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{UnresolvedThreshold: 5})

	snap := &MetricsSnapshot{
		SessionsWithUnresolved: 3,
		UnresolvedBacklog:      7,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnresolvedBacklog, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "7 unresolved")
	assert.Contains(t, alerts[0].Message, "3 session(s)")
}

func TestAlerter_Evaluate_BacklogAtThreshold(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{UnresolvedThreshold: 5})

	alerts := a.Evaluate(&MetricsSnapshot{UnresolvedBacklog: 5})
	require.Len(t, alerts, 1)
}

func TestAlerter_Evaluate_ZeroThresholdDisablesBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{UnresolvedThreshold: 0})

	alerts := a.Evaluate(&MetricsSnapshot{UnresolvedBacklog: 999})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_InspectionOverdue(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		ActiveHives:  5,
		HivesOverdue: 2,
		OverdueDays:  14,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertInspectionOverdue, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "2 of 5 active hive(s)")
	assert.Contains(t, alerts[0].Message, "14 days")
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{UnresolvedThreshold: 1})

	alerts := a.Evaluate(&MetricsSnapshot{
		ActiveHives:       3,
		HivesOverdue:      1,
		UnresolvedBacklog: 4,
	})
	assert.Len(t, alerts, 2)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertUnresolvedBacklog])
	assert.True(t, types[AlertInspectionOverdue])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertUnresolvedBacklog, Severity: "medium", Message: "test alert 1"},
		{Type: AlertInspectionOverdue, Severity: "low", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertUnresolvedBacklog, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertUnresolvedBacklog, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}
