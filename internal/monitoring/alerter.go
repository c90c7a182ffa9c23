package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beekeep/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnresolvedBacklog AlertType = "unresolved_backlog"
	AlertInspectionOverdue AlertType = "inspection_overdue"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Unassigned extraction results waiting for a human.
	if a.cfg.UnresolvedThreshold > 0 && snap.UnresolvedBacklog >= a.cfg.UnresolvedThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertUnresolvedBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d unresolved inspection(s) across %d session(s) await manual assignment (threshold %d)",
				snap.UnresolvedBacklog, snap.SessionsWithUnresolved, a.cfg.UnresolvedThreshold,
			),
			Details: map[string]any{
				"unresolved": snap.UnresolvedBacklog,
				"sessions":   snap.SessionsWithUnresolved,
				"threshold":  a.cfg.UnresolvedThreshold,
			},
			Timestamp: now,
		})
	}

	if snap.HivesOverdue > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertInspectionOverdue,
			Severity: "low",
			Message: fmt.Sprintf(
				"%d of %d active hive(s) not inspected in the last %d days",
				snap.HivesOverdue, snap.ActiveHives, snap.OverdueDays,
			),
			Details: map[string]any{
				"overdue":      snap.HivesOverdue,
				"never":        snap.HivesNeverInspected,
				"active_hives": snap.ActiveHives,
				"overdue_days": snap.OverdueDays,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
