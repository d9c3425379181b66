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

	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertListErrors      AlertType = "list_errors"
	AlertWebsiteCoverage AlertType = "website_coverage"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
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
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.ErrorListThreshold > 0 && snap.ListsFailed >= a.cfg.ErrorListThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertListErrors,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d list(s) ended enrichment in error (threshold %d)",
				snap.ListsFailed, a.cfg.ErrorListThreshold,
			),
			Details: map[string]any{
				"failed":    snap.ListsFailed,
				"threshold": a.cfg.ErrorListThreshold,
				"lists":     snap.Lists,
			},
			Timestamp: now,
		})
	}

	// Coverage is only meaningful once no run is in flight.
	pct := snap.CoveragePct[model.ColWebsite]
	if a.cfg.MinWebsiteCoverage > 0 && snap.Leads > 0 && snap.Idle() && pct < a.cfg.MinWebsiteCoverage {
		alerts = append(alerts, Alert{
			Type:     AlertWebsiteCoverage,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Website coverage %.1f%% is below %.1f%% (%d of %d leads)",
				pct*100, a.cfg.MinWebsiteCoverage*100,
				snap.Coverage[model.ColWebsite], snap.Leads,
			),
			Details: map[string]any{
				"coverage":  pct,
				"threshold": a.cfg.MinWebsiteCoverage,
				"leads":     snap.Leads,
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
