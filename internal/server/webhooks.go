package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"esgtrack/internal/config"
	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/metrics"
	"esgtrack/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher forwards new events to the rulebook's webhooks in
// batches. Each hook keeps its own cursor in the workspace DB, so events
// written while the server was down are delivered on the next start. A hook
// seen for the first time starts at the latest event. Delivery is at least
// once.
type WebhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	logger   *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	cursors map[string]int64
}

func NewWebhookDispatcher(e engine.Engine, logger *zap.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = zap.L()
	}
	var hooks []config.WebhookConfig
	if e.Config != nil {
		hooks = e.Config.Webhooks
	}
	return &WebhookDispatcher{
		engine:   e,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logger.Named("webhooks"),
		interval: defaultWebhookInterval,
		cursors:  make(map[string]int64),
	}
}

// Start polls until ctx is done. It returns immediately when no webhook is configured.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	if len(d.webhooks) == 0 {
		return
	}
	d.logger.Info("webhook dispatcher started", zap.Int("webhooks", len(d.webhooks)))
	go d.run(ctx)
}

func (d *WebhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchAll runs one delivery round over every enabled webhook.
func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	name := hookName(idx, hook)
	cursor, err := d.cursorFor(ctx, name)
	if err != nil {
		d.logger.Error("load cursor failed", zap.String("webhook", name), zap.Error(err))
		return
	}
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, "")
	if err != nil {
		d.logger.Error("fetch events failed", zap.String("webhook", name), zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}
	filter := newEventFilter(hook.Events)
	batch := make([]webhookEvent, 0, len(events))
	for _, evt := range events {
		if filter.match(evt.Type) {
			batch = append(batch, toWebhookEvent(evt))
		}
	}
	last := events[len(events)-1].ID
	if len(batch) == 0 {
		d.setCursor(ctx, name, last)
		return
	}
	if err := d.postBatch(ctx, hook, batch); err != nil {
		metrics.RecordWebhookDelivery(name, "failed")
		d.logger.Warn("delivery failed",
			zap.String("webhook", name),
			zap.Int("events", len(batch)),
			zap.Error(err))
		return
	}
	metrics.RecordWebhookDelivery(name, "delivered")
	d.logger.Debug("delivered events", zap.String("webhook", name), zap.Int("events", len(batch)))
	d.setCursor(ctx, name, last)
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, name string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[name]; ok {
		return cur, nil
	}
	cur, err := d.engine.Repo.WebhookCursor(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		if cur, err = d.engine.Repo.LatestEventID(ctx, ""); err != nil {
			return 0, err
		}
		if err := d.engine.Repo.SetWebhookCursor(ctx, name, cur); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}
	d.cursors[name] = cur
	return cur, nil
}

func (d *WebhookDispatcher) setCursor(ctx context.Context, name string, value int64) {
	d.mu.Lock()
	d.cursors[name] = value
	d.mu.Unlock()
	if err := d.engine.Repo.SetWebhookCursor(ctx, name, value); err != nil {
		d.logger.Error("persist cursor failed", zap.String("webhook", name), zap.Int64("cursor", value), zap.Error(err))
	}
}

func hookName(idx int, hook config.WebhookConfig) string {
	if hook.ID != "" {
		return hook.ID
	}
	return "webhook-" + strconv.Itoa(idx)
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	CompanyID  string          `json:"company_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

type webhookBatch struct {
	Events []webhookEvent `json:"events"`
}

func toWebhookEvent(evt domain.Event) webhookEvent {
	payload := json.RawMessage([]byte("{}"))
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage([]byte(evt.Payload))
		} else {
			raw = evt.Payload
		}
	}
	return webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		CompanyID:  evt.CompanyID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	}
}

func (d *WebhookDispatcher) postBatch(ctx context.Context, hook config.WebhookConfig, batch []webhookEvent) error {
	data, err := json.Marshal(webhookBatch{Events: batch})
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Esgtrack-Delivery", fmt.Sprintf("%d-%d", batch[0].ID, batch[len(batch)-1].ID))
	req.Header.Set("X-Esgtrack-Events", strconv.Itoa(len(batch)))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Esgtrack-Signature", "sha256="+sign(hook.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// sign returns the hex HMAC-SHA256 of body keyed by the webhook secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
