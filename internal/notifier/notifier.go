// Package notifier delivers library events to external channels
// (Discord, Slack, Telegram, email and friends) via shoutrrr.
package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/logger"
)

// Provider type identifiers stored in notification configs.
const (
	ProviderDiscord  = "discord"
	ProviderSlack    = "slack"
	ProviderTelegram = "telegram"
	ProviderPushover = "pushover"
	ProviderEmail    = "email"
	ProviderGotify   = "gotify"
	ProviderNtfy     = "ntfy"
	ProviderCustom   = "custom"
)

// Provider-specific config blobs stored as JSON in the config column.
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type PushoverConfig struct {
	AppToken string `json:"app_token"`
	UserKey  string `json:"user_key"`
	Priority int    `json:"priority,omitempty"`
	Sound    string `json:"sound,omitempty"`
}

type EmailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	TLS      bool   `json:"tls,omitempty"`
}

type GotifyConfig struct {
	ServerURL string `json:"server_url"`
	AppToken  string `json:"app_token"`
	Priority  int    `json:"priority,omitempty"`
}

type NtfyConfig struct {
	ServerURL string `json:"server_url,omitempty"`
	Topic     string `json:"topic"`
	Priority  int    `json:"priority,omitempty"`
}

type CustomConfig struct {
	URL string `json:"url"`
}

var providerLabels = map[string]string{
	ProviderDiscord:  "Discord",
	ProviderSlack:    "Slack",
	ProviderTelegram: "Telegram",
	ProviderPushover: "Pushover",
	ProviderEmail:    "Email",
	ProviderGotify:   "Gotify",
	ProviderNtfy:     "ntfy",
	ProviderCustom:   "Custom (Shoutrrr URL)",
}

// notifiableEvents are the event types a channel may subscribe to.
var notifiableEvents = []domain.EventType{
	domain.ScanCompleted,
	domain.ScanFailed,
	domain.TracksRemoved,
	domain.WatcherDegraded,
	domain.EnrichmentFailed,
	domain.MaintenanceCompleted,
}

// NotifiableEvents returns the event type names channels may subscribe to.
func NotifiableEvents() []string {
	names := make([]string, 0, len(notifiableEvents))
	for _, e := range notifiableEvents {
		names = append(names, string(e))
	}
	return names
}

// ValidProvider reports whether a provider type has a URL builder.
func ValidProvider(providerType string) bool {
	_, ok := urlBuilders[providerType]
	return ok
}

const logRetention = 30 * 24 * time.Hour

// ConfigStore is the persistence surface the notifier needs.
type ConfigStore interface {
	ListNotificationConfigs(enabledOnly bool) ([]domain.NotificationConfig, error)
	LogNotification(notificationID int64, eventType, message, status, errMsg string) error
	PruneNotificationLogs(olderThan time.Duration) (int64, error)
}

// Notifier fans library events out to configured channels. Configs are
// cached in memory and reloaded on demand so API edits take effect
// without a restart.
type Notifier struct {
	store ConfigStore
	eb    eventbus.Publisher

	mu       sync.RWMutex
	configs  map[int64]*domain.NotificationConfig
	lastSent map[int64]time.Time

	// send is shoutrrr.Send, replaceable in tests.
	send func(rawURL, message string) error

	stopChan   chan struct{}
	reloadChan chan struct{}
	wg         sync.WaitGroup
}

func New(store ConfigStore, eb eventbus.Publisher) *Notifier {
	return &Notifier{
		store:      store,
		eb:         eb,
		configs:    make(map[int64]*domain.NotificationConfig),
		lastSent:   make(map[int64]time.Time),
		send:       shoutrrr.Send,
		stopChan:   make(chan struct{}),
		reloadChan: make(chan struct{}, 1),
	}
}

// Start loads channel configs and begins listening for events.
func (n *Notifier) Start() error {
	if err := n.loadConfigs(); err != nil {
		return fmt.Errorf("failed to load notification configs: %w", err)
	}

	for _, et := range notifiableEvents {
		eventType := et // capture for closure
		n.eb.Subscribe(eventType, func(ev domain.Event) {
			data := ev.EventData
			if data == nil {
				data = make(map[string]interface{})
			}
			if ev.AggregateID != "" {
				data["aggregate_id"] = ev.AggregateID
			}
			n.handleEvent(string(eventType), data)
		})
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.backgroundWorker()
	}()

	logger.Infof("Notifier started with %d configurations", n.configCount())
	return nil
}

// Stop stops the notifier and waits for in-flight sends to finish.
func (n *Notifier) Stop() {
	close(n.stopChan)
	n.wg.Wait()
}

// ReloadConfigs triggers an async config reload.
func (n *Notifier) ReloadConfigs() {
	select {
	case n.reloadChan <- struct{}{}:
	default:
		// Already a reload pending
	}
}

func (n *Notifier) backgroundWorker() {
	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-n.stopChan:
			return
		case <-n.reloadChan:
			if err := n.loadConfigs(); err != nil {
				logger.Errorf("Failed to reload notification configs: %v", err)
			} else {
				logger.Infof("Notification configs reloaded: %d active", n.configCount())
			}
		case <-cleanupTicker.C:
			if pruned, err := n.store.PruneNotificationLogs(logRetention); err != nil {
				logger.Warnf("Failed to prune notification logs: %v", err)
			} else if pruned > 0 {
				logger.Debugf("Pruned %d old notification logs", pruned)
			}
		}
	}
}

func (n *Notifier) loadConfigs() error {
	list, err := n.store.ListNotificationConfigs(true)
	if err != nil {
		return err
	}
	configs := make(map[int64]*domain.NotificationConfig, len(list))
	for i := range list {
		cfg := list[i]
		configs[cfg.ID] = &cfg
	}
	n.mu.Lock()
	n.configs = configs
	n.mu.Unlock()
	return nil
}

func (n *Notifier) configCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.configs)
}

func (n *Notifier) handleEvent(eventType string, data map[string]interface{}) {
	n.mu.RLock()
	var matched []*domain.NotificationConfig
	for _, cfg := range n.configs {
		if !n.shouldNotify(cfg, eventType) {
			continue
		}
		if !n.canSend(cfg.ID, cfg.ThrottleSeconds) {
			logger.Debugf("Throttled notification %d for event %s", cfg.ID, eventType)
			continue
		}
		matched = append(matched, cfg)
	}
	n.mu.RUnlock()

	for _, cfg := range matched {
		n.wg.Add(1)
		go func(cfg *domain.NotificationConfig) {
			defer n.wg.Done()
			n.sendNotification(cfg, eventType, data)
		}(cfg)
	}
}

func (n *Notifier) shouldNotify(cfg *domain.NotificationConfig, eventType string) bool {
	for _, e := range cfg.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

func (n *Notifier) canSend(configID int64, throttleSeconds int) bool {
	lastSent, exists := n.lastSent[configID]
	if !exists {
		return true
	}
	return time.Since(lastSent) >= time.Duration(throttleSeconds)*time.Second
}

func (n *Notifier) sendNotification(cfg *domain.NotificationConfig, eventType string, data map[string]interface{}) {
	shoutrrrURL, buildErr := buildShoutrrrURL(cfg)
	if buildErr != nil {
		logger.Errorf("Failed to build shoutrrr URL for notification %d: %v", cfg.ID, buildErr)
		n.logResult(cfg.ID, eventType, "", "failed", buildErr.Error())
		return
	}

	message := formatMessage(eventType, data)
	err := n.send(shoutrrrURL, message)

	n.mu.Lock()
	n.lastSent[cfg.ID] = time.Now()
	n.mu.Unlock()

	aggregateID, _ := data["aggregate_id"].(string)
	providerLabel := getProviderLabel(cfg.ProviderType)

	if err != nil {
		logger.Errorf("Failed to send notification %d: %v", cfg.ID, err)
		n.logResult(cfg.ID, eventType, message, "failed", err.Error())
		n.publishResult(domain.NotificationFailed, aggregateID, map[string]interface{}{
			"provider":      providerLabel,
			"trigger_event": eventType,
			"error":         err.Error(),
		})
		return
	}

	logger.Debugf("Sent notification %d for event %s", cfg.ID, eventType)
	n.logResult(cfg.ID, eventType, message, "sent", "")
	n.publishResult(domain.NotificationSent, aggregateID, map[string]interface{}{
		"provider":      providerLabel,
		"trigger_event": eventType,
	})
}

func (n *Notifier) logResult(configID int64, eventType, message, status, errMsg string) {
	if err := n.store.LogNotification(configID, eventType, message, status, errMsg); err != nil {
		logger.Warnf("Failed to log notification %d: %v", configID, err)
	}
}

func (n *Notifier) publishResult(eventType domain.EventType, aggregateID string, data map[string]interface{}) {
	if aggregateID == "" {
		aggregateID = "notifier"
	}
	if err := n.eb.Publish(domain.Event{
		AggregateType: "notification",
		AggregateID:   aggregateID,
		EventType:     eventType,
		EventData:     data,
	}); err != nil {
		logger.Debugf("Failed to publish %s event: %v", eventType, err)
	}
}

// TestNotification builds the channel's URL and sends a test message.
// Used by the API to verify a config before saving it.
func (n *Notifier) TestNotification(cfg *domain.NotificationConfig) error {
	shoutrrrURL, err := buildShoutrrrURL(cfg)
	if err != nil {
		return err
	}
	return n.send(shoutrrrURL, "Melodarr: test notification")
}

func buildShoutrrrURL(cfg *domain.NotificationConfig) (string, error) {
	builder, ok := urlBuilders[cfg.ProviderType]
	if !ok {
		return "", fmt.Errorf("unknown provider type: %s", cfg.ProviderType)
	}
	return builder.BuildURL([]byte(cfg.Config))
}

func getProviderLabel(providerType string) string {
	if label, ok := providerLabels[providerType]; ok {
		return label
	}
	return providerType
}

func formatMessage(eventType string, data map[string]interface{}) string {
	ev := domain.Event{EventData: data}

	switch domain.EventType(eventType) {
	case domain.ScanCompleted:
		return fmt.Sprintf("Melodarr: library scan finished. %d new, %d modified, %d removed, %d skipped (%.1fs)",
			ev.GetInt64Or("new", 0), ev.GetInt64Or("modified", 0),
			ev.GetInt64Or("removed", 0), ev.GetInt64Or("skipped", 0),
			float64(ev.GetInt64Or("duration_ms", 0))/1000.0)
	case domain.ScanFailed:
		return fmt.Sprintf("Melodarr: library scan failed: %s", ev.GetStringOr("error", "unknown error"))
	case domain.TracksRemoved:
		return fmt.Sprintf("Melodarr: %d tracks removed from the library index", ev.GetInt64Or("count", 0))
	case domain.WatcherDegraded:
		return fmt.Sprintf("Melodarr: filesystem watcher degraded: %s", ev.GetStringOr("error", "unknown error"))
	case domain.EnrichmentFailed:
		artist := ev.GetStringOr("artist", "unknown artist")
		return fmt.Sprintf("Melodarr: artist enrichment failed for %q: %s", artist, ev.GetStringOr("error", "unknown error"))
	case domain.MaintenanceCompleted:
		return "Melodarr: database maintenance completed"
	default:
		return fmt.Sprintf("Melodarr: %s", eventType)
	}
}
