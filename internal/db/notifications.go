package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
)

// =============================================================================
// Notification channels
// =============================================================================

// CreateNotificationConfig inserts a notification channel and returns its ID.
func (r *Repository) CreateNotificationConfig(cfg *domain.NotificationConfig) (int64, error) {
	eventsJSON, err := json.Marshal(cfg.Events)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notification events: %w", err)
	}
	res, err := ExecWithRetry(r.DB, `
		INSERT INTO notifications (name, provider_type, config, events, enabled, throttle_seconds)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cfg.Name, cfg.ProviderType, cfg.Config, string(eventsJSON), cfg.Enabled, cfg.ThrottleSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to create notification config: %w", err)
	}
	return res.LastInsertId()
}

// UpdateNotificationConfig rewrites a notification channel by ID.
func (r *Repository) UpdateNotificationConfig(cfg *domain.NotificationConfig) error {
	eventsJSON, err := json.Marshal(cfg.Events)
	if err != nil {
		return fmt.Errorf("failed to encode notification events: %w", err)
	}
	res, err := ExecWithRetry(r.DB, `
		UPDATE notifications
		SET name = ?, provider_type = ?, config = ?, events = ?, enabled = ?,
		    throttle_seconds = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		cfg.Name, cfg.ProviderType, cfg.Config, string(eventsJSON), cfg.Enabled,
		cfg.ThrottleSeconds, cfg.ID)
	if err != nil {
		return fmt.Errorf("failed to update notification config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteNotificationConfig removes a notification channel by ID.
func (r *Repository) DeleteNotificationConfig(id int64) error {
	res, err := ExecWithRetry(r.DB, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete notification config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListNotificationConfigs returns notification channels, optionally only
// the enabled ones.
func (r *Repository) ListNotificationConfigs(enabledOnly bool) ([]domain.NotificationConfig, error) {
	query := `
		SELECT id, name, provider_type, config, events, enabled, throttle_seconds,
		       created_at, updated_at
		FROM notifications`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY id"

	rows, err := QueryWithRetry(r.DB, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.NotificationConfig
	for rows.Next() {
		var cfg domain.NotificationConfig
		var eventsJSON, createdAt, updatedAt string
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.ProviderType, &cfg.Config,
			&eventsJSON, &cfg.Enabled, &cfg.ThrottleSeconds, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification config: %w", err)
		}
		if err := json.Unmarshal([]byte(eventsJSON), &cfg.Events); err != nil {
			return nil, fmt.Errorf("failed to decode events for notification %d: %w", cfg.ID, err)
		}
		cfg.CreatedAt = parseDBTime(createdAt)
		cfg.UpdatedAt = parseDBTime(updatedAt)
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// LogNotification records a delivery attempt for a channel.
func (r *Repository) LogNotification(notificationID int64, eventType, message, status, errMsg string) error {
	_, err := ExecWithRetry(r.DB, `
		INSERT INTO notification_logs (notification_id, event_type, message, status, error)
		VALUES (?, ?, ?, ?, ?)`,
		notificationID, eventType, message, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to log notification: %w", err)
	}
	return nil
}

// PruneNotificationLogs deletes delivery logs older than the given age.
func (r *Repository) PruneNotificationLogs(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := ExecWithRetry(r.DB,
		"DELETE FROM notification_logs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune notification logs: %w", err)
	}
	return res.RowsAffected()
}
