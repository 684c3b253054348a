package domain

import (
	"time"
)

type EventType string

const (
	ScanStarted          EventType = "ScanStarted"
	ScanCompleted        EventType = "ScanCompleted"
	ScanFailed           EventType = "ScanFailed"
	ScanRejected         EventType = "ScanRejected"
	TrackAdded           EventType = "TrackAdded"
	TrackUpdated         EventType = "TrackUpdated"
	TracksRemoved        EventType = "TracksRemoved"
	WatcherStarted       EventType = "WatcherStarted"
	WatcherStopped       EventType = "WatcherStopped"
	WatcherDegraded      EventType = "WatcherDegraded"
	EnrichmentCompleted  EventType = "EnrichmentCompleted"
	EnrichmentFailed     EventType = "EnrichmentFailed"
	NotificationSent     EventType = "NotificationSent"
	NotificationFailed   EventType = "NotificationFailed"
	MaintenanceCompleted EventType = "MaintenanceCompleted"
)

type Event struct {
	ID            int64                  `json:"id"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	EventType     EventType              `json:"event_type"`
	EventData     map[string]interface{} `json:"event_data"`
	EventVersion  int                    `json:"event_version"`
	CreatedAt     time.Time              `json:"created_at"`
}

// =============================================================================
// Type-safe event data accessors
// These helpers provide compile-time safety when extracting data from events.
// =============================================================================

// GetString safely extracts a string field from EventData.
// Returns the value and true if found and is a string, otherwise empty string and false.
func (e *Event) GetString(key string) (string, bool) {
	if e.EventData == nil {
		return "", false
	}
	v, ok := e.EventData[key].(string)
	return v, ok
}

// GetStringOr extracts a string field or returns the default value.
func (e *Event) GetStringOr(key, defaultVal string) string {
	if v, ok := e.GetString(key); ok {
		return v
	}
	return defaultVal
}

// GetInt64 safely extracts an int64 field from EventData.
// Handles both int64 and float64 (JSON unmarshaling produces float64).
func (e *Event) GetInt64(key string) (int64, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// GetInt64Or extracts an int64 field or returns the default value.
func (e *Event) GetInt64Or(key string, defaultVal int64) int64 {
	if v, ok := e.GetInt64(key); ok {
		return v
	}
	return defaultVal
}

// GetBool safely extracts a bool field from EventData.
func (e *Event) GetBool(key string) (bool, bool) {
	if e.EventData == nil {
		return false, false
	}
	v, ok := e.EventData[key].(bool)
	return v, ok
}

// GetBoolOr extracts a bool field or returns the default value.
func (e *Event) GetBoolOr(key string, defaultVal bool) bool {
	if v, ok := e.GetBool(key); ok {
		return v
	}
	return defaultVal
}

// GetStringSlice safely extracts a string slice from EventData.
func (e *Event) GetStringSlice(key string) ([]string, bool) {
	if e.EventData == nil {
		return nil, false
	}
	if v, ok := e.EventData[key].([]string); ok {
		return v, true
	}
	// []interface{} comes from JSON unmarshaling
	if v, ok := e.EventData[key].([]interface{}); ok {
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result, true
	}
	return nil, false
}

// =============================================================================
// Typed event data structures for common events
// =============================================================================

// ScanSummaryEventData contains data for ScanCompleted events.
type ScanSummaryEventData struct {
	ScanID    string `json:"scan_id"`
	Trigger   string `json:"trigger"` // "manual", "scheduled", "watcher"
	New       int64  `json:"new"`
	Modified  int64  `json:"modified"`
	Unchanged int64  `json:"unchanged"`
	Removed   int64  `json:"removed"`
	Skipped   int64  `json:"skipped"`
	Duration  int64  `json:"duration_ms"`
}

// ParseScanSummaryEventData extracts typed scan summary data from an event.
func (e *Event) ParseScanSummaryEventData() (ScanSummaryEventData, bool) {
	scanID, ok := e.GetString("scan_id")
	if !ok {
		return ScanSummaryEventData{}, false
	}
	return ScanSummaryEventData{
		ScanID:    scanID,
		Trigger:   e.GetStringOr("trigger", ""),
		New:       e.GetInt64Or("new", 0),
		Modified:  e.GetInt64Or("modified", 0),
		Unchanged: e.GetInt64Or("unchanged", 0),
		Removed:   e.GetInt64Or("removed", 0),
		Skipped:   e.GetInt64Or("skipped", 0),
		Duration:  e.GetInt64Or("duration_ms", 0),
	}, true
}

// TrackEventData contains data for TrackAdded and TrackUpdated events.
type TrackEventData struct {
	Path   string `json:"path"`
	ScanID string `json:"scan_id,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Title  string `json:"title,omitempty"`
}

// ParseTrackEventData extracts typed track data from an event.
func (e *Event) ParseTrackEventData() (TrackEventData, bool) {
	path, ok := e.GetString("path")
	if !ok {
		return TrackEventData{}, false
	}
	return TrackEventData{
		Path:   path,
		ScanID: e.GetStringOr("scan_id", ""),
		Artist: e.GetStringOr("artist", ""),
		Album:  e.GetStringOr("album", ""),
		Title:  e.GetStringOr("title", ""),
	}, true
}

// EnrichmentEventData contains data for EnrichmentCompleted and EnrichmentFailed events.
type EnrichmentEventData struct {
	Artist string `json:"artist"`
	Error  string `json:"error,omitempty"`
}

// ParseEnrichmentEventData extracts typed enrichment data from an event.
func (e *Event) ParseEnrichmentEventData() (EnrichmentEventData, bool) {
	artist, ok := e.GetString("artist")
	if !ok {
		return EnrichmentEventData{}, false
	}
	return EnrichmentEventData{
		Artist: artist,
		Error:  e.GetStringOr("error", ""),
	}, true
}
