package domain

import (
	"testing"
)

// TestEvent_GetString tests the GetString accessor method.
func TestEvent_GetString(t *testing.T) {
	tests := []struct {
		name      string
		eventData map[string]interface{}
		key       string
		wantValue string
		wantOk    bool
	}{
		{
			name:      "existing string key",
			eventData: map[string]interface{}{"path": "/music/artist/album/track.flac"},
			key:       "path",
			wantValue: "/music/artist/album/track.flac",
			wantOk:    true,
		},
		{
			name:      "missing key",
			eventData: map[string]interface{}{"other": "value"},
			key:       "path",
			wantValue: "",
			wantOk:    false,
		},
		{
			name:      "nil event data",
			eventData: nil,
			key:       "path",
			wantValue: "",
			wantOk:    false,
		},
		{
			name:      "wrong type",
			eventData: map[string]interface{}{"count": 123},
			key:       "count",
			wantValue: "",
			wantOk:    false,
		},
		{
			name:      "empty string",
			eventData: map[string]interface{}{"empty": ""},
			key:       "empty",
			wantValue: "",
			wantOk:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{EventData: tt.eventData}
			got, ok := e.GetString(tt.key)
			if got != tt.wantValue || ok != tt.wantOk {
				t.Errorf("GetString(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.wantValue, tt.wantOk)
			}
		})
	}
}

// TestEvent_GetInt64 tests the GetInt64 accessor method.
func TestEvent_GetInt64(t *testing.T) {
	tests := []struct {
		name      string
		eventData map[string]interface{}
		key       string
		wantValue int64
		wantOk    bool
	}{
		{
			name:      "int64 value",
			eventData: map[string]interface{}{"new": int64(123)},
			key:       "new",
			wantValue: 123,
			wantOk:    true,
		},
		{
			name:      "float64 value (JSON unmarshaling)",
			eventData: map[string]interface{}{"new": float64(456)},
			key:       "new",
			wantValue: 456,
			wantOk:    true,
		},
		{
			name:      "int value",
			eventData: map[string]interface{}{"new": int(789)},
			key:       "new",
			wantValue: 789,
			wantOk:    true,
		},
		{
			name:      "missing key",
			eventData: map[string]interface{}{},
			key:       "new",
			wantValue: 0,
			wantOk:    false,
		},
		{
			name:      "wrong type",
			eventData: map[string]interface{}{"new": "not a number"},
			key:       "new",
			wantValue: 0,
			wantOk:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{EventData: tt.eventData}
			got, ok := e.GetInt64(tt.key)
			if got != tt.wantValue || ok != tt.wantOk {
				t.Errorf("GetInt64(%q) = (%d, %v), want (%d, %v)", tt.key, got, ok, tt.wantValue, tt.wantOk)
			}
		})
	}
}

// TestEvent_GetBool tests the GetBool accessor method.
func TestEvent_GetBool(t *testing.T) {
	tests := []struct {
		name      string
		eventData map[string]interface{}
		key       string
		wantValue bool
		wantOk    bool
	}{
		{
			name:      "true value",
			eventData: map[string]interface{}{"degraded": true},
			key:       "degraded",
			wantValue: true,
			wantOk:    true,
		},
		{
			name:      "false value",
			eventData: map[string]interface{}{"degraded": false},
			key:       "degraded",
			wantValue: false,
			wantOk:    true,
		},
		{
			name:      "missing key",
			eventData: map[string]interface{}{},
			key:       "degraded",
			wantValue: false,
			wantOk:    false,
		},
		{
			name:      "wrong type",
			eventData: map[string]interface{}{"degraded": "true"},
			key:       "degraded",
			wantValue: false,
			wantOk:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{EventData: tt.eventData}
			got, ok := e.GetBool(tt.key)
			if got != tt.wantValue || ok != tt.wantOk {
				t.Errorf("GetBool(%q) = (%v, %v), want (%v, %v)", tt.key, got, ok, tt.wantValue, tt.wantOk)
			}
		})
	}
}

// TestEvent_GetStringSlice tests the GetStringSlice accessor method.
func TestEvent_GetStringSlice(t *testing.T) {
	tests := []struct {
		name      string
		eventData map[string]interface{}
		key       string
		wantLen   int
		wantOk    bool
	}{
		{
			name:      "string slice directly",
			eventData: map[string]interface{}{"paths": []string{"/music/a.mp3", "/music/b.mp3"}},
			key:       "paths",
			wantLen:   2,
			wantOk:    true,
		},
		{
			name:      "interface slice (JSON unmarshaling)",
			eventData: map[string]interface{}{"paths": []interface{}{"/music/a.mp3", "/music/b.mp3", "/music/c.mp3"}},
			key:       "paths",
			wantLen:   3,
			wantOk:    true,
		},
		{
			name:      "missing key",
			eventData: map[string]interface{}{},
			key:       "paths",
			wantLen:   0,
			wantOk:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{EventData: tt.eventData}
			got, ok := e.GetStringSlice(tt.key)
			if ok != tt.wantOk {
				t.Errorf("GetStringSlice(%q) ok = %v, want %v", tt.key, ok, tt.wantOk)
			}
			if ok && len(got) != tt.wantLen {
				t.Errorf("GetStringSlice(%q) len = %d, want %d", tt.key, len(got), tt.wantLen)
			}
		})
	}
}

// TestEvent_ParseScanSummaryEventData tests parsing scan summary event data.
func TestEvent_ParseScanSummaryEventData(t *testing.T) {
	t.Run("valid scan completed event", func(t *testing.T) {
		e := &Event{
			EventType: ScanCompleted,
			EventData: map[string]interface{}{
				"scan_id":     "5c0a4f38-2d56-4be0-9f3a-1c5b57a4f111",
				"trigger":     "manual",
				"new":         float64(10), // JSON unmarshaling produces float64
				"modified":    float64(3),
				"unchanged":   float64(120),
				"removed":     float64(2),
				"duration_ms": float64(842),
			},
		}

		data, ok := e.ParseScanSummaryEventData()
		if !ok {
			t.Fatal("ParseScanSummaryEventData() returned false for valid event")
		}
		if data.ScanID != "5c0a4f38-2d56-4be0-9f3a-1c5b57a4f111" {
			t.Errorf("ScanID = %q", data.ScanID)
		}
		if data.Trigger != "manual" {
			t.Errorf("Trigger = %q, want manual", data.Trigger)
		}
		if data.New != 10 || data.Modified != 3 || data.Unchanged != 120 || data.Removed != 2 {
			t.Errorf("counts = %d/%d/%d/%d, want 10/3/120/2", data.New, data.Modified, data.Unchanged, data.Removed)
		}
		if data.Duration != 842 {
			t.Errorf("Duration = %d, want 842", data.Duration)
		}
	})

	t.Run("missing scan_id", func(t *testing.T) {
		e := &Event{
			EventType: ScanCompleted,
			EventData: map[string]interface{}{"trigger": "manual"},
		}

		_, ok := e.ParseScanSummaryEventData()
		if ok {
			t.Error("ParseScanSummaryEventData() should return false when scan_id is missing")
		}
	})
}

// TestEvent_ParseTrackEventData tests parsing track event data.
func TestEvent_ParseTrackEventData(t *testing.T) {
	t.Run("valid track event", func(t *testing.T) {
		e := &Event{
			EventType: TrackAdded,
			EventData: map[string]interface{}{
				"path":   "/music/artist/album/01 track.flac",
				"artist": "Artist",
				"album":  "Album",
				"title":  "Track",
			},
		}

		data, ok := e.ParseTrackEventData()
		if !ok {
			t.Fatal("ParseTrackEventData() returned false for valid event")
		}
		if data.Path != "/music/artist/album/01 track.flac" {
			t.Errorf("Path = %q", data.Path)
		}
		if data.Artist != "Artist" || data.Album != "Album" || data.Title != "Track" {
			t.Errorf("tags = %q/%q/%q", data.Artist, data.Album, data.Title)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		e := &Event{
			EventType: TrackAdded,
			EventData: map[string]interface{}{"artist": "Artist"},
		}

		_, ok := e.ParseTrackEventData()
		if ok {
			t.Error("ParseTrackEventData() should return false when path is missing")
		}
	})
}

// TestEvent_ParseEnrichmentEventData tests parsing enrichment event data.
func TestEvent_ParseEnrichmentEventData(t *testing.T) {
	e := &Event{
		EventType: EnrichmentFailed,
		EventData: map[string]interface{}{
			"artist": "Artist",
			"error":  "service unavailable",
		},
	}

	data, ok := e.ParseEnrichmentEventData()
	if !ok {
		t.Fatal("ParseEnrichmentEventData() returned false for valid event")
	}
	if data.Artist != "Artist" {
		t.Errorf("Artist = %q, want Artist", data.Artist)
	}
	if data.Error != "service unavailable" {
		t.Errorf("Error = %q", data.Error)
	}
}

// TestEventType_Constants verifies event type constants are correctly defined.
func TestEventType_Constants(t *testing.T) {
	eventTypes := map[EventType]string{
		ScanStarted:          "ScanStarted",
		ScanCompleted:        "ScanCompleted",
		ScanFailed:           "ScanFailed",
		ScanRejected:         "ScanRejected",
		TrackAdded:           "TrackAdded",
		TrackUpdated:         "TrackUpdated",
		TracksRemoved:        "TracksRemoved",
		WatcherDegraded:      "WatcherDegraded",
		EnrichmentCompleted:  "EnrichmentCompleted",
		EnrichmentFailed:     "EnrichmentFailed",
		MaintenanceCompleted: "MaintenanceCompleted",
	}

	for eventType, expectedString := range eventTypes {
		if string(eventType) != expectedString {
			t.Errorf("EventType %v = %q, want %q", eventType, string(eventType), expectedString)
		}
	}
}
