package logger

import (
	"testing"
	"time"
)

func TestLevelPriorityOrdering(t *testing.T) {
	if !(levelPriority(Debug) < levelPriority(Info) &&
		levelPriority(Info) < levelPriority(Warn) &&
		levelPriority(Warn) < levelPriority(Error)) {
		t.Fatalf("level priorities not strictly increasing")
	}
}

func TestSetLevelInvalidFallsBackToInfo(t *testing.T) {
	defer SetLevel("info")

	SetLevel("nonsense")
	if minLevel != Info {
		t.Errorf("expected fallback to Info, got %s", minLevel)
	}

	SetLevel("debug")
	if minLevel != Debug {
		t.Errorf("expected Debug, got %s", minLevel)
	}
}

func TestSubscribeReceivesEntries(t *testing.T) {
	defer SetLevel("info")
	SetLevel("debug")

	ch := Subscribe()
	defer Unsubscribe(ch)

	Infof("hello %s", "world")

	select {
	case entry := <-ch:
		if entry.Level != Info {
			t.Errorf("expected Info level, got %s", entry.Level)
		}
		if entry.Message != "hello world" {
			t.Errorf("unexpected message: %q", entry.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log entry")
	}
}

func TestFilteredLevelsNotBroadcast(t *testing.T) {
	defer SetLevel("info")
	SetLevel("error")

	ch := Subscribe()
	defer Unsubscribe(ch)

	Debugf("should be filtered")
	Infof("also filtered")

	select {
	case entry := <-ch:
		t.Errorf("unexpected entry received: %+v", entry)
	case <-time.After(50 * time.Millisecond):
		// Nothing received - correct.
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ch := Subscribe()
	Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}
