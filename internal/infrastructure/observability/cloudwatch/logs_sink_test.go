package cloudwatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

func TestConvertToLogEvent(t *testing.T) {
	s := &LogsSink{
		logGroupName:  "/item-tracker/test",
		logStreamName: "test-stream",
	}

	at := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	rec := logging.Record{
		logging.KeyTimestamp: logging.Timestamp(at),
		logging.KeyService:   "backend",
		logging.KeyEvent:     "item_created",
		logging.KeyLevel:     logging.LevelInfo,
		logging.KeyMessage:   "item_created",
		"id":                 "abc123",
		"count":              42,
	}

	event, err := s.convertToLogEvent(rec)
	if err != nil {
		t.Fatalf("Failed to convert record: %v", err)
	}

	if event.Timestamp == nil || *event.Timestamp != at.UnixMilli() {
		t.Errorf("Expected Timestamp=%d, got %v", at.UnixMilli(), event.Timestamp)
	}

	if event.Message == nil {
		t.Fatal("Expected Message to be set")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(*event.Message), &decoded); err != nil {
		t.Fatalf("Failed to parse event message as JSON: %v", err)
	}

	if decoded["event"] != "item_created" {
		t.Errorf("Expected event=item_created, got %v", decoded["event"])
	}
	if decoded["level"] != logging.LevelInfo {
		t.Errorf("Expected level=info, got %v", decoded["level"])
	}
	if decoded["id"] != "abc123" {
		t.Errorf("Expected flat caller field, got %v", decoded["id"])
	}
	// Note: JSON numbers are float64
	if count, ok := decoded["count"].(float64); !ok || count != 42 {
		t.Errorf("Expected count=42, got %v", decoded["count"])
	}
}

func TestConvertToLogEventBadTimestamp(t *testing.T) {
	s := &LogsSink{
		logGroupName:  "/item-tracker/test",
		logStreamName: "test-stream",
	}

	// Ingested records may carry a non-parseable ts; the event falls back to
	// the current time instead of being dropped.
	before := time.Now().UnixMilli()
	event, err := s.convertToLogEvent(logging.Record{
		logging.KeyTimestamp: "not-a-time",
		logging.KeyEvent:     "custom",
	})
	if err != nil {
		t.Fatalf("Failed to convert record: %v", err)
	}

	if event.Timestamp == nil || *event.Timestamp < before {
		t.Errorf("Expected fallback timestamp >= %d, got %v", before, event.Timestamp)
	}
}

func TestConvertToLogEventTruncation(t *testing.T) {
	s := &LogsSink{
		logGroupName:  "/item-tracker/test",
		logStreamName: "test-stream",
	}

	huge := make([]byte, maxLogEventSize+1024)
	for i := range huge {
		huge[i] = 'a'
	}

	event, err := s.convertToLogEvent(logging.Record{
		logging.KeyTimestamp: logging.Timestamp(time.Now()),
		logging.KeyEvent:     "big",
		"payload":            string(huge),
	})
	if err != nil {
		t.Fatalf("Failed to convert record: %v", err)
	}

	if len(*event.Message) > maxLogEventSize {
		t.Errorf("Message exceeds CloudWatch limit: %d bytes", len(*event.Message))
	}
}
