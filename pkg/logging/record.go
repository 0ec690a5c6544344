package logging

import "time"

// Severity values stamped by the server. Ingested records may carry any
// string; unknown levels are passed through verbatim.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Canonical record keys.
const (
	KeyTimestamp = "ts"
	KeyService   = "service"
	KeyEvent     = "event"
	KeyLevel     = "level"
	KeyMessage   = "message"
)

// timestampLayout is RFC3339 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one observability event, shaped as a flat JSON object on the
// wire. A record is built once through NewRecord and never mutated after.
type Record map[string]any

// NewRecord builds a record by applying overlays on top of base, left to
// right. Later overlays win on key collision; base supplies the defaults.
func NewRecord(base map[string]any, overlays ...map[string]any) Record {
	rec := make(Record, len(base)+4)
	for k, v := range base {
		rec[k] = v
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			rec[k] = v
		}
	}
	return rec
}

// Timestamp formats t for the ts field.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Event returns the event name, or "" if unset or not a string.
func (r Record) Event() string { return r.stringField(KeyEvent) }

// Level returns the severity, or "" if unset or not a string.
func (r Record) Level() string { return r.stringField(KeyLevel) }

// Message returns the human-readable summary, or "" if unset.
func (r Record) Message() string { return r.stringField(KeyMessage) }

// Service returns the origin tag, or "" if unset.
func (r Record) Service() string { return r.stringField(KeyService) }

func (r Record) stringField(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}
