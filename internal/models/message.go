package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sender identifies who wrote a message in a honeypot conversation.
type Sender string

const (
	SenderUser  Sender = "user"  // the suspected scammer
	SenderAgent Sender = "agent" // our persona
)

// ParseSender normalizes a sender string. "scammer" is accepted as an alias for user.
func ParseSender(s string) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "scammer":
		return SenderUser, nil
	case "agent", "honeypot", "assistant":
		return SenderAgent, nil
	default:
		return "", fmt.Errorf("unknown sender %q", s)
	}
}

// UnmarshalJSON accepts any known sender spelling.
func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ValidationError{Field: "sender", Reason: "must be a string"}
	}
	parsed, err := ParseSender(raw)
	if err != nil {
		return &ValidationError{Field: "sender", Reason: err.Error()}
	}
	*s = parsed
	return nil
}

// millisLayout is RFC3339 with exactly three fractional digits.
const millisLayout = "2006-01-02T15:04:05.000Z07:00"

// epochMillisFloor separates epoch milliseconds from epoch seconds (and small ordinals).
const epochMillisFloor = 100_000_000_000

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a message time that may arrive as a wall-clock string or an integer.
// Both forms normalize to a time.Time so messages share one comparable order.
type Timestamp struct {
	t time.Time
}

// NewTimestamp wraps an already normalized time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC()}
}

// TimestampFromInt normalizes an integer timestamp. Values at or above 1e11 are
// epoch milliseconds, anything smaller is treated as epoch seconds.
func TimestampFromInt(v int64) Timestamp {
	if v >= epochMillisFloor {
		return Timestamp{t: time.UnixMilli(v).UTC()}
	}
	return Timestamp{t: time.Unix(v, 0).UTC()}
}

// ParseTimestamp normalizes a string timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, &ValidationError{Field: "timestamp", Reason: "must not be empty"}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TimestampFromInt(n), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, &ValidationError{Field: "timestamp", Reason: fmt.Sprintf("unrecognized format %q", s)}
}

// Time returns the normalized time.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether the timestamp was never set.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Before orders two timestamps.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// UnmarshalJSON accepts a JSON string or a JSON integer.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &ValidationError{Field: "timestamp", Reason: "invalid string"}
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*ts = parsed
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return &ValidationError{Field: "timestamp", Reason: "must be a string or an integer"}
	}
	v, err := n.Int64()
	if err != nil {
		return &ValidationError{Field: "timestamp", Reason: "must be an integer when numeric"}
	}
	*ts = TimestampFromInt(v)
	return nil
}

// MarshalJSON writes RFC3339 in UTC with millisecond precision. Finer
// precision from string inputs is truncated.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.t.Format(millisLayout))
}

// Message is a single turn of a conversation. It covers both the inbound
// message and every item of the conversation history.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp Timestamp `json:"timestamp"`
}

// Validate checks the required fields of a message.
func (m Message) Validate(field string) error {
	if m.Sender == "" {
		return &ValidationError{Field: field + ".sender", Reason: "is required"}
	}
	if m.Timestamp.IsZero() {
		return &ValidationError{Field: field + ".timestamp", Reason: "is required"}
	}
	return nil
}
