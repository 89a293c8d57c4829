package message

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/logwindow/pkg/id"
)

var keys = id.NewGenerator()

// Message is one recorded log or error event.
type Message struct {
	Key       string
	Timestamp int64 // unix milliseconds
	Severity  Severity
	Progname  string
	Message   string
	Backtrace string
	Count     int64
	Env       map[string]any

	// Protected is derived from the store's protection set on read and is
	// never authoritative.
	Protected bool
}

// New builds a message stamped with the current time and a fresh key. The
// timestamp is read from the key so both orderings agree.
func New(severity Severity, progname, text string) *Message {
	k := keys.Next()
	return &Message{
		Key:       k.String(),
		Timestamp: k.Millis(),
		Severity:  severity,
		Progname:  progname,
		Message:   text,
		Count:     1,
	}
}

// Time returns the timestamp as a time.Time.
func (m *Message) Time() time.Time { return time.UnixMilli(m.Timestamp) }

type groupingFields struct {
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Backtrace string   `json:"backtrace"`
}

// GroupingKey fingerprints the parts of a message that identify a recurring
// event: text, severity and backtrace.
func (m *Message) GroupingKey() string {
	b, _ := json.Marshal(groupingFields{Message: m.Message, Severity: m.Severity, Backtrace: m.Backtrace})
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Compare orders by timestamp, then key.
func (m *Message) Compare(other *Message) int {
	switch {
	case m.Timestamp < other.Timestamp:
		return -1
	case m.Timestamp > other.Timestamp:
		return 1
	}
	return strings.Compare(m.Key, other.Key)
}

type record struct {
	Message   string         `json:"message"`
	Progname  string         `json:"progname"`
	Severity  Severity       `json:"severity"`
	Timestamp int64          `json:"timestamp"`
	Key       string         `json:"key"`
	Backtrace *string        `json:"backtrace"`
	Count     int64          `json:"count"`
	Env       map[string]any `json:"env"`
	Protected bool           `json:"protected"`
}

// MarshalJSON writes the persisted record layout.
func (m *Message) MarshalJSON() ([]byte, error) {
	r := record{
		Message:   m.Message,
		Progname:  m.Progname,
		Severity:  m.Severity,
		Timestamp: m.Timestamp,
		Key:       m.Key,
		Count:     m.Count,
		Env:       m.Env,
		Protected: m.Protected,
	}
	if m.Backtrace != "" {
		bt := m.Backtrace
		r.Backtrace = &bt
	}
	return json.Marshal(r)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*m = Message{
		Key:       r.Key,
		Timestamp: r.Timestamp,
		Severity:  r.Severity,
		Progname:  r.Progname,
		Message:   r.Message,
		Count:     r.Count,
		Env:       r.Env,
		Protected: r.Protected,
	}
	if r.Backtrace != nil {
		m.Backtrace = *r.Backtrace
	}
	if m.Count < 1 {
		m.Count = 1
	}
	return nil
}

// Marshal serializes m for storage.
func (m *Message) Marshal() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("message: marshal %s: %w", m.Key, err)
	}
	return string(b), nil
}

// Unmarshal decodes a stored message. The protected flag is cleared; the
// store recomputes it.
func Unmarshal(data string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("message: unmarshal: %w", err)
	}
	if m.Key == "" {
		return nil, fmt.Errorf("message: unmarshal: missing key")
	}
	m.Protected = false
	return &m, nil
}
