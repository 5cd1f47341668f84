package notify

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"
)

// Message is a notification awaiting confirmed receipt by one client.
// Timestamps are unix milliseconds, matching the durable file format.
type Message struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"clientId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   int64           `json:"createdAt"`
	NextAttempt int64           `json:"nextAttempt"`
	RetryCount  int             `json:"retryCount"`
}

// Due reports whether the message is ready for a delivery attempt.
func (m Message) Due(now time.Time) bool {
	return m.NextAttempt <= now.UnixMilli()
}

// Age is the time elapsed since the message was created.
func (m Message) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(m.CreatedAt))
}

// snapshot is the durable file layout: the full pending set, keyed by id.
type snapshot struct {
	Messages map[string]Message `json:"messages"`
}

// payloadEqual compares two payloads structurally, so formatting and key
// order differences don't defeat the dedup guard.
func payloadEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(av, bv)
}
