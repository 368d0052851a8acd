package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ReloadMessage asks consumers to reload the dataset. The body carries only
// metadata; the data itself is read from the configured source.
type ReloadMessage struct {
	RunID     string    `json:"run_id,omitempty"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReloadMessage creates a reload request stamped with the current time.
func NewReloadMessage(runID, source, reason string) *ReloadMessage {
	return &ReloadMessage{
		RunID:     runID,
		Source:    source,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReloadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReloadMessageFromJSON decodes a message body. A body without a source is rejected.
func ReloadMessageFromJSON(data []byte) (*ReloadMessage, error) {
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" {
		return nil, errors.New("reload message has no source")
	}
	return &msg, nil
}
