package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// SampleMessage is the internal message format for the sample topic.
// The gateway publishes one per accepted ingest; the dbwriter consumes
// them in batches.
type SampleMessage struct {
	SampleID   string    `json:"sample_id"`
	ZoneCode   string    `json:"zone_code,omitempty"`
	Count      int       `json:"count"`
	RecordedAt time.Time `json:"recorded_at"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the invariants a stored sample must hold
func (m *SampleMessage) Validate() error {
	if m.Count < 0 {
		return fmt.Errorf("count must be non-negative, got %d", m.Count)
	}
	if m.RecordedAt.IsZero() {
		return fmt.Errorf("recorded_at is required")
	}
	if m.Source == "" {
		return fmt.Errorf("source is required")
	}
	return nil
}

// EncodeSampleMessage encodes a SampleMessage to JSON
func EncodeSampleMessage(msg *SampleMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeSampleMessage decodes JSON to SampleMessage
func DecodeSampleMessage(data []byte) (*SampleMessage, error) {
	var msg SampleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
