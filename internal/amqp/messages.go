package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RefreshMessage announces that a new snapshot of an extract has been stored.
type RefreshMessage struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset"`
	Version   int64     `json:"version"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRefreshMessage creates a refresh message with a fresh id.
func NewRefreshMessage(dataset string, version int64, rows int) *RefreshMessage {
	return &RefreshMessage{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		Version:   version,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON decodes a message and checks it names a dataset.
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Dataset == "" {
		return nil, errors.New("refresh message without dataset")
	}
	return &msg, nil
}
