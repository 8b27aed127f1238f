package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SnapshotUpdatedMessage announces that a new snapshot object was uploaded.
type SnapshotUpdatedMessage struct {
	ID        string    `json:"id"`
	Object    string    `json:"object"`
	UpdatedAt time.Time `json:"updated_at"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotUpdatedMessage(object string, updatedAt time.Time) *SnapshotUpdatedMessage {
	return &SnapshotUpdatedMessage{
		ID:        uuid.NewString(),
		Object:    object,
		UpdatedAt: updatedAt,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotUpdatedMessageFromJSON(data []byte) (*SnapshotUpdatedMessage, error) {
	var msg SnapshotUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
