package amqp

import (
	"encoding/json"
	"time"
)

// Sync operations carried by EntrySyncMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// EntrySyncMessage asks the sync worker to push one ledger entry to the
// remote mirror. It carries only id and version; the worker fetches the
// full entry from the database.
type EntrySyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntrySyncMessage creates an upsert sync message.
func NewEntrySyncMessage(id, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{ID: id, Version: version, Op: OpUpsert, Timestamp: time.Now()}
}

// NewEntryDeleteMessage creates a delete sync message.
func NewEntryDeleteMessage(id int64) *EntrySyncMessage {
	return &EntrySyncMessage{ID: id, Op: OpDelete, Timestamp: time.Now()}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage is the daily nudge published by the reminder worker.
// Consumers decide how to surface it (log line, desktop notification, bot).
type ReminderMessage struct {
	Message  string    `json:"message"`
	FiredAt  time.Time `json:"fired_at"`
	FireTime string    `json:"fire_time"` // configured HH:MM
}

func NewReminderMessage(message, fireTime string) *ReminderMessage {
	return &ReminderMessage{Message: message, FiredAt: time.Now(), FireTime: fireTime}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
