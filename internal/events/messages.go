package events

import (
	"encoding/json"
	"time"
)

// ExpenseChangedMessage announces that a month's expense or income data
// changed. It carries only the household and month; consumers re-read state
// from storage, so a lost message never corrupts anything.
type ExpenseChangedMessage struct {
	HouseholdID string    `json:"householdId"`
	Month       string    `json:"month"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseChangedMessage creates a change notification for a month.
func NewExpenseChangedMessage(householdID, month string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		HouseholdID: householdID,
		Month:       month,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON creates a message from JSON bytes.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
