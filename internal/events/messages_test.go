package events

import (
	"testing"
	"time"
)

func TestExpenseChangedMessageRoundTrip(t *testing.T) {
	msg := NewExpenseChangedMessage("h1", "2026-03")
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := ExpenseChangedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.HouseholdID != "h1" || got.Month != "2026-03" {
		t.Errorf("decoded = %+v", got)
	}
	if !got.Timestamp.Truncate(time.Second).Equal(msg.Timestamp.Truncate(time.Second)) {
		t.Errorf("timestamp drifted: %v vs %v", got.Timestamp, msg.Timestamp)
	}
}

func TestExpenseChangedMessageFromJSON_Invalid(t *testing.T) {
	if _, err := ExpenseChangedMessageFromJSON([]byte("not json")); err == nil {
		t.Error("expected error for invalid payload")
	}
}
