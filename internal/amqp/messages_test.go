package amqp

import (
	"testing"
	"time"
)

func TestNewExpenseEventMessage(t *testing.T) {
	msg := NewExpenseEventMessage("42", "7", ActionCreated)

	if msg.ExpenseID != "42" {
		t.Errorf("ExpenseID = %q, want %q", msg.ExpenseID, "42")
	}
	if msg.CardID != "7" {
		t.Errorf("CardID = %q, want %q", msg.CardID, "7")
	}
	if msg.Action != ActionCreated {
		t.Errorf("Action = %q, want %q", msg.Action, ActionCreated)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestExpenseEventMessageJSON(t *testing.T) {
	msg := &ExpenseEventMessage{
		ExpenseID: "42",
		CardID:    "7",
		Action:    ActionDeleted,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ExpenseEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("ExpenseEventMessageFromJSON() error = %v", err)
	}

	if parsed.ExpenseID != msg.ExpenseID {
		t.Errorf("ExpenseID = %q, want %q", parsed.ExpenseID, msg.ExpenseID)
	}
	if parsed.Action != msg.Action {
		t.Errorf("Action = %q, want %q", parsed.Action, msg.Action)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestExpenseEventMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     ExpenseEventMessage
		wantErr bool
	}{
		{
			name: "valid created",
			msg:  ExpenseEventMessage{ExpenseID: "1", Action: ActionCreated},
		},
		{
			name: "valid deleted",
			msg:  ExpenseEventMessage{ExpenseID: "1", Action: ActionDeleted},
		},
		{
			name:    "missing expense id",
			msg:     ExpenseEventMessage{Action: ActionCreated},
			wantErr: true,
		},
		{
			name:    "unknown action",
			msg:     ExpenseEventMessage{ExpenseID: "1", Action: "updated"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpenseEventMessageFromJSONRejectsInvalid(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"expense_id": 42, "action": "created"}`),
		[]byte(`{"expense_id": "42", "action": "exploded"}`),
		[]byte(`not json`),
	}
	for _, body := range cases {
		if _, err := ExpenseEventMessageFromJSON(body); err == nil {
			t.Errorf("ExpenseEventMessageFromJSON(%s) should fail", body)
		}
	}
}
