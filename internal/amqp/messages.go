package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExpenseEventAction identifies what happened to an expense record.
type ExpenseEventAction string

const (
	ActionCreated ExpenseEventAction = "created"
	ActionDeleted ExpenseEventAction = "deleted"
)

// ExpenseEventMessage is the lightweight envelope published whenever an
// expense changes. Consumers fetch whatever else they need from storage,
// so the message only carries identifiers.
type ExpenseEventMessage struct {
	ExpenseID string             `json:"expense_id"`
	CardID    string             `json:"card_id,omitempty"`
	Action    ExpenseEventAction `json:"action"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewExpenseEventMessage(expenseID, cardID string, action ExpenseEventAction) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		ExpenseID: expenseID,
		CardID:    cardID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseEventMessage) Validate() error {
	if m.ExpenseID == "" {
		return fmt.Errorf("expense event missing expense id")
	}
	switch m.Action {
	case ActionCreated, ActionDeleted:
		return nil
	default:
		return fmt.Errorf("unknown expense event action %q", m.Action)
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
