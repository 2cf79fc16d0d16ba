package protocol

import "encoding/json"

const (
	TypeEvent = "event"

	OpTasksChanged = "tasks.changed"
	OpHello        = "hello"
)

// Message is the websocket envelope pushed to clients.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
	Error   *ErrPayload     `json:"error,omitempty"`
}

type ErrPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ActionRef names one executed action in a tasks.changed payload.
type ActionRef struct {
	Action string `json:"action"`
	TaskID int64  `json:"task_id"`
}

type TasksChanged struct {
	TurnID  string      `json:"turn_id"`
	Actions []ActionRef `json:"actions"`
}

func MustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func NewEvent(id, op string, payload any) Message {
	return Message{ID: id, Type: TypeEvent, Op: op, Payload: MustRaw(payload)}
}
