package protocol

import (
	"encoding/json"
	"testing"
)

func TestNewEvent_EncodesTasksChanged(t *testing.T) {
	evt := NewEvent("evt_1", OpTasksChanged, TasksChanged{
		TurnID:  "turn-1",
		Actions: []ActionRef{{Action: "create_task", TaskID: 9}},
	})
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	var back struct {
		Type    string       `json:"type"`
		Op      string       `json:"op"`
		Payload TasksChanged `json:"payload"`
		Error   *ErrPayload  `json:"error"`
	}
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Type != "event" || back.Op != "tasks.changed" || back.Error != nil {
		t.Fatalf("unexpected envelope: %s", raw)
	}
	if back.Payload.TurnID != "turn-1" || len(back.Payload.Actions) != 1 || back.Payload.Actions[0].TaskID != 9 {
		t.Fatalf("unexpected payload: %+v", back.Payload)
	}
}
