package websocket

import (
	"encoding/json"

	"github.com/codeassess/sessiond/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSignal    Action = "signal"
	ActionWorkspace Action = "workspace"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SignalRequest forwards one raw environment signal from the UI shim.
type SignalRequest struct {
	Action Action                  `json:"action"`
	Signal model.EnvironmentSignal `json:"signal"`
}

// WorkspaceRequest saves the draft of one question.
type WorkspaceRequest struct {
	Action     Action               `json:"action"`
	QuestionID string               `json:"question_id"`
	Workspace  model.WorkspaceState `json:"workspace"`
}

// PingRequest keeps the stream alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError           Event = "error"
	EventTick            Event = "tick"
	EventAdvisory        Event = "advisory"
	EventQuestionLocked  Event = "locked"
	EventSectionAdvanced Event = "section_advanced"
	EventTerminated      Event = "terminated"
	EventSubmitted       Event = "submitted"
	EventSignalAck       Event = "signal_ack"
	EventPong            Event = "pong"
)

// TickResponse streams the per-second session snapshot.
type TickResponse struct {
	Event    Event           `json:"event"`
	Snapshot *model.Snapshot `json:"snapshot"`
}

// AdvisoryResponse streams a transient user-visible notice.
type AdvisoryResponse struct {
	Event    Event          `json:"event"`
	Advisory model.Advisory `json:"advisory"`
}

// LifecycleResponse announces a terminal transition.
type LifecycleResponse struct {
	Event      Event  `json:"event"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	ShowDialog bool   `json:"show_dialog"`
}

// SignalAckResponse returns the shim directives for a signal.
type SignalAckResponse struct {
	Event          Event  `json:"event"`
	Signal         string `json:"signal"`
	PreventDefault bool   `json:"prevent_default"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// ParseRequest decodes one client frame by its action.
func ParseRequest(raw []byte) (Action, interface{}, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}
	switch env.Action {
	case ActionSignal:
		var req SignalRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, &req, nil
	case ActionWorkspace:
		var req WorkspaceRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, &req, nil
	default:
		return env.Action, nil, nil
	}
}
