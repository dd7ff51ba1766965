package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeassess/sessiond/internal/model"
)

func TestParseRequestSignalFrame(t *testing.T) {
	frame := SignalRequest{
		Action: ActionSignal,
		Signal: model.EnvironmentSignal{
			Type: model.SignalVisibilityHidden,
			At:   time.Now().UTC().Truncate(time.Second),
		},
	}
	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	action, req, err := ParseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionSignal, action)

	sig, ok := req.(*SignalRequest)
	require.True(t, ok)
	assert.Equal(t, model.SignalVisibilityHidden, sig.Signal.Type)
	assert.Equal(t, frame.Signal.At, sig.Signal.At)
}

func TestParseRequestWorkspaceFrame(t *testing.T) {
	raw := []byte(`{"action":"workspace","question_id":"q-1","workspace":{"answer":"draft","selected_language":"go"}}`)

	action, req, err := ParseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionWorkspace, action)

	ws, ok := req.(*WorkspaceRequest)
	require.True(t, ok)
	assert.Equal(t, "q-1", ws.QuestionID)
	assert.Equal(t, "draft", ws.Workspace.Answer)
	assert.Equal(t, "go", ws.Workspace.SelectedLanguage)
}

func TestParseRequestPingHasNoBody(t *testing.T) {
	action, req, err := ParseRequest([]byte(`{"action":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionPing, action)
	assert.Nil(t, req)
}

func TestParseRequestRejectsGarbage(t *testing.T) {
	_, _, err := ParseRequest([]byte(`not json`))
	assert.Error(t, err)
}
