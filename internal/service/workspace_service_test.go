package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeassess/sessiond/internal/model"
)

func codingQuestion() model.QuestionDetail {
	return model.QuestionDetail{
		ID:               uuid.New(),
		SectionID:        uuid.New(),
		Type:             model.QuestionCoding,
		Title:            "Two Sum",
		AllowedLanguages: []string{"go", "python"},
		StarterCode: map[string]string{
			"go":     "package main\n\nfunc twoSum(nums []int, target int) []int {\n}\n",
			"python": "def two_sum(nums, target):\n    pass\n",
		},
	}
}

func choiceQuestion() model.QuestionDetail {
	return model.QuestionDetail{
		ID:   uuid.New(),
		Type: model.QuestionMultipleChoice,
	}
}

func newWorkspaceFixture(t *testing.T, questions ...model.QuestionDetail) *WorkspaceService {
	t.Helper()
	return NewWorkspaceService(NewMemoryWorkspaceStore(), uuid.New(), questions, zerolog.Nop())
}

func TestEnterSeedsCodingDraftWithStarterCode(t *testing.T) {
	q := codingQuestion()
	svc := newWorkspaceFixture(t, q)

	ws, err := svc.Enter(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "go", ws.SelectedLanguage)
	assert.Equal(t, q.StarterCode["go"], ws.Answer)
}

func TestEnterReturnsSavedDraft(t *testing.T) {
	q := codingQuestion()
	svc := newWorkspaceFixture(t, q)
	ctx := context.Background()

	ws, err := svc.Enter(ctx, q.ID)
	require.NoError(t, err)
	ws.Answer = "my solution"
	require.NoError(t, svc.Save(ctx, q.ID, ws))

	again, err := svc.Enter(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "my solution", again.Answer)
}

func TestEnterUnknownQuestion(t *testing.T) {
	svc := newWorkspaceFixture(t, codingQuestion())
	_, err := svc.Enter(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestSwitchLanguageStashesAndRestoresDrafts(t *testing.T) {
	q := codingQuestion()
	svc := newWorkspaceFixture(t, q)
	ctx := context.Background()

	ws, err := svc.Enter(ctx, q.ID)
	require.NoError(t, err)
	ws.Answer = "func twoSum() { /* my go code */ }"
	require.NoError(t, svc.Save(ctx, q.ID, ws))

	// First visit to python gets the starter snippet.
	ws, err = svc.SwitchLanguage(ctx, q.ID, "python")
	require.NoError(t, err)
	assert.Equal(t, "python", ws.SelectedLanguage)
	assert.Equal(t, q.StarterCode["python"], ws.Answer)

	ws.Answer = "# my python code"
	require.NoError(t, svc.Save(ctx, q.ID, ws))

	// Switching back restores the stashed go draft, not starter code.
	ws, err = svc.SwitchLanguage(ctx, q.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, "func twoSum() { /* my go code */ }", ws.Answer)

	// And python's own edits survived the round trip.
	ws, err = svc.SwitchLanguage(ctx, q.ID, "python")
	require.NoError(t, err)
	assert.Equal(t, "# my python code", ws.Answer)
}

func TestSwitchLanguageRejectsDisallowed(t *testing.T) {
	q := codingQuestion()
	svc := newWorkspaceFixture(t, q)

	_, err := svc.SwitchLanguage(context.Background(), q.ID, "cobol")
	assert.ErrorIs(t, err, ErrLanguageNotAllowed)
}

func TestSwitchLanguageSameLanguageIsNoop(t *testing.T) {
	q := codingQuestion()
	svc := newWorkspaceFixture(t, q)
	ctx := context.Background()

	ws, err := svc.Enter(ctx, q.ID)
	require.NoError(t, err)
	ws.Answer = "edited"
	require.NoError(t, svc.Save(ctx, q.ID, ws))

	ws, err = svc.SwitchLanguage(ctx, q.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, "edited", ws.Answer)
}

func TestPayloadShapesByQuestionFamily(t *testing.T) {
	coding := codingQuestion()
	choice := choiceQuestion()
	svc := newWorkspaceFixture(t, coding, choice)
	ctx := context.Background()

	ws, err := svc.Enter(ctx, choice.ID)
	require.NoError(t, err)
	ws.SelectedOptions = []string{"a", "c"}
	require.NoError(t, svc.Save(ctx, choice.ID, ws))

	payload, err := svc.Payload(ctx, choice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, payload.SelectedOptions)
	assert.Empty(t, payload.Text)

	payload, err = svc.Payload(ctx, coding.ID)
	require.NoError(t, err)
	assert.Equal(t, "go", payload.Language)
	assert.Equal(t, coding.StarterCode["go"], payload.Text)
}

func TestClearDropsAllDrafts(t *testing.T) {
	q := codingQuestion()
	svc := newWorkspaceFixture(t, q)
	ctx := context.Background()

	ws, err := svc.Enter(ctx, q.ID)
	require.NoError(t, err)
	ws.Answer = "something"
	require.NoError(t, svc.Save(ctx, q.ID, ws))
	require.NoError(t, svc.Clear(ctx))

	again, err := svc.Enter(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.StarterCode["go"], again.Answer, "cleared draft reseeds from starter code")
}
