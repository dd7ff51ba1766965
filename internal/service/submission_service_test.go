package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/model"
)

// fakeAuthority counts every request so tests can prove that rejected
// preconditions never reach the network.
type fakeAuthority struct {
	srv  *httptest.Server
	hits atomic.Int64
}

func newFakeAuthority(t *testing.T, body string) *fakeAuthority {
	t.Helper()
	f := &fakeAuthority{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuthority) client() *authority.Client {
	return authority.NewClient(f.srv.URL, "test-token", 5*time.Second, zerolog.Nop())
}

const runResultBody = `{"data":{"passed_count":3,"failed_count":1,"score":75,"correct":false,"test_results":[{"name":"case 1","passed":true}]}}`

func submissionFixture(t *testing.T, q model.QuestionDetail) (*SubmissionService, *model.AttemptState, *fakeAuthority) {
	t.Helper()
	f := newFakeAuthority(t, runResultBody)
	svc := NewSubmissionService(f.client(), zerolog.Nop())
	att := &model.AttemptState{
		ID:                uuid.New(),
		ExamID:            uuid.New(),
		Status:            model.AttemptInProgress,
		CurrentQuestionID: q.ID,
		QuestionTimers:    map[uuid.UUID]model.TimerState{},
		Answers:           map[uuid.UUID]model.SubmissionRecord{},
	}
	return svc, att, f
}

func TestRunReturnsJudgedResult(t *testing.T) {
	q := codingQuestion()
	svc, att, f := submissionFixture(t, q)

	res, err := svc.Run(context.Background(), att, q, model.AnswerPayload{Text: "code", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.PassedCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, int64(1), f.hits.Load())
}

func TestRunRejectsInactiveQuestionWithoutNetwork(t *testing.T) {
	q := codingQuestion()
	svc, att, f := submissionFixture(t, q)
	att.CurrentQuestionID = uuid.New()

	_, err := svc.Run(context.Background(), att, q, model.AnswerPayload{Text: "code", Language: "go"})
	assert.ErrorIs(t, err, ErrNotActiveQuestion)
	assert.Zero(t, f.hits.Load(), "precondition failures must not reach the authority")
}

func TestRunRejectsLockedQuestionWithoutNetwork(t *testing.T) {
	q := codingQuestion()
	svc, att, f := submissionFixture(t, q)
	att.QuestionTimers[q.ID] = model.TimerState{Completed: true}

	_, err := svc.Run(context.Background(), att, q, model.AnswerPayload{Text: "code", Language: "go"})
	assert.ErrorIs(t, err, ErrQuestionLocked)
	assert.Zero(t, f.hits.Load())
}

func TestRunRejectsTerminalAttempt(t *testing.T) {
	q := codingQuestion()
	svc, att, f := submissionFixture(t, q)
	att.Status = model.AttemptTerminated

	_, err := svc.Run(context.Background(), att, q, model.AnswerPayload{Text: "code", Language: "go"})
	assert.ErrorIs(t, err, ErrAttemptNotActive)
	assert.Zero(t, f.hits.Load())
}

func TestSubmitRejectsResubmission(t *testing.T) {
	q := codingQuestion()
	svc, att, f := submissionFixture(t, q)
	now := time.Now()
	att.Answers[q.ID] = model.SubmissionRecord{QuestionID: q.ID, SubmittedAt: &now}

	_, err := svc.Submit(context.Background(), att, q, model.AnswerPayload{Text: "code", Language: "go"})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Zero(t, f.hits.Load())
}

func TestValidateAnswerByFamily(t *testing.T) {
	svc := NewSubmissionService(nil, zerolog.Nop())
	coding := codingQuestion()
	choice := choiceQuestion()
	free := model.QuestionDetail{ID: uuid.New(), Type: model.QuestionFreeText}

	assert.ErrorIs(t, svc.ValidateAnswer(choice, model.AnswerPayload{}), ErrOptionRequired)
	assert.NoError(t, svc.ValidateAnswer(choice, model.AnswerPayload{SelectedOptions: []string{"b"}}))

	assert.ErrorIs(t, svc.ValidateAnswer(coding, model.AnswerPayload{Text: "code"}), ErrLanguageRequired)
	assert.ErrorIs(t, svc.ValidateAnswer(coding, model.AnswerPayload{Text: "code", Language: "cobol"}), ErrLanguageNotAllowed)
	assert.ErrorIs(t, svc.ValidateAnswer(coding, model.AnswerPayload{Language: "go"}), ErrAnswerEmpty)
	assert.NoError(t, svc.ValidateAnswer(coding, model.AnswerPayload{Text: "code", Language: "go"}))

	assert.ErrorIs(t, svc.ValidateAnswer(free, model.AnswerPayload{}), ErrAnswerEmpty)
	assert.NoError(t, svc.ValidateAnswer(free, model.AnswerPayload{Text: "an essay"}))
}

func TestSubmitRecordsScore(t *testing.T) {
	q := codingQuestion()
	svc, att, f := submissionFixture(t, q)

	res, err := svc.Submit(context.Background(), att, q, model.AnswerPayload{Text: "code", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.Score)
	assert.Equal(t, int64(1), f.hits.Load())
}
