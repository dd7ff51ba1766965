package authority

import (
	"time"

	"github.com/google/uuid"

	"github.com/codeassess/sessiond/internal/model"
)

// StartSessionResult is the bootstrap payload: the exam definition, the
// created or resumed attempt, and the render payloads for every question.
type StartSessionResult struct {
	Exam      *model.ExamDefinition  `json:"exam"`
	Attempt   *model.AttemptState    `json:"attempt"`
	Questions []model.QuestionDetail `json:"questions"`
}

// SectionTimerUpdate persists one absolute section timer value. Values are
// absolute, never relative, so replaying an update is harmless.
type SectionTimerUpdate struct {
	AttemptID         uuid.UUID  `json:"attempt_id"`
	SectionID         uuid.UUID  `json:"section_id"`
	RemainingSeconds  *int       `json:"remaining_seconds"`
	Completed         bool       `json:"completed"`
	CurrentQuestionID *uuid.UUID `json:"current_question_id,omitempty"`
}

// QuestionTimerUpdate persists one absolute question timer value.
type QuestionTimerUpdate struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	RemainingSeconds *int      `json:"remaining_seconds"`
	Completed        bool      `json:"completed"`
}

// ProctoringReport is one classified event sent to the authority's log.
type ProctoringReport struct {
	AttemptID uuid.UUID                 `json:"attempt_id"`
	Type      model.ProctoringEventType `json:"type"`
	Timestamp time.Time                 `json:"timestamp"`
	Details   map[string]string         `json:"details,omitempty"`
}

// ProctoringVerdict is the authority's response to an event report. A
// terminate verdict forcibly ends the attempt and always wins over local
// timer state.
type ProctoringVerdict struct {
	Terminate bool   `json:"terminate"`
	Reason    string `json:"reason,omitempty"`
}

// RunRequest executes an answer against the grading service without
// touching graded score state.
type RunRequest struct {
	AttemptID   uuid.UUID           `json:"attempt_id"`
	ExamID      uuid.UUID           `json:"exam_id"`
	QuestionID  uuid.UUID           `json:"question_id"`
	Answer      model.AnswerPayload `json:"answer"`
	CustomInput *string             `json:"custom_input,omitempty"`
}

// RunResult is the judged outcome of a run or an answer submission.
type RunResult struct {
	PassedCount int                `json:"passed_count"`
	FailedCount int                `json:"failed_count"`
	Score       float64            `json:"score"`
	Correct     bool               `json:"correct"`
	TestResults []model.TestResult `json:"test_results,omitempty"`
}

// SubmitAnswerRequest grades and records one question's answer.
type SubmitAnswerRequest struct {
	AttemptID  uuid.UUID           `json:"attempt_id"`
	ExamID     uuid.UUID           `json:"exam_id"`
	QuestionID uuid.UUID           `json:"question_id"`
	Answer     model.AnswerPayload `json:"answer"`
}
