package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the lifecycle states of an exam attempt.
type AttemptStatus string

const (
	AttemptNotStarted    AttemptStatus = "not_started"
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptTerminated    AttemptStatus = "terminated"
	AttemptExpired       AttemptStatus = "expired"
)

// Terminal reports whether the status is final. A terminal attempt is
// immutable; every component must drop pending work against it.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptSubmitted, AttemptAutoSubmitted, AttemptTerminated, AttemptExpired:
		return true
	}
	return false
}

// TimerState is the countdown state of one section or question timer.
// Invariants: Completed implies RemainingSeconds == 0; RemainingSeconds is
// monotonically non-increasing while the attempt is in progress.
type TimerState struct {
	RemainingSeconds *int `json:"remaining_seconds"` // nil = unbounded
	Completed        bool `json:"completed"`
}

// Unbounded reports whether this timer never counts down.
func (t TimerState) Unbounded() bool {
	return t.RemainingSeconds == nil
}

// Exhausted reports whether the timer has run out.
func (t TimerState) Exhausted() bool {
	return t.Completed || (t.RemainingSeconds != nil && *t.RemainingSeconds <= 0)
}

// NewTimerState builds a timer from an optional duration.
func NewTimerState(durationSeconds *int) TimerState {
	if durationSeconds == nil {
		return TimerState{}
	}
	d := *durationSeconds
	return TimerState{RemainingSeconds: &d}
}

// AnswerPayload is the student's answer in whichever shape the question
// family uses: Text for free-text/fill-in/coding, SelectedOptions for the
// choice family. Language accompanies coding answers.
type AnswerPayload struct {
	Text            string   `json:"text,omitempty"`
	SelectedOptions []string `json:"selected_options,omitempty"`
	Language        string   `json:"language,omitempty"`
}

// Empty reports whether no answer content is present.
func (a AnswerPayload) Empty() bool {
	return a.Text == "" && len(a.SelectedOptions) == 0
}

// TestResult is a single judged test case outcome for a coding run.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Output string `json:"output,omitempty"`
}

// SubmissionRecord holds the latest answer and judging outcome for one
// question. Run results update the run fields only; graded score state is
// written exclusively by submit.
type SubmissionRecord struct {
	QuestionID  uuid.UUID     `json:"question_id"`
	Answer      AnswerPayload `json:"answer"`
	PassedCount int           `json:"passed_count"`
	FailedCount int           `json:"failed_count"`
	Score       float64       `json:"score"`
	Correct     bool          `json:"correct"`
	TestResults []TestResult  `json:"test_results,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	LastRunAt   *time.Time    `json:"last_run_at,omitempty"`
}

// AttemptState is one student's instance of taking an exam. Timer fields
// are owned by the timer engine, Answers by the submission orchestrator and
// Status termination by the proctoring monitor; all writes are serialized
// through the session controller loop.
type AttemptState struct {
	ID                uuid.UUID                      `json:"id"`
	ExamID            uuid.UUID                      `json:"exam_id"`
	Status            AttemptStatus                  `json:"status"`
	StartedAt         time.Time                      `json:"started_at"`
	EndsAt            time.Time                      `json:"ends_at"`
	SectionTimers     map[uuid.UUID]TimerState       `json:"section_timers"`
	QuestionTimers    map[uuid.UUID]TimerState       `json:"question_timers"`
	CurrentSectionID  uuid.UUID                      `json:"current_section_id"`
	CurrentQuestionID uuid.UUID                      `json:"current_question_id"`
	Answers           map[uuid.UUID]SubmissionRecord `json:"answers"`
}

// Clone returns a deep copy safe to hand outside the controller loop.
func (a *AttemptState) Clone() *AttemptState {
	if a == nil {
		return nil
	}
	cp := *a
	cp.SectionTimers = cloneTimers(a.SectionTimers)
	cp.QuestionTimers = cloneTimers(a.QuestionTimers)
	cp.Answers = make(map[uuid.UUID]SubmissionRecord, len(a.Answers))
	for id, rec := range a.Answers {
		r := rec
		r.TestResults = append([]TestResult(nil), rec.TestResults...)
		cp.Answers[id] = r
	}
	return &cp
}

func cloneTimers(src map[uuid.UUID]TimerState) map[uuid.UUID]TimerState {
	dst := make(map[uuid.UUID]TimerState, len(src))
	for id, t := range src {
		if t.RemainingSeconds != nil {
			v := *t.RemainingSeconds
			t.RemainingSeconds = &v
		}
		dst[id] = t
	}
	return dst
}
