package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the read-only view of the session streamed to the UI: the
// three remaining-time labels, per-question locked flags and the current
// position. Snapshots are deep copies; mutating one never touches the
// controller's state.
type Snapshot struct {
	AttemptID             uuid.UUID                      `json:"attempt_id"`
	ExamID                uuid.UUID                      `json:"exam_id"`
	Status                AttemptStatus                  `json:"status"`
	TotalRemainingSeconds int                            `json:"total_remaining_seconds"`
	EndsAt                time.Time                      `json:"ends_at"`
	CurrentSectionID      uuid.UUID                      `json:"current_section_id"`
	CurrentQuestionID     uuid.UUID                      `json:"current_question_id"`
	SectionTimers         map[uuid.UUID]TimerState       `json:"section_timers"`
	QuestionTimers        map[uuid.UUID]TimerState       `json:"question_timers"`
	LockedQuestions       []uuid.UUID                    `json:"locked_questions,omitempty"`
	ClosedSections        []uuid.UUID                    `json:"closed_sections,omitempty"`
	Answers               map[uuid.UUID]SubmissionRecord `json:"answers"`
	TabSwitchCount        int                            `json:"tab_switch_count"`
	// ConfirmLeave tells the UI to arm its before-unload prompt. Best
	// effort only; never relied on for correctness.
	ConfirmLeave bool      `json:"confirm_leave"`
	TakenAt      time.Time `json:"taken_at"`
}

// QuestionLocked reports whether the snapshot marks the question locked.
func (s *Snapshot) QuestionLocked(id uuid.UUID) bool {
	for _, q := range s.LockedQuestions {
		if q == id {
			return true
		}
	}
	return false
}
