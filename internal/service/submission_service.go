package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/model"
)

// SubmissionService runs and submits answers against the authority's
// grading service. Every operation validates its preconditions locally
// first; a failed precondition never produces a network call.
type SubmissionService struct {
	client *authority.Client
	log    zerolog.Logger
}

// NewSubmissionService creates the orchestrator for one session.
func NewSubmissionService(client *authority.Client, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		client: client,
		log:    log.With().Str("component", "submission").Logger(),
	}
}

// ValidateAnswer checks the answer payload against the question family.
func (s *SubmissionService) ValidateAnswer(q model.QuestionDetail, payload model.AnswerPayload) error {
	if q.Type.IsChoice() {
		if len(payload.SelectedOptions) == 0 {
			return ErrOptionRequired
		}
		return nil
	}
	if q.Type.IsCoding() {
		if payload.Language == "" {
			return ErrLanguageRequired
		}
		if !q.AllowsLanguage(payload.Language) {
			return ErrLanguageNotAllowed
		}
	}
	if payload.Empty() {
		return ErrAnswerEmpty
	}
	return nil
}

// validateState checks that the question can be operated on right now.
func (s *SubmissionService) validateState(att *model.AttemptState, questionID uuid.UUID) error {
	if att.Status != model.AttemptInProgress {
		return ErrAttemptNotActive
	}
	if questionID != att.CurrentQuestionID {
		return ErrNotActiveQuestion
	}
	if att.QuestionTimers[questionID].Exhausted() {
		return ErrQuestionLocked
	}
	if rec, ok := att.Answers[questionID]; ok && rec.SubmittedAt != nil {
		return ErrAlreadySubmitted
	}
	return nil
}

// Run executes the answer against the question's sample tests. Run
// results are advisory; they never touch graded score state.
func (s *SubmissionService) Run(ctx context.Context, att *model.AttemptState, q model.QuestionDetail, payload model.AnswerPayload) (*authority.RunResult, error) {
	if err := s.validateState(att, q.ID); err != nil {
		return nil, err
	}
	if err := s.ValidateAnswer(q, payload); err != nil {
		return nil, err
	}
	return s.client.RunCode(ctx, authority.RunRequest{
		AttemptID:  att.ID,
		ExamID:     att.ExamID,
		QuestionID: q.ID,
		Answer:     payload,
	})
}

// RunWithCustomInput executes the answer against student-provided input
// instead of the sample tests.
func (s *SubmissionService) RunWithCustomInput(ctx context.Context, att *model.AttemptState, q model.QuestionDetail, payload model.AnswerPayload, input string) (*authority.RunResult, error) {
	if err := s.validateState(att, q.ID); err != nil {
		return nil, err
	}
	if err := s.ValidateAnswer(q, payload); err != nil {
		return nil, err
	}
	return s.client.RunCodeWithCustomInput(ctx, authority.RunRequest{
		AttemptID:   att.ID,
		ExamID:      att.ExamID,
		QuestionID:  q.ID,
		Answer:      payload,
		CustomInput: &input,
	})
}

// Submit grades and records the final answer for one question.
func (s *SubmissionService) Submit(ctx context.Context, att *model.AttemptState, q model.QuestionDetail, payload model.AnswerPayload) (*authority.RunResult, error) {
	if err := s.validateState(att, q.ID); err != nil {
		return nil, err
	}
	if err := s.ValidateAnswer(q, payload); err != nil {
		return nil, err
	}
	res, err := s.client.SubmitAnswer(ctx, authority.SubmitAnswerRequest{
		AttemptID:  att.ID,
		ExamID:     att.ExamID,
		QuestionID: q.ID,
		Answer:     payload,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("question_id", q.ID.String()).Msg("Submit answer failed")
		return nil, err
	}
	return res, nil
}

// SubmitExam finalizes the attempt at the student's request.
func (s *SubmissionService) SubmitExam(ctx context.Context, examID, attemptID uuid.UUID) error {
	return s.client.SubmitExam(ctx, examID, attemptID)
}

// AutoSubmitExam finalizes the attempt after time expiry. Best effort:
// the authority's own deadline enforcement is the real backstop.
func (s *SubmissionService) AutoSubmitExam(ctx context.Context, examID, attemptID uuid.UUID) error {
	return s.client.AutoSubmitExam(ctx, examID, attemptID)
}
