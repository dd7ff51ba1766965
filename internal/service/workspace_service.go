package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/model"
)

// WorkspaceService manages per-question drafts for one attempt. Entering
// a question restores its draft (or seeds a fresh one), saves are
// whole-state upserts, and switching a coding language restores the
// student's previous draft for that language before falling back to the
// starter snippet.
type WorkspaceService struct {
	store     WorkspaceStore
	questions map[uuid.UUID]model.QuestionDetail
	attemptID uuid.UUID
	log       zerolog.Logger
}

// NewWorkspaceService creates the draft manager for one attempt.
func NewWorkspaceService(store WorkspaceStore, attemptID uuid.UUID, questions []model.QuestionDetail, log zerolog.Logger) *WorkspaceService {
	byID := make(map[uuid.UUID]model.QuestionDetail, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &WorkspaceService{
		store:     store,
		questions: byID,
		attemptID: attemptID,
		log:       log.With().Str("component", "workspace").Logger(),
	}
}

// Question returns the render detail for a question.
func (s *WorkspaceService) Question(questionID uuid.UUID) (model.QuestionDetail, bool) {
	q, ok := s.questions[questionID]
	return q, ok
}

// Enter returns the draft for a question, seeding a fresh one on first
// visit. For coding questions the seed selects the first allowed language
// and its starter snippet.
func (s *WorkspaceService) Enter(ctx context.Context, questionID uuid.UUID) (*model.WorkspaceState, error) {
	q, ok := s.questions[questionID]
	if !ok {
		return nil, ErrUnknownQuestion
	}

	ws, err := s.store.Get(ctx, s.attemptID, questionID)
	if err != nil {
		return nil, err
	}
	if ws != nil {
		return ws, nil
	}

	ws = s.initialState(q)
	if err := s.store.Put(ctx, s.attemptID, questionID, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) initialState(q model.QuestionDetail) *model.WorkspaceState {
	ws := &model.WorkspaceState{}
	if q.Type.IsCoding() && len(q.AllowedLanguages) > 0 {
		lang := q.AllowedLanguages[0]
		ws.SelectedLanguage = lang
		ws.Answer = q.StarterCode[lang]
		ws.LanguageDrafts = make(map[string]string)
	}
	return ws
}

// Save replaces the draft for a question.
func (s *WorkspaceService) Save(ctx context.Context, questionID uuid.UUID, ws *model.WorkspaceState) error {
	q, ok := s.questions[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Type.IsCoding() && ws.SelectedLanguage != "" && !q.AllowsLanguage(ws.SelectedLanguage) {
		return ErrLanguageNotAllowed
	}
	return s.store.Put(ctx, s.attemptID, questionID, ws)
}

// SwitchLanguage changes the selected language of a coding draft. The
// outgoing language's code is stashed, and the incoming language restores
// its stashed draft if one exists; only a first visit gets starter code.
func (s *WorkspaceService) SwitchLanguage(ctx context.Context, questionID uuid.UUID, lang string) (*model.WorkspaceState, error) {
	q, ok := s.questions[questionID]
	if !ok {
		return nil, ErrUnknownQuestion
	}
	if !q.Type.IsCoding() {
		return nil, ErrUnknownQuestion
	}
	if !q.AllowsLanguage(lang) {
		return nil, ErrLanguageNotAllowed
	}

	ws, err := s.Enter(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if ws.SelectedLanguage == lang {
		return ws, nil
	}

	if ws.LanguageDrafts == nil {
		ws.LanguageDrafts = make(map[string]string)
	}
	if ws.SelectedLanguage != "" {
		ws.LanguageDrafts[ws.SelectedLanguage] = ws.Answer
	}

	if draft, ok := ws.LanguageDrafts[lang]; ok {
		ws.Answer = draft
	} else {
		ws.Answer = q.StarterCode[lang]
	}
	ws.SelectedLanguage = lang

	if err := s.store.Put(ctx, s.attemptID, questionID, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Payload builds the answer payload for run/submit from the saved draft.
func (s *WorkspaceService) Payload(ctx context.Context, questionID uuid.UUID) (model.AnswerPayload, error) {
	q, ok := s.questions[questionID]
	if !ok {
		return model.AnswerPayload{}, ErrUnknownQuestion
	}
	ws, err := s.Enter(ctx, questionID)
	if err != nil {
		return model.AnswerPayload{}, err
	}
	return ws.Payload(q.Type), nil
}

// Clear drops every draft of the attempt. Called on teardown.
func (s *WorkspaceService) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.attemptID)
}
