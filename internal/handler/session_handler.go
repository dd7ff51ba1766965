package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/middleware"
	"github.com/codeassess/sessiond/internal/model"
	"github.com/codeassess/sessiond/internal/response"
	"github.com/codeassess/sessiond/internal/service"
	"github.com/codeassess/sessiond/internal/validator"
)

// SessionHandler exposes the session controller to the exam UI shim.
type SessionHandler struct {
	manager *service.SessionManager
	log     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *service.SessionManager, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		log:     log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSessionRequest begins or resumes an exam session.
type StartSessionRequest struct {
	ExamID string `json:"exam_id" binding:"required,uuid"`
}

// NavigateRequest moves the student to another question.
type NavigateRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
}

// SaveWorkspaceRequest replaces the draft of one question.
type SaveWorkspaceRequest struct {
	Workspace model.WorkspaceState `json:"workspace" binding:"required"`
}

// SwitchLanguageRequest changes the selected language of a coding draft.
type SwitchLanguageRequest struct {
	Language string `json:"language" binding:"required"`
}

// RunCustomRequest runs the draft against student-provided input.
type RunCustomRequest struct {
	Input string `json:"input"`
}

// SignalRequest forwards one raw environment signal.
type SignalRequest struct {
	Signal model.EnvironmentSignal `json:"signal" binding:"required"`
}

// StartSession godoc
// POST /api/v1/session/start
// Creates or resumes the attempt for an exam. Starting the same exam
// twice resumes; starting a different one while active is refused.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.manager.Start(c.Request.Context(), examID, middleware.GetToken(c))
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam":      sess.Exam,
		"questions": sess.Questions,
		"snapshot":  sess.Controller.Snapshot(),
	})
}

// GetState godoc
// GET /api/v1/session/state
// Returns the current session snapshot.
func (h *SessionHandler) GetState(c *gin.Context) {
	sess, err := h.manager.Active()
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"snapshot": sess.Controller.Snapshot()})
}

// Resync godoc
// POST /api/v1/session/resync
// Flushes pending updates and adopts the server's attempt state.
func (h *SessionHandler) Resync(c *gin.Context) {
	sess, err := h.manager.Active()
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	if err := sess.Controller.Resync(c.Request.Context()); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"snapshot": sess.Controller.Snapshot()})
}

// Navigate godoc
// POST /api/v1/session/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	sess, err := h.manager.Active()
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	var req NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := sess.Controller.Navigate(questionID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"snapshot": snap})
}

// GetWorkspace godoc
// GET /api/v1/session/workspace/:question_id
// Returns the draft for a question, seeding one on first visit.
func (h *SessionHandler) GetWorkspace(c *gin.Context) {
	sess, questionID, ok := h.sessionAndQuestion(c)
	if !ok {
		return
	}
	ws, err := sess.Workspace.Enter(c.Request.Context(), questionID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	q, _ := sess.Workspace.Question(questionID)
	response.Success(c, http.StatusOK, gin.H{"workspace": ws, "question": q})
}

// SaveWorkspace godoc
// PUT /api/v1/session/workspace/:question_id
func (h *SessionHandler) SaveWorkspace(c *gin.Context) {
	sess, questionID, ok := h.sessionAndQuestion(c)
	if !ok {
		return
	}

	var req SaveWorkspaceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := sess.Workspace.Save(c.Request.Context(), questionID, &req.Workspace); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// SwitchLanguage godoc
// POST /api/v1/session/workspace/:question_id/language
// Stashes the current language's code and restores the target
// language's previous draft, falling back to starter code.
func (h *SessionHandler) SwitchLanguage(c *gin.Context) {
	sess, questionID, ok := h.sessionAndQuestion(c)
	if !ok {
		return
	}

	var req SwitchLanguageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ws, err := sess.Workspace.SwitchLanguage(c.Request.Context(), questionID, req.Language)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"workspace": ws})
}

// RunCode godoc
// POST /api/v1/session/questions/:question_id/run
func (h *SessionHandler) RunCode(c *gin.Context) {
	sess, questionID, ok := h.sessionAndQuestion(c)
	if !ok {
		return
	}
	res, err := sess.Controller.RunCode(c.Request.Context(), questionID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// RunCodeCustom godoc
// POST /api/v1/session/questions/:question_id/run-custom
func (h *SessionHandler) RunCodeCustom(c *gin.Context) {
	sess, questionID, ok := h.sessionAndQuestion(c)
	if !ok {
		return
	}

	var req RunCustomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := sess.Controller.RunWithCustomInput(c.Request.Context(), questionID, req.Input)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// SubmitAnswer godoc
// POST /api/v1/session/questions/:question_id/submit
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sess, questionID, ok := h.sessionAndQuestion(c)
	if !ok {
		return
	}
	res, err := sess.Controller.SubmitAnswer(c.Request.Context(), questionID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res, "snapshot": sess.Controller.Snapshot()})
}

// SubmitExam godoc
// POST /api/v1/session/submit
// Finalizes the attempt. Repeating a successful submit is a no-op.
func (h *SessionHandler) SubmitExam(c *gin.Context) {
	sess, err := h.manager.Active()
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	if err := sess.Controller.SubmitExam(c.Request.Context()); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"snapshot": sess.Controller.Snapshot()})
}

// ReportSignal godoc
// POST /api/v1/session/signals
// Classifies one environment signal and returns the shim directives.
func (h *SessionHandler) ReportSignal(c *gin.Context) {
	sess, err := h.manager.Active()
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	var req SignalRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out := sess.Controller.HandleSignal(req.Signal)
	response.Success(c, http.StatusOK, gin.H{
		"prevent_default": out.PreventDefault,
		"event_recorded":  out.Event != nil,
	})
}

func (h *SessionHandler) sessionAndQuestion(c *gin.Context) (*service.Session, uuid.UUID, bool) {
	sess, err := h.manager.Active()
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return nil, uuid.Nil, false
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return sess, questionID, true
}

// failSession maps service and authority errors onto response codes.
func (h *SessionHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
	case errors.Is(err, service.ErrSessionAlreadyActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
	case errors.Is(err, service.ErrSessionEnded):
		response.Fail(c, http.StatusConflict, response.ErrSessionEnded)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
	case errors.Is(err, service.ErrUnknownSection):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownSection)
	case errors.Is(err, service.ErrQuestionLocked):
		response.Fail(c, http.StatusConflict, response.ErrQuestionLocked)
	case errors.Is(err, service.ErrSectionClosed):
		response.Fail(c, http.StatusConflict, response.ErrSectionClosed)
	case errors.Is(err, service.ErrSectionNoRevisit):
		response.Fail(c, http.StatusConflict, response.ErrSectionNoRevisit)
	case errors.Is(err, service.ErrAttemptNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrNotActiveQuestion):
		response.Fail(c, http.StatusConflict, response.ErrNotActiveQuestion)
	case errors.Is(err, service.ErrAnswerEmpty):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrAnswerEmpty)
	case errors.Is(err, service.ErrOptionRequired):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrOptionRequired)
	case errors.Is(err, service.ErrLanguageRequired):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrLanguageRequired)
	case errors.Is(err, service.ErrLanguageNotAllowed):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrLanguageNotAllowed)
	case errors.Is(err, authority.ErrUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrAuthorityUnavailable)
	default:
		var re *authority.RemoteError
		if errors.As(err, &re) {
			h.log.Warn().Int("status", re.StatusCode).Str("code", re.Code).Msg("Authority rejected request")
			response.Fail(c, http.StatusBadGateway, response.ErrAuthorityUnavailable)
			return
		}
		h.log.Error().Err(err).Msg("Unhandled session error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
