package service

import "errors"

// Precondition errors returned by session operations. Handlers map these
// onto response codes; none of them involve the network, so a rejected
// operation costs nothing remotely.
var (
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionAlreadyActive = errors.New("another session is already active")
	ErrSessionEnded         = errors.New("session has ended")

	ErrUnknownQuestion  = errors.New("unknown question")
	ErrUnknownSection   = errors.New("unknown section")
	ErrQuestionLocked   = errors.New("question is locked")
	ErrSectionClosed    = errors.New("section time is over")
	ErrSectionNoRevisit = errors.New("section does not allow revisiting")

	ErrAttemptNotActive  = errors.New("attempt is not in progress")
	ErrAlreadySubmitted  = errors.New("question already has a final answer")
	ErrNotActiveQuestion = errors.New("question is not the active question")

	ErrAnswerEmpty        = errors.New("answer is empty")
	ErrOptionRequired     = errors.New("select at least one option")
	ErrLanguageRequired   = errors.New("select a language first")
	ErrLanguageNotAllowed = errors.New("language is not allowed for this question")
)
