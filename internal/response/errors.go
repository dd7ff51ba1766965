package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrNoActiveSession ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionActive   ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionEnded    ErrCode = "SESSION_ENDED"
	ErrSessionStart    ErrCode = "SESSION_START_FAILED"

	// ─── Navigation / timers ───────────────────────────────────────────
	ErrQuestionLocked   ErrCode = "QUESTION_LOCKED"
	ErrSectionClosed    ErrCode = "SECTION_CLOSED"
	ErrSectionNoRevisit ErrCode = "SECTION_NO_REVISIT"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"
	ErrUnknownSection   ErrCode = "UNKNOWN_SECTION"

	// ─── Submission ────────────────────────────────────────────────────
	ErrAttemptNotActive   ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrNotActiveQuestion  ErrCode = "NOT_ACTIVE_QUESTION"
	ErrAnswerEmpty        ErrCode = "ANSWER_EMPTY"
	ErrOptionRequired     ErrCode = "OPTION_REQUIRED"
	ErrLanguageRequired   ErrCode = "LANGUAGE_REQUIRED"
	ErrLanguageNotAllowed ErrCode = "LANGUAGE_NOT_ALLOWED"

	// ─── Remote authority ──────────────────────────────────────────────
	ErrAuthorityUnavailable ErrCode = "AUTHORITY_UNAVAILABLE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrNoActiveSession:
		return "No exam session is active."
	case ErrSessionActive:
		return "Another exam session is already in progress."
	case ErrSessionEnded:
		return "This exam session has ended."
	case ErrSessionStart:
		return "The exam session could not be started."

	// ─── Navigation / timers ───────────────────────────────────────────
	case ErrQuestionLocked:
		return "Time is up for this question."
	case ErrSectionClosed:
		return "Time is up for this section."
	case ErrSectionNoRevisit:
		return "This section is closed and cannot be revisited."
	case ErrUnknownQuestion:
		return "The question does not belong to this exam."
	case ErrUnknownSection:
		return "The section does not belong to this exam."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrAttemptNotActive:
		return "The attempt is no longer in progress."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrNotActiveQuestion:
		return "Switch to this question before running or submitting it."
	case ErrAnswerEmpty:
		return "Write an answer before running or submitting."
	case ErrOptionRequired:
		return "Select at least one option before submitting."
	case ErrLanguageRequired:
		return "Select a language before running code."
	case ErrLanguageNotAllowed:
		return "The selected language is not allowed for this question."

	// ─── Remote authority ──────────────────────────────────────────────
	case ErrAuthorityUnavailable:
		return "The assessment service could not be reached. Please try again."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unexpected error occurred."
	}
}
