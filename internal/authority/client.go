package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/model"
)

// ErrUnavailable wraps transport-level failures. Callers surface it as a
// transient error; nothing in the controller retries automatically.
var ErrUnavailable = errors.New("authority unreachable")

// RemoteError is a structured error returned by the authority itself.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("authority error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the remote assessment authority on behalf of one
// session. The bearer token is the platform JWT presented by the UI at
// session start.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a session-scoped authority client.
func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "authority_client").Logger(),
	}
}

// envelope mirrors the platform's standard response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 || env.Error != nil {
		re := &RemoteError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			re.Code = env.Error.Code
			re.Message = env.Error.Message
		}
		return re
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

// StartSession creates or resumes the student's attempt for the exam and
// returns the definition, attempt state and question payloads.
func (c *Client) StartSession(ctx context.Context, examID uuid.UUID) (*StartSessionResult, error) {
	var out StartSessionResult
	path := fmt.Sprintf("/exams/%s/session", examID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAttempt fetches the authoritative attempt state for a full resync.
func (c *Client) GetAttempt(ctx context.Context, examID uuid.UUID) (*model.AttemptState, error) {
	var out model.AttemptState
	path := fmt.Sprintf("/exams/%s/attempt", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSectionTimer persists one absolute section timer value.
func (c *Client) UpdateSectionTimer(ctx context.Context, examID uuid.UUID, upd SectionTimerUpdate) error {
	path := fmt.Sprintf("/exams/%s/timers/section", examID)
	return c.do(ctx, http.MethodPut, path, upd, nil)
}

// UpdateQuestionTimer persists one absolute question timer value.
func (c *Client) UpdateQuestionTimer(ctx context.Context, examID uuid.UUID, upd QuestionTimerUpdate) error {
	path := fmt.Sprintf("/exams/%s/timers/question", examID)
	return c.do(ctx, http.MethodPut, path, upd, nil)
}

// LogProctoringEvent reports a classified event and returns the
// authority's verdict.
func (c *Client) LogProctoringEvent(ctx context.Context, examID uuid.UUID, report ProctoringReport) (*ProctoringVerdict, error) {
	var out ProctoringVerdict
	path := fmt.Sprintf("/exams/%s/proctoring", examID)
	if err := c.do(ctx, http.MethodPost, path, report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunCode executes the answer against the question's sample tests.
func (c *Client) RunCode(ctx context.Context, req RunRequest) (*RunResult, error) {
	var out RunResult
	path := fmt.Sprintf("/questions/%s/run", req.QuestionID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunCodeWithCustomInput executes the answer against student-provided input.
func (c *Client) RunCodeWithCustomInput(ctx context.Context, req RunRequest) (*RunResult, error) {
	var out RunResult
	path := fmt.Sprintf("/questions/%s/run-custom", req.QuestionID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer grades and records one question's answer.
func (c *Client) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*RunResult, error) {
	var out RunResult
	path := fmt.Sprintf("/questions/%s/submit", req.QuestionID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitExam finalizes the attempt on the student's request.
func (c *Client) SubmitExam(ctx context.Context, examID, attemptID uuid.UUID) error {
	path := fmt.Sprintf("/exams/%s/attempts/%s/submit", examID, attemptID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// AutoSubmitExam finalizes the attempt because total time expired.
func (c *Client) AutoSubmitExam(ctx context.Context, examID, attemptID uuid.UUID) error {
	path := fmt.Sprintf("/exams/%s/attempts/%s/auto-submit", examID, attemptID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
