package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/config"
	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/model"
	"github.com/codeassess/sessiond/internal/worker"
)

// resumeMarkerTTL bounds how long a crashed session stays resumable.
const resumeMarkerTTL = 24 * time.Hour

// Session bundles one running attempt: its controller, its workspace and
// the question payloads delivered at start.
type Session struct {
	ExamID     uuid.UUID
	AttemptID  uuid.UUID
	Exam       *model.ExamDefinition
	Questions  []model.QuestionDetail
	Controller *Controller
	Workspace  *WorkspaceService

	cancel context.CancelFunc
}

// SessionManager owns the single active session of the daemon. Starting
// an exam while another is active is refused; starting the same exam
// again resumes the running session.
type SessionManager struct {
	cfg   *config.Config
	bus   *events.Bus
	store WorkspaceStore
	rdb   *redis.Client // optional, resume marker only
	log   zerolog.Logger

	mu     sync.Mutex
	active *Session
}

// NewSessionManager creates the manager. rdb may be nil.
func NewSessionManager(cfg *config.Config, bus *events.Bus, store WorkspaceStore, rdb *redis.Client, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		cfg:   cfg,
		bus:   bus,
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "session_manager").Logger(),
	}
}

// Active returns the running session.
func (m *SessionManager) Active() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, ErrNoActiveSession
	}
	return m.active, nil
}

// Start creates or resumes the session for an exam. The token is the
// platform JWT the UI presented; it becomes the authority credential for
// everything this session does.
func (m *SessionManager) Start(ctx context.Context, examID uuid.UUID, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !m.active.Controller.Snapshot().Status.Terminal() {
		if m.active.ExamID == examID {
			return m.active, nil
		}
		return nil, ErrSessionAlreadyActive
	}

	client := authority.NewClient(m.cfg.AuthorityURL, token, m.cfg.AuthorityTimeout, m.log)
	res, err := client.StartSession(ctx, examID)
	if err != nil {
		return nil, err
	}
	if res.Attempt.Status.Terminal() {
		return nil, ErrSessionEnded
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	attemptID := res.Attempt.ID

	reconciler := worker.NewReconcilerWorker(client, examID, m.cfg.FlushInterval, m.log)
	wsSvc := NewWorkspaceService(m.store, attemptID, res.Questions, m.log)

	ctrl := NewController(ControllerDeps{
		Definition:       &ControllerDefinition{Exam: res.Exam, Attempt: res.Attempt},
		Proctor:          NewProctorService(res.Exam.Proctoring, m.log),
		Submission:       NewSubmissionService(client, m.log),
		Workspace:        wsSvc,
		Client:           client,
		Sink:             reconciler,
		Bus:              m.bus,
		Logger:           m.log,
		SyncEverySeconds: int(m.cfg.SyncInterval / time.Second),
		OnTerminal: func(status model.AttemptStatus, reason string) {
			m.teardown(examID, attemptID, wsSvc, cancel)
		},
	})

	hb := worker.NewHeartbeatWorker(client, examID, attemptID, m.cfg.HeartbeatInterval, ctrl.Terminate, m.log)
	reporter := worker.NewProctorReporter(client, m.bus, examID, attemptID, ctrl.Terminate, m.log)

	go ctrl.Run(sessCtx)
	go reconciler.Start(sessCtx)
	go hb.Start(sessCtx)
	go reporter.Start(sessCtx)

	m.markResumable(ctx, examID, attemptID)

	sess := &Session{
		ExamID:     examID,
		AttemptID:  attemptID,
		Exam:       res.Exam,
		Questions:  res.Questions,
		Controller: ctrl,
		Workspace:  wsSvc,
		cancel:     cancel,
	}
	m.active = sess
	m.log.Info().
		Str("exam_id", examID.String()).
		Str("attempt_id", attemptID.String()).
		Msg("Session started")
	return sess, nil
}

// teardown releases a finished session's resources. The Session stays
// registered so the UI can still read the final snapshot.
func (m *SessionManager) teardown(examID, attemptID uuid.UUID, wsSvc *WorkspaceService, cancel context.CancelFunc) {
	cancel()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := wsSvc.Clear(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Workspace clear failed")
	}
	if m.rdb != nil {
		if err := m.rdb.Del(ctx, config.CacheKey.AttemptResumeKey(examID.String())).Err(); err != nil {
			m.log.Debug().Err(err).Msg("Resume marker delete failed")
		}
	}
	m.log.Info().Str("attempt_id", attemptID.String()).Msg("Session torn down")
}

func (m *SessionManager) markResumable(ctx context.Context, examID, attemptID uuid.UUID) {
	if m.rdb == nil {
		return
	}
	key := config.CacheKey.AttemptResumeKey(examID.String())
	if err := m.rdb.Set(ctx, key, attemptID.String(), resumeMarkerTTL).Err(); err != nil {
		m.log.Debug().Err(err).Msg("Resume marker set failed")
	}
}

// Shutdown stops the active session's goroutines. Timer state survives
// on the server; a restarted daemon resumes via Start.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.active.cancel()
	m.active.Controller.Close()
	m.active = nil
}
