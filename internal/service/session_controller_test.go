package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/model"
)

// fakeSink is an in-memory DeltaSink.
type fakeSink struct {
	mu        sync.Mutex
	sections  []authority.SectionTimerUpdate
	questions []authority.QuestionTimerUpdate
	flushes   int
}

func (s *fakeSink) EnqueueSection(u authority.SectionTimerUpdate) {
	s.mu.Lock()
	s.sections = append(s.sections, u)
	s.mu.Unlock()
}

func (s *fakeSink) EnqueueQuestion(u authority.QuestionTimerUpdate) {
	s.mu.Lock()
	s.questions = append(s.questions, u)
	s.mu.Unlock()
}

func (s *fakeSink) Flush() {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
}

func (s *fakeSink) FlushAndWait(context.Context) error { return nil }

func (s *fakeSink) sectionUpdates() []authority.SectionTimerUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]authority.SectionTimerUpdate(nil), s.sections...)
}

// pathCounter records which authority paths were hit.
type pathCounter struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathCounter) add(path string) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()
}

func (p *pathCounter) count(suffix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, path := range p.paths {
		if strings.HasSuffix(path, suffix) {
			n++
		}
	}
	return n
}

type controllerFixture struct {
	ctrl     *Controller
	sink     *fakeSink
	bus      *events.Bus
	paths    *pathCounter
	att      *model.AttemptState
	def      *model.ExamDefinition
	question uuid.UUID
	terminal atomic.Int64
	cancel   context.CancelFunc
}

func newControllerFixture(t *testing.T, totalSeconds int, autoSubmit bool) *controllerFixture {
	t.Helper()

	def, _, questions := twoSectionExam()
	def.Proctoring = model.ProctoringPolicy{
		FullscreenRequired: true,
		TabSwitchLimit:     3,
		DisableCopyPaste:   true,
		AutoSubmitOnEnd:    autoSubmit,
	}
	att := newAttempt(def, totalSeconds)

	paths := &pathCounter{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.add(r.URL.Path)
		w.Write([]byte(`{"data":{"passed_count":1,"failed_count":0,"score":100,"correct":true}}`))
	}))
	t.Cleanup(srv.Close)

	client := authority.NewClient(srv.URL, "tok", 5*time.Second, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	t.Cleanup(func() { bus.Close() })

	detail := codingQuestion()
	detail.ID = questions[0]
	detail.SectionID = att.CurrentSectionID

	fx := &controllerFixture{
		sink:     &fakeSink{},
		bus:      bus,
		paths:    paths,
		att:      att,
		def:      def,
		question: questions[0],
	}

	fx.ctrl = NewController(ControllerDeps{
		Definition: &ControllerDefinition{Exam: def, Attempt: att},
		Proctor:    NewProctorService(def.Proctoring, zerolog.Nop()),
		Submission: NewSubmissionService(client, zerolog.Nop()),
		Workspace:  NewWorkspaceService(NewMemoryWorkspaceStore(), att.ID, []model.QuestionDetail{detail}, zerolog.Nop()),
		Client:     client,
		Sink:       fx.sink,
		Bus:        bus,
		Logger:     zerolog.Nop(),
		OnTerminal: func(model.AttemptStatus, string) { fx.terminal.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	fx.cancel = cancel
	go fx.ctrl.Run(ctx)
	t.Cleanup(cancel)
	return fx
}

func TestSnapshotReflectsInitialState(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, model.AttemptInProgress, snap.Status)
	assert.Equal(t, fx.question, snap.CurrentQuestionID)
	assert.InDelta(t, 1200, snap.TotalRemainingSeconds, 3)
	assert.True(t, snap.ConfirmLeave)
}

func TestSnapshotClampsTimersToTotal(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	// Shrink the deadline below the frozen section value; the view must
	// never show a child countdown above the attempt's remaining time.
	fx.ctrl.do(func() { fx.att.EndsAt = time.Now().Add(45 * time.Second) })

	snap := fx.ctrl.Snapshot()
	for id, st := range snap.SectionTimers {
		if st.RemainingSeconds != nil {
			assert.LessOrEqual(t, *st.RemainingSeconds, snap.TotalRemainingSeconds, id.String())
		}
	}
	for id, qt := range snap.QuestionTimers {
		if qt.RemainingSeconds != nil {
			assert.LessOrEqual(t, *qt.RemainingSeconds, snap.TotalRemainingSeconds, id.String())
		}
	}
}

func TestNavigateEnqueuesPositionUpdate(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)
	target := fx.def.Questions[1].ID

	snap, err := fx.ctrl.Navigate(target)
	require.NoError(t, err)
	assert.Equal(t, target, snap.CurrentQuestionID)

	updates := fx.sink.sectionUpdates()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	require.NotNil(t, last.CurrentQuestionID)
	assert.Equal(t, target, *last.CurrentQuestionID)
}

func TestTerminateIsIrreversible(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	fx.ctrl.Terminate("tab switch limit exceeded")

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, model.AttemptTerminated, snap.Status)
	assert.False(t, snap.ConfirmLeave)

	// Nothing can revive a terminated attempt.
	err := fx.ctrl.SubmitExam(context.Background())
	assert.ErrorIs(t, err, ErrSessionEnded)
	_, err = fx.ctrl.Navigate(fx.question)
	assert.ErrorIs(t, err, ErrAttemptNotActive)

	fx.ctrl.Terminate("again")
	assert.Eventually(t, func() bool { return fx.terminal.Load() == 1 }, time.Second, 10*time.Millisecond,
		"teardown fires exactly once")
}

func TestSubmitExamIsIdempotent(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)
	ctx := context.Background()

	require.NoError(t, fx.ctrl.SubmitExam(ctx))
	assert.Equal(t, model.AttemptSubmitted, fx.ctrl.Snapshot().Status)

	// Repeating the submit is a local no-op: no second network call.
	require.NoError(t, fx.ctrl.SubmitExam(ctx))
	assert.Equal(t, 1, fx.paths.count("/submit"))
}

func TestHandleSignalRecordsTabSwitch(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := fx.bus.Subscribe(ctx, events.TopicProctoring)
	require.NoError(t, err)

	out := fx.ctrl.HandleSignal(model.EnvironmentSignal{Type: model.SignalVisibilityHidden, At: time.Now()})
	require.NotNil(t, out.Event)

	select {
	case msg := <-msgs:
		var ev model.ProctoringEvent
		require.NoError(t, events.Decode(msg, &ev))
		assert.Equal(t, model.EventTabSwitch, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected proctoring event on the bus")
	}

	assert.Equal(t, 1, fx.ctrl.Snapshot().TabSwitchCount)
}

func TestSignalsIgnoredAfterTermination(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)
	fx.ctrl.Terminate("closed")

	out := fx.ctrl.HandleSignal(model.EnvironmentSignal{Type: model.SignalVisibilityHidden, At: time.Now()})
	assert.Nil(t, out.Event)
	assert.Zero(t, fx.ctrl.Snapshot().TabSwitchCount)
}

func TestRunFoldsResultIntoAnswers(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	res, err := fx.ctrl.RunCode(context.Background(), fx.question)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PassedCount)

	snap := fx.ctrl.Snapshot()
	rec, ok := snap.Answers[fx.question]
	require.True(t, ok)
	assert.NotNil(t, rec.LastRunAt)
	assert.Nil(t, rec.SubmittedAt, "runs never touch graded state")
}

func TestSubmitAnswerMarksFinal(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	_, err := fx.ctrl.SubmitAnswer(context.Background(), fx.question)
	require.NoError(t, err)

	rec := fx.ctrl.Snapshot().Answers[fx.question]
	require.NotNil(t, rec.SubmittedAt)
	assert.Equal(t, 100.0, rec.Score)

	// The answer is final now; a second submit is refused locally.
	_, err = fx.ctrl.SubmitAnswer(context.Background(), fx.question)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestExpiryAutoSubmitsExactlyOnce(t *testing.T) {
	fx := newControllerFixture(t, 1200, true)

	// Force the deadline into the past; the next ticks notice.
	fx.ctrl.do(func() { fx.att.EndsAt = time.Now().Add(-time.Second) })

	assert.Eventually(t, func() bool {
		return fx.ctrl.Snapshot().Status == model.AttemptAutoSubmitted
	}, 4*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return fx.paths.count("/auto-submit") == 1
	}, 4*time.Second, 50*time.Millisecond)

	// Further ticks must not submit again.
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 1, fx.paths.count("/auto-submit"))
	assert.Eventually(t, func() bool { return fx.terminal.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestExpiryWithoutAutoSubmitExpires(t *testing.T) {
	fx := newControllerFixture(t, 1200, false)

	fx.ctrl.do(func() { fx.att.EndsAt = time.Now().Add(-time.Second) })

	assert.Eventually(t, func() bool {
		return fx.ctrl.Snapshot().Status == model.AttemptExpired
	}, 4*time.Second, 50*time.Millisecond)
	assert.Zero(t, fx.paths.count("/auto-submit"))
}
