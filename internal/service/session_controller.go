package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/model"
)

// DeltaSink receives absolute timer updates for asynchronous delivery to
// the authority. Implementations batch and dedupe; enqueueing never
// blocks the caller.
type DeltaSink interface {
	EnqueueSection(authority.SectionTimerUpdate)
	EnqueueQuestion(authority.QuestionTimerUpdate)
	// Flush kicks an immediate delivery attempt without waiting for it.
	Flush()
	// FlushAndWait delivers everything queued, or gives up when ctx ends.
	FlushAndWait(ctx context.Context) error
}

// Controller owns one attempt's state. A single goroutine runs the clock
// and executes every mutation as a queued command, so timer ticks,
// navigation, sync and termination can never race. Network calls happen
// outside the loop against cloned state; their results re-enter as
// commands that are dropped if the attempt moved on in the meantime.
type Controller struct {
	att    *model.AttemptState
	def    *model.ExamDefinition
	engine *TimerEngine

	proctor *ProctorService
	subs    *SubmissionService
	ws      *WorkspaceService
	client  *authority.Client
	sink    DeltaSink
	bus     *events.Bus
	log     zerolog.Logger

	cmds chan func()
	done chan struct{}
	stop sync.Once

	autoSubmitted bool
	onTerminal    func(status model.AttemptStatus, reason string)
	terminalOnce  sync.Once
}

// ControllerDeps bundles the collaborators of one session.
type ControllerDeps struct {
	Definition *ControllerDefinition
	Proctor    *ProctorService
	Submission *SubmissionService
	Workspace  *WorkspaceService
	Client     *authority.Client
	Sink       DeltaSink
	Bus        *events.Bus
	Logger     zerolog.Logger

	// SyncEverySeconds is the timer persistence cadence from config.
	// Zero uses the engine default.
	SyncEverySeconds int

	// OnTerminal fires exactly once when the attempt reaches a final
	// status, after the lifecycle event is published.
	OnTerminal func(status model.AttemptStatus, reason string)
}

// ControllerDefinition pairs the exam definition with the starting
// attempt state.
type ControllerDefinition struct {
	Exam    *model.ExamDefinition
	Attempt *model.AttemptState
}

// NewController builds the controller and initializes timers. Call Run to
// start the clock.
func NewController(deps ControllerDeps) *Controller {
	c := &Controller{
		att:        deps.Definition.Attempt,
		def:        deps.Definition.Exam,
		engine:     NewTimerEngine(deps.Definition.Exam, deps.SyncEverySeconds, deps.Logger),
		proctor:    deps.Proctor,
		subs:       deps.Submission,
		ws:         deps.Workspace,
		client:     deps.Client,
		sink:       deps.Sink,
		bus:        deps.Bus,
		log:        deps.Logger.With().Str("component", "session_controller").Logger(),
		cmds:       make(chan func(), 32),
		done:       make(chan struct{}),
		onTerminal: deps.OnTerminal,
	}
	c.engine.InitTimers(c.att, time.Now())
	if c.att.Status == model.AttemptNotStarted {
		c.att.Status = model.AttemptInProgress
	}
	if c.att.Answers == nil {
		c.att.Answers = make(map[uuid.UUID]model.SubmissionRecord)
	}
	return c
}

// Run drives the 1 Hz clock until ctx ends or Close is called.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case fn := <-c.cmds:
			fn()
		case now := <-ticker.C:
			c.tick(now)
		}
	}
}

// Close stops the loop. Pending commands execute inline afterwards.
func (c *Controller) Close() {
	c.stop.Do(func() { close(c.done) })
}

// do runs fn inside the loop and waits for it. After Close the loop is
// gone and there is no concurrency left, so fn runs inline.
func (c *Controller) do(fn func()) {
	ran := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(ran) }:
		<-ran
	case <-c.done:
		fn()
	}
}

func (c *Controller) tick(now time.Time) {
	fx := c.engine.Tick(c.att, now)
	if c.att.Status != model.AttemptInProgress {
		return
	}

	for _, d := range fx.SectionDeltas {
		c.sink.EnqueueSection(d)
	}
	for _, d := range fx.QuestionDeltas {
		c.sink.EnqueueQuestion(d)
	}

	crossed := fx.QuestionExpired != nil || fx.SectionExpired != nil
	if crossed {
		// Zero crossings are persisted immediately, not on cadence.
		c.sink.Flush()
	}

	if fx.QuestionExpired != nil {
		c.bus.PublishAdvisory(model.Advisory{
			Code:    "question_locked",
			Message: "Time is up for this question.",
			At:      now,
		})
	}
	if fx.SectionAdvanced {
		c.bus.PublishAdvisory(model.Advisory{
			Code:    "section_advanced",
			Message: "Section time is up. Moving to the next section.",
			At:      now,
		})
	}

	if fx.TotalExpired {
		c.expire(now)
		return
	}

	c.bus.PublishSnapshot(c.buildSnapshot(now))
}

// expire handles attempt-wide time running out, exactly once.
func (c *Controller) expire(now time.Time) {
	if c.autoSubmitted {
		return
	}
	c.autoSubmitted = true

	reason := "time expired"
	if c.def.Proctoring.AutoSubmitOnEnd {
		c.att.Status = model.AttemptAutoSubmitted
		examID, attemptID := c.att.ExamID, c.att.ID
		// Best effort: the authority enforces the deadline on its own.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = c.sink.FlushAndWait(ctx)
			if err := c.subs.AutoSubmitExam(ctx, examID, attemptID); err != nil {
				c.log.Warn().Err(err).Msg("Auto-submit delivery failed")
			}
		}()
	} else {
		c.att.Status = model.AttemptExpired
	}

	c.log.Info().Str("status", string(c.att.Status)).Msg("Attempt time expired")
	c.finishLocked(reason, false, now)
}

// finishLocked publishes the terminal transition. Must run inside the loop.
func (c *Controller) finishLocked(reason string, showDialog bool, now time.Time) {
	status := c.att.Status
	c.bus.PublishSnapshot(c.buildSnapshot(now))
	c.bus.PublishLifecycle(events.LifecycleEvent{
		AttemptID:  c.att.ID.String(),
		Status:     status,
		Reason:     reason,
		ShowDialog: showDialog,
	})
	c.terminalOnce.Do(func() {
		if c.onTerminal != nil {
			go c.onTerminal(status, reason)
		}
	})
}

func (c *Controller) buildSnapshot(now time.Time) *model.Snapshot {
	att := c.att.Clone()

	// Inactive timers hold their frozen value internally, but no displayed
	// countdown may exceed the attempt's remaining time.
	total := c.engine.TotalRemaining(att, now)
	clampTimers(att.SectionTimers, total)
	clampTimers(att.QuestionTimers, total)

	return &model.Snapshot{
		AttemptID:             att.ID,
		ExamID:                att.ExamID,
		Status:                att.Status,
		TotalRemainingSeconds: total,
		EndsAt:                att.EndsAt,
		CurrentSectionID:      att.CurrentSectionID,
		CurrentQuestionID:     att.CurrentQuestionID,
		SectionTimers:         att.SectionTimers,
		QuestionTimers:        att.QuestionTimers,
		LockedQuestions:       c.engine.LockedQuestions(att),
		ClosedSections:        c.engine.ClosedSections(att),
		Answers:               att.Answers,
		TabSwitchCount:        c.proctor.TabSwitchCount(),
		ConfirmLeave:          att.Status == model.AttemptInProgress,
		TakenAt:               now,
	}
}

// Snapshot returns a consistent view of the session.
func (c *Controller) Snapshot() *model.Snapshot {
	var snap *model.Snapshot
	c.do(func() { snap = c.buildSnapshot(time.Now()) })
	return snap
}

// Navigate moves the student to another question.
func (c *Controller) Navigate(questionID uuid.UUID) (*model.Snapshot, error) {
	var snap *model.Snapshot
	var err error
	c.do(func() {
		var upd *authority.SectionTimerUpdate
		upd, err = c.engine.Navigate(c.att, questionID)
		if err != nil {
			return
		}
		c.sink.EnqueueSection(*upd)
		snap = c.buildSnapshot(time.Now())
	})
	return snap, err
}

// HandleSignal classifies one environment signal, publishes whatever it
// produced and returns the shim directives.
func (c *Controller) HandleSignal(sig model.EnvironmentSignal) SignalOutcome {
	var out SignalOutcome
	c.do(func() {
		if c.att.Status.Terminal() {
			return
		}
		out = c.proctor.Classify(sig)
		if out.Event != nil {
			c.bus.PublishProctoring(*out.Event)
		}
		if out.Advisory != nil {
			c.bus.PublishAdvisory(*out.Advisory)
		}
	})
	if out.Resync {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := c.Resync(ctx); err != nil {
				c.log.Warn().Err(err).Msg("Post-reconnect resync failed")
			}
		}()
	}
	return out
}

// Resync flushes pending deltas best effort, fetches the authoritative
// attempt state and adopts it wholesale. On divergence the server wins.
func (c *Controller) Resync(ctx context.Context) error {
	if err := c.sink.FlushAndWait(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Pre-resync flush incomplete")
	}

	remote, err := c.client.GetAttempt(ctx, c.examID())
	if err != nil {
		return err
	}

	c.do(func() {
		if remote.ID != c.att.ID || c.att.Status.Terminal() {
			return
		}
		now := time.Now()
		c.att.Status = remote.Status
		c.att.EndsAt = remote.EndsAt
		c.att.SectionTimers = remote.SectionTimers
		c.att.QuestionTimers = remote.QuestionTimers
		if remote.CurrentSectionID != uuid.Nil {
			c.att.CurrentSectionID = remote.CurrentSectionID
		}
		if remote.CurrentQuestionID != uuid.Nil {
			c.att.CurrentQuestionID = remote.CurrentQuestionID
		}
		if remote.Answers != nil {
			c.att.Answers = remote.Answers
		}
		c.engine.InitTimers(c.att, now)

		if c.att.Status.Terminal() {
			c.finishLocked("closed by server", false, now)
			return
		}
		c.bus.PublishSnapshot(c.buildSnapshot(now))
	})
	return nil
}

func (c *Controller) examID() uuid.UUID {
	var id uuid.UUID
	c.do(func() { id = c.att.ExamID })
	return id
}

// prepare validates and captures everything a run or submit needs, then
// releases the loop so the clock keeps ticking during the network call.
func (c *Controller) prepare(ctx context.Context, questionID uuid.UUID) (*model.AttemptState, model.QuestionDetail, model.AnswerPayload, error) {
	var att *model.AttemptState
	var capErr error
	c.do(func() {
		if c.att.Status.Terminal() {
			capErr = ErrSessionEnded
			return
		}
		att = c.att.Clone()
	})
	if capErr != nil {
		return nil, model.QuestionDetail{}, model.AnswerPayload{}, capErr
	}

	q, ok := c.ws.Question(questionID)
	if !ok {
		return nil, model.QuestionDetail{}, model.AnswerPayload{}, ErrUnknownQuestion
	}
	payload, err := c.ws.Payload(ctx, questionID)
	if err != nil {
		return nil, model.QuestionDetail{}, model.AnswerPayload{}, err
	}
	return att, q, payload, nil
}

// applyResult folds a judged outcome back into the attempt unless the
// attempt ended while the call was in flight.
func (c *Controller) applyResult(questionID uuid.UUID, payload model.AnswerPayload, res *authority.RunResult, final bool) {
	c.do(func() {
		if c.att.Status.Terminal() {
			return
		}
		now := time.Now()
		rec := c.att.Answers[questionID]
		rec.QuestionID = questionID
		rec.Answer = payload
		rec.PassedCount = res.PassedCount
		rec.FailedCount = res.FailedCount
		rec.TestResults = res.TestResults
		if final {
			rec.Score = res.Score
			rec.Correct = res.Correct
			rec.SubmittedAt = &now
		} else {
			rec.LastRunAt = &now
		}
		c.att.Answers[questionID] = rec
		c.bus.PublishSnapshot(c.buildSnapshot(now))
	})
}

// RunCode executes the saved draft against the question's sample tests.
func (c *Controller) RunCode(ctx context.Context, questionID uuid.UUID) (*authority.RunResult, error) {
	att, q, payload, err := c.prepare(ctx, questionID)
	if err != nil {
		return nil, err
	}
	res, err := c.subs.Run(ctx, att, q, payload)
	if err != nil {
		return nil, err
	}
	c.applyResult(questionID, payload, res, false)
	return res, nil
}

// RunWithCustomInput executes the saved draft against custom input.
func (c *Controller) RunWithCustomInput(ctx context.Context, questionID uuid.UUID, input string) (*authority.RunResult, error) {
	att, q, payload, err := c.prepare(ctx, questionID)
	if err != nil {
		return nil, err
	}
	res, err := c.subs.RunWithCustomInput(ctx, att, q, payload, input)
	if err != nil {
		return nil, err
	}
	c.applyResult(questionID, payload, res, false)
	return res, nil
}

// SubmitAnswer grades and records the final answer for one question,
// then resyncs so any server-side score or flag changes land locally.
func (c *Controller) SubmitAnswer(ctx context.Context, questionID uuid.UUID) (*authority.RunResult, error) {
	att, q, payload, err := c.prepare(ctx, questionID)
	if err != nil {
		return nil, err
	}
	res, err := c.subs.Submit(ctx, att, q, payload)
	if err != nil {
		return nil, err
	}
	c.applyResult(questionID, payload, res, true)

	// The answer is in; a failed resync only delays the refreshed view.
	if err := c.Resync(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Post-submit resync failed")
	}
	return res, nil
}

// SubmitExam finalizes the attempt at the student's request. A second
// call after success is a no-op; a failed call changes nothing locally,
// so the student can retry.
func (c *Controller) SubmitExam(ctx context.Context) error {
	var examID, attemptID uuid.UUID
	var preErr error
	alreadyDone := false
	c.do(func() {
		switch c.att.Status {
		case model.AttemptSubmitted, model.AttemptAutoSubmitted:
			alreadyDone = true
		case model.AttemptTerminated, model.AttemptExpired:
			preErr = ErrSessionEnded
		default:
			examID, attemptID = c.att.ExamID, c.att.ID
		}
	})
	if alreadyDone {
		return nil
	}
	if preErr != nil {
		return preErr
	}

	if err := c.sink.FlushAndWait(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Pre-submit flush incomplete")
	}
	if err := c.subs.SubmitExam(ctx, examID, attemptID); err != nil {
		return err
	}

	c.do(func() {
		if c.att.Status.Terminal() {
			return
		}
		c.att.Status = model.AttemptSubmitted
		c.log.Info().Msg("Exam submitted")
		c.finishLocked("submitted", true, time.Now())
	})
	return nil
}

// Terminate forcibly ends the attempt on the authority's verdict. Always
// wins; no local state can veto it.
func (c *Controller) Terminate(reason string) {
	c.do(func() {
		if c.att.Status.Terminal() {
			return
		}
		c.att.Status = model.AttemptTerminated
		c.log.Warn().Str("reason", reason).Msg("Attempt terminated by authority")
		c.finishLocked(reason, false, time.Now())
	})
}
