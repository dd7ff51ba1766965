package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/model"
)

// defaultSyncEveryTicks is the steady-state cadence for persisting a
// running timer when SYNC_INTERVAL_SECONDS is unset: one absolute update
// every 15 ticks, plus an immediate update on every zero crossing.
const defaultSyncEveryTicks = 15

// TickEffects is everything one clock tick produced: the new total, the
// absolute timer updates now due for persistence, and the transitions the
// controller must act on.
type TickEffects struct {
	TotalRemaining int

	SectionDeltas  []authority.SectionTimerUpdate
	QuestionDeltas []authority.QuestionTimerUpdate

	// QuestionExpired is set when the active question's timer crossed
	// zero this tick. The question locks in place; the student keeps the
	// navigator and must move on themselves.
	QuestionExpired *uuid.UUID

	// SectionExpired is set when the active section's timer crossed zero.
	SectionExpired *uuid.UUID

	// SectionAdvanced reports that the engine moved the student to the
	// next open section after an expiry.
	SectionAdvanced bool
	NewSectionID    uuid.UUID
	NewQuestionID   uuid.UUID

	// TotalExpired reports that the whole attempt is out of time, either
	// because endsAt passed or because no open section remains.
	TotalExpired bool
}

// TimerEngine drives the three nested countdowns of one attempt: the
// total (derived from endsAt, never stored), the active section and the
// active question. It is not safe for concurrent use; the session
// controller serializes all calls.
type TimerEngine struct {
	def       *model.ExamDefinition
	log       zerolog.Logger
	syncEvery int

	// tickCounts drives the per-timer persistence cadence.
	tickCounts map[uuid.UUID]int

	// closedSections holds sections the student can no longer enter:
	// expired ones and no-revisit ones the student navigated out of.
	closedSections map[uuid.UUID]bool
}

// NewTimerEngine creates an engine bound to one exam definition.
// syncEverySeconds sets the persistence cadence in ticked seconds per
// timer; zero or negative falls back to the default.
func NewTimerEngine(def *model.ExamDefinition, syncEverySeconds int, log zerolog.Logger) *TimerEngine {
	if syncEverySeconds <= 0 {
		syncEverySeconds = defaultSyncEveryTicks
	}
	return &TimerEngine{
		def:            def,
		log:            log.With().Str("component", "timer_engine").Logger(),
		syncEvery:      syncEverySeconds,
		tickCounts:     make(map[uuid.UUID]int),
		closedSections: make(map[uuid.UUID]bool),
	}
}

// TotalRemaining derives the attempt-wide countdown from the absolute
// deadline. It is recomputed on every call rather than decremented, so a
// suspended or throttled clock can never stretch the exam.
func (e *TimerEngine) TotalRemaining(att *model.AttemptState, now time.Time) int {
	rem := int(att.EndsAt.Sub(now).Seconds())
	if rem < 0 {
		return 0
	}
	return rem
}

// InitTimers fills in missing timer entries from the exam definition and
// reconciles the engine's section bookkeeping with the attempt. Called at
// session start and again after every full resync.
func (e *TimerEngine) InitTimers(att *model.AttemptState, now time.Time) {
	if att.SectionTimers == nil {
		att.SectionTimers = make(map[uuid.UUID]model.TimerState)
	}
	if att.QuestionTimers == nil {
		att.QuestionTimers = make(map[uuid.UUID]model.TimerState)
	}
	for _, s := range e.def.Sections {
		if _, ok := att.SectionTimers[s.ID]; !ok {
			att.SectionTimers[s.ID] = model.NewTimerState(s.DurationSeconds)
		}
	}
	for _, q := range e.def.Questions {
		if _, ok := att.QuestionTimers[q.ID]; !ok {
			att.QuestionTimers[q.ID] = model.NewTimerState(q.TimeLimitSeconds)
		}
	}

	// Child timers never show more time than the attempt has left.
	total := e.TotalRemaining(att, now)
	clampTimers(att.SectionTimers, total)
	clampTimers(att.QuestionTimers, total)

	e.tickCounts = make(map[uuid.UUID]int)
	e.closedSections = make(map[uuid.UUID]bool)
	for id, t := range att.SectionTimers {
		if t.Exhausted() {
			e.closedSections[id] = true
		}
	}

	if att.CurrentSectionID == uuid.Nil || att.CurrentQuestionID == uuid.Nil {
		if sec, q, ok := e.nextActive(att); ok {
			att.CurrentSectionID = sec
			att.CurrentQuestionID = q
		}
	}
}

func clampTimers(timers map[uuid.UUID]model.TimerState, total int) {
	for id, t := range timers {
		if t.RemainingSeconds != nil && *t.RemainingSeconds > total {
			v := total
			t.RemainingSeconds = &v
			timers[id] = t
		}
	}
}

// Tick advances the active section and question timers by one second and
// reports everything the controller must do about it. Non-active timers
// are frozen; time only passes where the student is.
func (e *TimerEngine) Tick(att *model.AttemptState, now time.Time) TickEffects {
	var fx TickEffects
	if att.Status != model.AttemptInProgress {
		return fx
	}

	total := e.TotalRemaining(att, now)
	fx.TotalRemaining = total

	secID := att.CurrentSectionID
	if delta, crossed := e.tickTimer(att.SectionTimers, secID, total); delta {
		st := att.SectionTimers[secID]
		fx.SectionDeltas = append(fx.SectionDeltas, authority.SectionTimerUpdate{
			AttemptID:         att.ID,
			SectionID:         secID,
			RemainingSeconds:  st.RemainingSeconds,
			Completed:         st.Completed,
			CurrentQuestionID: &att.CurrentQuestionID,
		})
		if crossed {
			id := secID
			fx.SectionExpired = &id
		}
	}

	qID := att.CurrentQuestionID
	if delta, crossed := e.tickTimer(att.QuestionTimers, qID, total); delta {
		qt := att.QuestionTimers[qID]
		fx.QuestionDeltas = append(fx.QuestionDeltas, authority.QuestionTimerUpdate{
			AttemptID:        att.ID,
			QuestionID:       qID,
			RemainingSeconds: qt.RemainingSeconds,
			Completed:        qt.Completed,
		})
		if crossed {
			id := qID
			fx.QuestionExpired = &id
		}
	}

	if total <= 0 {
		fx.TotalExpired = true
		return fx
	}

	if fx.SectionExpired != nil {
		e.closedSections[secID] = true
		if sec, q, ok := e.nextActive(att); ok {
			att.CurrentSectionID = sec
			att.CurrentQuestionID = q
			fx.SectionAdvanced = true
			fx.NewSectionID = sec
			fx.NewQuestionID = q
			st := att.SectionTimers[sec]
			fx.SectionDeltas = append(fx.SectionDeltas, authority.SectionTimerUpdate{
				AttemptID:         att.ID,
				SectionID:         sec,
				RemainingSeconds:  st.RemainingSeconds,
				Completed:         st.Completed,
				CurrentQuestionID: &q,
			})
		} else {
			fx.TotalExpired = true
		}
	}

	return fx
}

// tickTimer decrements one bounded, running timer, clamping to the total.
// It reports whether an absolute update is due and whether the timer
// crossed zero this tick.
func (e *TimerEngine) tickTimer(timers map[uuid.UUID]model.TimerState, id uuid.UUID, total int) (delta, crossed bool) {
	t, ok := timers[id]
	if !ok || t.Unbounded() || t.Completed {
		return false, false
	}

	r := *t.RemainingSeconds - 1
	if r > total {
		r = total
	}
	if r < 0 {
		r = 0
	}
	t.RemainingSeconds = &r
	if r == 0 {
		t.Completed = true
		crossed = true
	}
	timers[id] = t

	e.tickCounts[id]++
	delta = crossed || e.tickCounts[id]%e.syncEvery == 0
	return delta, crossed
}

// nextActive finds the first section, in definition order, that is still
// open, and within it the first question whose timer is not exhausted.
func (e *TimerEngine) nextActive(att *model.AttemptState) (sectionID, questionID uuid.UUID, ok bool) {
	for _, s := range e.def.Sections {
		if e.closedSections[s.ID] || att.SectionTimers[s.ID].Exhausted() {
			continue
		}
		for _, q := range e.def.QuestionsInSection(s.ID) {
			if att.QuestionTimers[q.ID].Exhausted() {
				continue
			}
			return s.ID, q.ID, true
		}
	}
	return uuid.Nil, uuid.Nil, false
}

// CanSelect validates a navigation target without applying it.
func (e *TimerEngine) CanSelect(att *model.AttemptState, questionID uuid.UUID) error {
	q := e.def.QuestionByID(questionID)
	if q == nil {
		return ErrUnknownQuestion
	}
	if att.Status != model.AttemptInProgress {
		return ErrAttemptNotActive
	}
	if att.QuestionTimers[questionID].Exhausted() {
		return ErrQuestionLocked
	}
	if att.SectionTimers[q.SectionID].Exhausted() {
		return ErrSectionClosed
	}
	if q.SectionID != att.CurrentSectionID && e.closedSections[q.SectionID] {
		return ErrSectionNoRevisit
	}
	return nil
}

// Navigate moves the student to a question. Leaving a no-revisit section
// seals it behind them. The returned update persists the new position.
func (e *TimerEngine) Navigate(att *model.AttemptState, questionID uuid.UUID) (*authority.SectionTimerUpdate, error) {
	if err := e.CanSelect(att, questionID); err != nil {
		return nil, err
	}
	q := e.def.QuestionByID(questionID)

	if q.SectionID != att.CurrentSectionID {
		if cur := e.def.SectionByID(att.CurrentSectionID); cur != nil && !cur.AllowRevisit {
			e.closedSections[cur.ID] = true
		}
	}

	att.CurrentSectionID = q.SectionID
	att.CurrentQuestionID = questionID

	st := att.SectionTimers[q.SectionID]
	return &authority.SectionTimerUpdate{
		AttemptID:         att.ID,
		SectionID:         q.SectionID,
		RemainingSeconds:  st.RemainingSeconds,
		Completed:         st.Completed,
		CurrentQuestionID: &att.CurrentQuestionID,
	}, nil
}

// LockedQuestions lists questions the student can no longer open:
// exhausted ones and everything inside a closed section.
func (e *TimerEngine) LockedQuestions(att *model.AttemptState) []uuid.UUID {
	var out []uuid.UUID
	for _, q := range e.def.Questions {
		if att.QuestionTimers[q.ID].Exhausted() || e.closedSections[q.SectionID] || att.SectionTimers[q.SectionID].Exhausted() {
			out = append(out, q.ID)
		}
	}
	return out
}

// ClosedSections lists sections the student can no longer enter.
func (e *TimerEngine) ClosedSections(att *model.AttemptState) []uuid.UUID {
	var out []uuid.UUID
	for _, s := range e.def.Sections {
		if e.closedSections[s.ID] || att.SectionTimers[s.ID].Exhausted() {
			out = append(out, s.ID)
		}
	}
	return out
}
