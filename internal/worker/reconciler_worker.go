package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
)

// ReconcilerWorker batches absolute timer updates and delivers them to
// the authority. Updates dedupe by timer ID with the latest value
// winning, so a slow network collapses a burst of ticks into one write
// and replays are harmless.
type ReconcilerWorker struct {
	client   *authority.Client
	examID   uuid.UUID
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	sections  map[uuid.UUID]authority.SectionTimerUpdate
	questions map[uuid.UUID]authority.QuestionTimerUpdate

	kick chan struct{}
}

// NewReconcilerWorker creates a reconciler for one session.
func NewReconcilerWorker(client *authority.Client, examID uuid.UUID, interval time.Duration, log zerolog.Logger) *ReconcilerWorker {
	return &ReconcilerWorker{
		client:    client,
		examID:    examID,
		interval:  interval,
		log:       log.With().Str("component", "reconciler_worker").Logger(),
		sections:  make(map[uuid.UUID]authority.SectionTimerUpdate),
		questions: make(map[uuid.UUID]authority.QuestionTimerUpdate),
		kick:      make(chan struct{}, 1),
	}
}

// EnqueueSection queues one section timer update, replacing any queued
// update for the same section.
func (w *ReconcilerWorker) EnqueueSection(upd authority.SectionTimerUpdate) {
	w.mu.Lock()
	w.sections[upd.SectionID] = upd
	w.mu.Unlock()
}

// EnqueueQuestion queues one question timer update, replacing any queued
// update for the same question.
func (w *ReconcilerWorker) EnqueueQuestion(upd authority.QuestionTimerUpdate) {
	w.mu.Lock()
	w.questions[upd.QuestionID] = upd
	w.mu.Unlock()
}

// Flush requests an immediate delivery attempt without waiting for it.
func (w *ReconcilerWorker) Flush() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// FlushAndWait delivers everything queued before returning. Used ahead
// of submit and resync so the server sees our latest timers first.
func (w *ReconcilerWorker) FlushAndWait(ctx context.Context) error {
	return w.flushOnce(ctx)
}

// Start begins the delivery loop. Call in a goroutine.
func (w *ReconcilerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining updates before exit.
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.flushOnce(drainCtx); err != nil {
				w.log.Warn().Err(err).Msg("Drain incomplete")
			}
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		case <-w.kick:
			w.flushLogged(ctx)
		case <-ticker.C:
			w.flushLogged(ctx)
		}
	}
}

func (w *ReconcilerWorker) flushLogged(ctx context.Context) {
	if err := w.flushOnce(ctx); err != nil {
		w.log.Debug().Err(err).Msg("Flush failed, updates dropped")
	}
}

// flushOnce takes the queued updates and delivers them. Delivery is best
// effort: a failed update is logged and dropped, never retried. The
// server recovers timer state by recomputing from endsAt, not from the
// delta log, and a later tick enqueues a fresh absolute value anyway.
func (w *ReconcilerWorker) flushOnce(ctx context.Context) error {
	w.mu.Lock()
	sections := w.sections
	questions := w.questions
	w.sections = make(map[uuid.UUID]authority.SectionTimerUpdate)
	w.questions = make(map[uuid.UUID]authority.QuestionTimerUpdate)
	w.mu.Unlock()

	var firstErr error
	for id, upd := range sections {
		if err := w.client.UpdateSectionTimer(ctx, w.examID, upd); err != nil {
			w.log.Warn().Err(err).Str("section_id", id.String()).Msg("Section timer update dropped")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for id, upd := range questions {
		if err := w.client.UpdateQuestionTimer(ctx, w.examID, upd); err != nil {
			w.log.Warn().Err(err).Str("question_id", id.String()).Msg("Question timer update dropped")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
