package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/model"
)

// ProctorReporter ships classified proctoring events from the bus to the
// authority and applies its verdicts. Reporting is best effort; a failed
// report never blocks the exam. A terminate verdict is irreversible.
type ProctorReporter struct {
	client    *authority.Client
	bus       *events.Bus
	examID    uuid.UUID
	attemptID uuid.UUID
	terminate func(reason string)
	log       zerolog.Logger
}

// NewProctorReporter creates a reporter for one session.
func NewProctorReporter(client *authority.Client, bus *events.Bus, examID, attemptID uuid.UUID, terminate func(reason string), log zerolog.Logger) *ProctorReporter {
	return &ProctorReporter{
		client:    client,
		bus:       bus,
		examID:    examID,
		attemptID: attemptID,
		terminate: terminate,
		log:       log.With().Str("component", "proctor_reporter").Logger(),
	}
}

// Start begins consuming proctoring events. Call in a goroutine.
func (w *ProctorReporter) Start(ctx context.Context) {
	msgs, err := w.bus.Subscribe(ctx, events.TopicProctoring)
	if err != nil {
		w.log.Error().Err(err).Msg("Subscribe failed")
		return
	}
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev model.ProctoringEvent
			if err := events.Decode(msg, &ev); err != nil {
				w.log.Error().Err(err).Msg("Decode event failed")
				continue
			}
			w.report(ctx, ev)
		}
	}
}

func (w *ProctorReporter) report(ctx context.Context, ev model.ProctoringEvent) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	verdict, err := w.client.LogProctoringEvent(callCtx, w.examID, authority.ProctoringReport{
		AttemptID: w.attemptID,
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		Details:   ev.Details,
	})
	if err != nil {
		w.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Report delivery failed")
		return
	}
	if verdict.Terminate {
		w.log.Warn().Str("reason", verdict.Reason).Msg("Terminate verdict received")
		w.terminate(verdict.Reason)
	}
}
