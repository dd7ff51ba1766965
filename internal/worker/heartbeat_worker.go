package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/authority"
	"github.com/codeassess/sessiond/internal/model"
)

// HeartbeatWorker tells the authority the session is alive on a fixed
// interval. A missed heartbeat is the server's cue that the student
// closed the browser or lost power mid-exam.
type HeartbeatWorker struct {
	client    *authority.Client
	examID    uuid.UUID
	attemptID uuid.UUID
	interval  time.Duration
	terminate func(reason string)
	log       zerolog.Logger
}

// NewHeartbeatWorker creates a heartbeat sender for one session.
// terminate fires when the authority answers a heartbeat with a
// terminate verdict.
func NewHeartbeatWorker(client *authority.Client, examID, attemptID uuid.UUID, interval time.Duration, terminate func(reason string), log zerolog.Logger) *HeartbeatWorker {
	return &HeartbeatWorker{
		client:    client,
		examID:    examID,
		attemptID: attemptID,
		interval:  interval,
		terminate: terminate,
		log:       log.With().Str("component", "heartbeat_worker").Logger(),
	}
}

// Start begins the heartbeat loop. Call in a goroutine.
func (w *HeartbeatWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.beat(ctx)
		}
	}
}

func (w *HeartbeatWorker) beat(ctx context.Context) {
	verdict, err := w.client.LogProctoringEvent(ctx, w.examID, authority.ProctoringReport{
		AttemptID: w.attemptID,
		Type:      model.EventHeartbeat,
		Timestamp: time.Now(),
	})
	if err != nil {
		// Best effort. The student may simply be offline; the monitor
		// reports that separately.
		w.log.Debug().Err(err).Msg("Heartbeat delivery failed")
		return
	}
	if verdict.Terminate {
		w.log.Warn().Str("reason", verdict.Reason).Msg("Terminate verdict on heartbeat")
		w.terminate(verdict.Reason)
	}
}
