package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeassess/sessiond/internal/authority"
)

type recordedUpdate struct {
	Path      string
	Remaining *int
	Completed bool
}

// timerSink records timer updates the way the authority would receive
// them, optionally failing the first N requests.
type timerSink struct {
	mu       sync.Mutex
	updates  []recordedUpdate
	failNext int
	srv      *httptest.Server
}

func newTimerSink(t *testing.T) *timerSink {
	t.Helper()
	s := &timerSink{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failNext > 0 {
			s.failNext--
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"data":null,"error":{"code":"INTERNAL_ERROR","message":"boom"}}`))
			return
		}
		var body struct {
			RemainingSeconds *int `json:"remaining_seconds"`
			Completed        bool `json:"completed"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		s.updates = append(s.updates, recordedUpdate{Path: r.URL.Path, Remaining: body.RemainingSeconds, Completed: body.Completed})
		w.Write([]byte(`{"data":null}`))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *timerSink) recorded() []recordedUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedUpdate(nil), s.updates...)
}

func (s *timerSink) failures(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

func newTestWorker(t *testing.T, s *timerSink) (*ReconcilerWorker, uuid.UUID) {
	t.Helper()
	examID := uuid.New()
	client := authority.NewClient(s.srv.URL, "tok", 5*time.Second, zerolog.Nop())
	return NewReconcilerWorker(client, examID, 50*time.Millisecond, zerolog.Nop()), examID
}

func sectionUpdate(sectionID uuid.UUID, remaining int) authority.SectionTimerUpdate {
	r := remaining
	return authority.SectionTimerUpdate{
		AttemptID:        uuid.New(),
		SectionID:        sectionID,
		RemainingSeconds: &r,
	}
}

func TestFlushDeliversQueuedUpdates(t *testing.T) {
	sink := newTimerSink(t)
	w, examID := newTestWorker(t, sink)

	sectionID := uuid.New()
	w.EnqueueSection(sectionUpdate(sectionID, 90))
	w.EnqueueQuestion(authority.QuestionTimerUpdate{QuestionID: uuid.New(), Completed: true})

	require.NoError(t, w.FlushAndWait(context.Background()))

	updates := sink.recorded()
	require.Len(t, updates, 2)
	paths := []string{updates[0].Path, updates[1].Path}
	assert.Contains(t, paths, "/exams/"+examID.String()+"/timers/section")
	assert.Contains(t, paths, "/exams/"+examID.String()+"/timers/question")
}

func TestEnqueueDedupesLatestWins(t *testing.T) {
	sink := newTimerSink(t)
	w, _ := newTestWorker(t, sink)

	sectionID := uuid.New()
	for r := 90; r >= 75; r-- {
		w.EnqueueSection(sectionUpdate(sectionID, r))
	}

	require.NoError(t, w.FlushAndWait(context.Background()))

	updates := sink.recorded()
	require.Len(t, updates, 1, "a burst of ticks collapses to one absolute update")
	assert.Equal(t, 75, *updates[0].Remaining)
}

func TestFailedUpdateIsDropped(t *testing.T) {
	sink := newTimerSink(t)
	w, _ := newTestWorker(t, sink)

	sectionID := uuid.New()
	w.EnqueueSection(sectionUpdate(sectionID, 60))

	sink.failures(1)
	require.Error(t, w.FlushAndWait(context.Background()))
	assert.Empty(t, sink.recorded())

	// Delivery is best effort: the failed entry is gone, not retried.
	// The server recomputes from endsAt, so nothing is lost.
	require.NoError(t, w.FlushAndWait(context.Background()))
	assert.Empty(t, sink.recorded())
}

func TestLaterUpdatesFlowAfterFailure(t *testing.T) {
	sink := newTimerSink(t)
	w, _ := newTestWorker(t, sink)

	sectionID := uuid.New()
	w.EnqueueSection(sectionUpdate(sectionID, 60))
	sink.failures(1)
	require.Error(t, w.FlushAndWait(context.Background()))

	// The next tick enqueues a fresh absolute value; only it is sent.
	w.EnqueueSection(sectionUpdate(sectionID, 55))
	require.NoError(t, w.FlushAndWait(context.Background()))

	updates := sink.recorded()
	require.Len(t, updates, 1)
	assert.Equal(t, 55, *updates[0].Remaining)
}

func TestStartLoopFlushesOnKick(t *testing.T) {
	sink := newTimerSink(t)
	w, _ := newTestWorker(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.EnqueueSection(sectionUpdate(uuid.New(), 30))
	w.Flush()

	assert.Eventually(t, func() bool {
		return len(sink.recorded()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownDrainsQueue(t *testing.T) {
	sink := newTimerSink(t)
	w, _ := newTestWorker(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	w.EnqueueSection(sectionUpdate(uuid.New(), 10))
	cancel()
	<-done

	assert.Len(t, sink.recorded(), 1, "pending updates are drained on shutdown")
}
