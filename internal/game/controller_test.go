package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

type fakeTicker struct {
	c       chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped = true }

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

type recordingTracker struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingTracker) add(a string) {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
}

func (r *recordingTracker) Started(models.Variant)   { r.add("started") }
func (r *recordingTracker) Completed(models.Outcome) { r.add("completed") }
func (r *recordingTracker) Failed(models.Outcome)    { r.add("failed") }
func (r *recordingTracker) Repeated(models.Variant)  { r.add("repeated") }

type fakeRecorder struct {
	calls []float64
	pb    bool
}

func (f *fakeRecorder) RecordAttempt(_ context.Context, _ string, _ models.Variant, seconds float64) (bool, error) {
	f.calls = append(f.calls, seconds)
	return f.pb, nil
}

type collectRenderer struct {
	mu      sync.Mutex
	effects []Effect
}

func (r *collectRenderer) Show(e Effect) {
	r.mu.Lock()
	r.effects = append(r.effects, e)
	r.mu.Unlock()
}

func TestController_CompletesAndRecords(t *testing.T) {
	clock := &fakeClock{now: t0}
	tracker := &recordingTracker{}
	recorder := &fakeRecorder{pb: true}
	renderer := &collectRenderer{}

	c, err := NewController(models.Identity{UserID: "user_1", Username: "Swift Fox", Variant: models.VariantA}, ControllerOptions{
		Clock:    clock,
		Renderer: renderer,
		Tracker:  tracker,
		Recorder: recorder,
	})
	require.NoError(t, err)

	c.Submit(Start{})
	clock.Advance(2 * time.Second)
	c.Submit(SubmitWord{Word: "math"})
	c.Submit(SubmitWord{Word: "them"})
	clock.Advance(3 * time.Second)
	c.Submit(SubmitWord{Word: "mace"})
	c.Close()

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, PhaseCompleted, c.Session.Phase())
	assert.True(t, c.Session.IsPersonalBest)
	assert.Equal(t, []string{"started", "completed"}, tracker.actions)
	require.Len(t, recorder.calls, 1)
	assert.InDelta(t, 5.0, recorder.calls[0], 1e-9)

	require.Len(t, clock.tickers, 1)
	assert.True(t, clock.tickers[0].stopped)
	assert.False(t, c.TimerActive())

	_, sawPB := effectOf[PersonalBest](renderer.effects)
	assert.True(t, sawPB)
}

func TestController_RestartReplacesTimer(t *testing.T) {
	clock := &fakeClock{now: t0}
	tracker := &recordingTracker{}
	c, err := NewController(models.Identity{Username: "Quick Hawk", Variant: models.VariantB}, ControllerOptions{
		Clock:   clock,
		Tracker: tracker,
	})
	require.NoError(t, err)

	c.Submit(Start{})
	c.Submit(Reset{})
	c.Submit(Start{})
	c.Close()
	require.NoError(t, c.Run(context.Background()))

	require.Len(t, clock.tickers, 2)
	assert.True(t, clock.tickers[0].stopped)
	// Run stops the live ticker on exit.
	assert.True(t, clock.tickers[1].stopped)
	assert.Equal(t, []string{"started", "started"}, tracker.actions)
}

func TestController_TickTimesOut(t *testing.T) {
	clock := &fakeClock{now: t0}
	tracker := &recordingTracker{}
	c, err := NewController(models.Identity{Username: "Rapid Wolf", Variant: models.VariantA}, ControllerOptions{
		Clock:   clock,
		Tracker: tracker,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Submit(Start{})
	require.Eventually(t, func() bool {
		clock.mu.Lock()
		defer clock.mu.Unlock()
		return len(clock.tickers) == 1
	}, time.Second, 5*time.Millisecond)

	clock.Advance(constants.ChallengeDuration)
	clock.tickers[0].c <- clock.Now()

	c.Close()
	require.NoError(t, <-done)
	assert.Equal(t, PhaseFailed, c.Session.Phase())
	assert.Equal(t, []string{"started", "failed"}, tracker.actions)
}
