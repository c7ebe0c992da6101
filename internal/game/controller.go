package game

import (
	"context"
	"time"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type systemClock struct{}

type systemTicker struct{ t *time.Ticker }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

func SystemClock() Clock { return systemClock{} }

// Renderer receives every effect the session produces, in order.
type Renderer interface {
	Show(effect Effect)
}

// Tracker is the fire-and-forget telemetry sink. Calls must not block.
type Tracker interface {
	Started(variant models.Variant)
	Completed(outcome models.Outcome)
	Failed(outcome models.Outcome)
	Repeated(variant models.Variant)
}

type Recorder interface {
	RecordAttempt(ctx context.Context, username string, variant models.Variant, seconds float64) (bool, error)
}

type Comparer interface {
	Stats(ctx context.Context) (*models.StatsResponse, error)
	Percentile(ctx context.Context, seconds float64, variant models.Variant) (*models.PercentileResponse, error)
}

type Controller struct {
	Session  *Session
	identity models.Identity
	clock    Clock
	renderer Renderer
	tracker  Tracker
	recorder Recorder
	comparer Comparer

	input   chan Event
	results chan Event
	ticker  Ticker
}

type ControllerOptions struct {
	Clock    Clock
	Renderer Renderer
	Tracker  Tracker
	Recorder Recorder
	Comparer Comparer
}

func NewController(id models.Identity, opts ControllerOptions) (*Controller, error) {
	session, err := NewSession(id.Variant)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &Controller{
		Session:  session,
		identity: id,
		clock:    opts.Clock,
		renderer: opts.Renderer,
		tracker:  opts.Tracker,
		recorder: opts.Recorder,
		comparer: opts.Comparer,
		input:    make(chan Event, 16),
		results:  make(chan Event, 4),
	}, nil
}

// Submit queues an input event. Timestamps are filled from the controller clock.
func (c *Controller) Submit(ev Event) {
	switch e := ev.(type) {
	case Start:
		if e.At.IsZero() {
			e.At = c.clock.Now()
		}
		ev = e
	case SubmitWord:
		if e.At.IsZero() {
			e.At = c.clock.Now()
		}
		ev = e
	}
	c.input <- ev
}

// Close ends Run once queued input has been processed.
func (c *Controller) Close() {
	close(c.input)
}

// Run is the event loop. All session state is touched from here only.
func (c *Controller) Run(ctx context.Context) error {
	defer c.stopTimer()
	for {
		var tickC <-chan time.Time
		if c.ticker != nil {
			tickC = c.ticker.C()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.input:
			if !ok {
				return nil
			}
			c.dispatch(ctx, ev)
		case <-tickC:
			c.dispatch(ctx, Tick{At: c.clock.Now()})
		case ev := <-c.results:
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, ev Event) {
	pending := []Event{ev}
	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]
		for _, effect := range c.Session.Dispatch(next) {
			if follow := c.apply(ctx, effect); follow != nil {
				pending = append(pending, follow)
			}
		}
	}
}

func (c *Controller) apply(ctx context.Context, effect Effect) Event {
	if c.renderer != nil {
		c.renderer.Show(effect)
	}
	switch e := effect.(type) {
	case StartTimer:
		c.startTimer()
	case StopTimer:
		c.stopTimer()
	case Track:
		c.track(e)
	case RecordAttempt:
		if c.recorder == nil {
			return nil
		}
		pb, err := c.recorder.RecordAttempt(ctx, c.identity.Username, c.identity.Variant, e.Seconds)
		if err != nil {
			util.LogWarn("Failed to record attempt for %s: %v", c.identity.Username, err)
			return nil
		}
		return AttemptRecorded{Generation: e.Generation, PersonalBest: pb}
	case FetchComparison:
		if c.comparer != nil {
			go c.fetchComparison(ctx, e)
		}
	}
	return nil
}

func (c *Controller) track(e Track) {
	if c.tracker == nil {
		return
	}
	switch {
	case e.Action == constants.ActionStarted:
		c.tracker.Started(e.Variant)
	case e.Action == constants.ActionRepeated:
		c.tracker.Repeated(e.Variant)
	case e.Outcome != nil && e.Outcome.Success:
		c.tracker.Completed(*e.Outcome)
	case e.Outcome != nil:
		c.tracker.Failed(*e.Outcome)
	}
}

func (c *Controller) fetchComparison(ctx context.Context, e FetchComparison) {
	res := NetworkResult{Generation: e.Generation}
	res.Stats, res.Err = c.comparer.Stats(ctx)
	if res.Err == nil {
		pct, err := c.comparer.Percentile(ctx, e.Seconds, e.Variant)
		if err != nil {
			util.LogWarn("Error fetching percentile: %v", err)
		} else {
			res.Percentile = pct
		}
	} else {
		util.LogWarn("Error fetching comparison: %v", res.Err)
	}
	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

func (c *Controller) startTimer() {
	c.stopTimer()
	c.ticker = c.clock.NewTicker(constants.TickInterval)
}

func (c *Controller) stopTimer() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// TimerActive reports whether a puzzle ticker is running.
func (c *Controller) TimerActive() bool {
	return c.ticker != nil
}
