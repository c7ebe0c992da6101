package game

import (
	"fmt"
	"math"
	"slices"
	"time"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Event is one of the inputs accepted by Session.Dispatch.
type Event interface{ isEvent() }

type Start struct{ At time.Time }

type SubmitWord struct {
	Word string
	At   time.Time
}

// Reset returns the session to idle. Repeat marks a user-initiated replay.
type Reset struct{ Repeat bool }

type Tick struct{ At time.Time }

// NetworkResult carries the post-completion comparison fetch back into the session.
type NetworkResult struct {
	Generation uint64
	Stats      *models.StatsResponse
	Percentile *models.PercentileResponse
	Err        error
}

type AttemptRecorded struct {
	Generation   uint64
	PersonalBest bool
}

func (Start) isEvent()           {}
func (SubmitWord) isEvent()      {}
func (Reset) isEvent()           {}
func (Tick) isEvent()            {}
func (NetworkResult) isEvent()   {}
func (AttemptRecorded) isEvent() {}

// Effect is a side effect requested by the session. The controller performs
// them; the session never does I/O itself.
type Effect interface{ isEffect() }

type StartTimer struct{}

type StopTimer struct{}

type TimerUpdate struct{ Remaining time.Duration }

type WordAccepted struct {
	Word  string
	Found []string
}

type WordRejected struct{ Word string }

type Completed struct {
	ElapsedMs int64
	Guesses   int
}

type Failed struct {
	Found  int
	Target int
}

type Cleared struct{}

type Track struct {
	Action  string
	Variant models.Variant
	Outcome *models.Outcome
}

type RecordAttempt struct {
	Generation uint64
	Seconds    float64
}

type PersonalBest struct{ Seconds float64 }

type FetchComparison struct {
	Generation uint64
	Variant    models.Variant
	Seconds    float64
}

type ShowComparison struct{ Text string }

func (StartTimer) isEffect()      {}
func (StopTimer) isEffect()       {}
func (TimerUpdate) isEffect()     {}
func (WordAccepted) isEffect()    {}
func (WordRejected) isEffect()    {}
func (Completed) isEffect()       {}
func (Failed) isEffect()          {}
func (Cleared) isEffect()         {}
func (Track) isEffect()           {}
func (RecordAttempt) isEffect()   {}
func (PersonalBest) isEffect()    {}
func (FetchComparison) isEffect() {}
func (ShowComparison) isEffect()  {}

// Session is the state of one timed attempt. It is owned by a single
// goroutine; Dispatch is not safe for concurrent use.
type Session struct {
	Variant          models.Variant
	Config           models.PuzzleConfig
	StartTime        time.Time
	Running          bool
	GuessedWords     []string
	FoundWords       []string
	CompletionTimeMs *int64
	IsPersonalBest   bool

	phase      Phase
	generation uint64
	limit      time.Duration
}

func NewSession(variant models.Variant) (*Session, error) {
	cfg, ok := ConfigFor(variant)
	if !ok {
		return nil, fmt.Errorf("no puzzle configured for variant %q", variant)
	}
	return &Session{
		Variant:      variant,
		Config:       cfg,
		GuessedWords: []string{},
		FoundWords:   []string{},
		limit:        constants.ChallengeDuration,
	}, nil
}

func (s *Session) Phase() Phase { return s.phase }

func (s *Session) Generation() uint64 { return s.generation }

func (s *Session) Dispatch(ev Event) []Effect {
	switch e := ev.(type) {
	case Start:
		return s.start(e)
	case SubmitWord:
		return s.submit(e)
	case Tick:
		return s.tick(e)
	case Reset:
		return s.reset(e)
	case NetworkResult:
		return s.networkResult(e)
	case AttemptRecorded:
		return s.attemptRecorded(e)
	default:
		return nil
	}
}

func (s *Session) start(e Start) []Effect {
	if s.phase != PhaseIdle {
		return nil
	}
	s.generation++
	s.phase = PhaseRunning
	s.Running = true
	s.StartTime = e.At
	s.GuessedWords = []string{}
	s.FoundWords = []string{}
	s.CompletionTimeMs = nil
	s.IsPersonalBest = false
	return []Effect{
		StartTimer{},
		TimerUpdate{Remaining: s.limit},
		Track{Action: constants.ActionStarted, Variant: s.Variant},
	}
}

func (s *Session) submit(e SubmitWord) []Effect {
	if s.phase != PhaseRunning {
		return nil
	}
	// The tick owns the timeout; a word arriving after the deadline waits for it.
	if e.At.Sub(s.StartTime) >= s.limit {
		return nil
	}
	word := NormalizeWord(e.Word)
	if word == "" {
		return nil
	}
	s.GuessedWords = append(s.GuessedWords, word)

	if !IsTargetWord(s.Config, word) || slices.Contains(s.FoundWords, word) {
		return []Effect{WordRejected{Word: word}}
	}
	s.FoundWords = append(s.FoundWords, word)
	effects := []Effect{WordAccepted{Word: word, Found: slices.Clone(s.FoundWords)}}
	if len(s.FoundWords) == s.Config.TargetCount {
		effects = append(effects, s.complete(e.At)...)
	}
	return effects
}

func (s *Session) complete(at time.Time) []Effect {
	elapsed := at.Sub(s.StartTime).Milliseconds()
	s.finish(PhaseCompleted, elapsed)
	seconds := float64(elapsed) / 1000
	return []Effect{
		StopTimer{},
		Completed{ElapsedMs: elapsed, Guesses: len(s.GuessedWords)},
		RecordAttempt{Generation: s.generation, Seconds: seconds},
		Track{Action: constants.ActionCompleted, Variant: s.Variant, Outcome: s.outcome(true)},
		FetchComparison{Generation: s.generation, Variant: s.Variant, Seconds: seconds},
	}
}

func (s *Session) tick(e Tick) []Effect {
	if s.phase != PhaseRunning {
		return nil
	}
	elapsed := e.At.Sub(s.StartTime)
	if elapsed < s.limit {
		return []Effect{TimerUpdate{Remaining: s.limit - elapsed}}
	}
	s.finish(PhaseFailed, s.limit.Milliseconds())
	return []Effect{
		StopTimer{},
		TimerUpdate{Remaining: 0},
		Failed{Found: len(s.FoundWords), Target: s.Config.TargetCount},
		Track{Action: constants.ActionCompleted, Variant: s.Variant, Outcome: s.outcome(false)},
	}
}

func (s *Session) finish(phase Phase, elapsedMs int64) {
	s.phase = phase
	s.Running = false
	s.CompletionTimeMs = &elapsedMs
}

func (s *Session) outcome(success bool) *models.Outcome {
	return &models.Outcome{
		Variant:          s.Variant,
		Success:          success,
		CompletionTimeMs: *s.CompletionTimeMs,
		FoundWords:       slices.Clone(s.FoundWords),
		GuessCount:       len(s.GuessedWords),
	}
}

func (s *Session) reset(e Reset) []Effect {
	wasTerminal := s.phase.Terminal()
	wasRunning := s.phase == PhaseRunning
	s.generation++
	s.phase = PhaseIdle
	s.Running = false
	s.StartTime = time.Time{}
	s.GuessedWords = []string{}
	s.FoundWords = []string{}
	s.CompletionTimeMs = nil
	s.IsPersonalBest = false

	var effects []Effect
	if wasRunning {
		effects = append(effects, StopTimer{})
	}
	effects = append(effects, Cleared{})
	if e.Repeat && wasTerminal {
		effects = append(effects, Track{Action: constants.ActionRepeated, Variant: s.Variant})
	}
	return effects
}

func (s *Session) attemptRecorded(e AttemptRecorded) []Effect {
	if e.Generation != s.generation || s.phase != PhaseCompleted {
		return nil
	}
	s.IsPersonalBest = e.PersonalBest
	if !e.PersonalBest {
		return nil
	}
	return []Effect{PersonalBest{Seconds: float64(*s.CompletionTimeMs) / 1000}}
}

func (s *Session) networkResult(e NetworkResult) []Effect {
	if e.Generation != s.generation || s.phase != PhaseCompleted {
		return nil
	}
	text := ComparisonText(s.Variant, float64(*s.CompletionTimeMs)/1000, e.Stats, e.Percentile, e.Err)
	if s.IsPersonalBest {
		text = "🏆 Personal Best! | " + text
	}
	return []Effect{ShowComparison{Text: text}}
}

// ComparisonText describes how a completion time compares to the variant
// averages and percentile reported by the collector.
func ComparisonText(variant models.Variant, userSeconds float64, stats *models.StatsResponse, pct *models.PercentileResponse, err error) string {
	if err != nil || stats == nil {
		return "Comparison unavailable. Nice work!"
	}
	if stats.Status != constants.StatusSuccess || stats.VariantA == nil || stats.VariantB == nil {
		return "Not enough data yet for comparison."
	}

	own, other, otherName := stats.VariantA, stats.VariantB, models.VariantB
	if variant == models.VariantB {
		own, other, otherName = stats.VariantB, stats.VariantA, models.VariantA
	}

	var text string
	if own.AvgCompletionTime != nil && *own.AvgCompletionTime > 0 {
		diff := userSeconds - *own.AvgCompletionTime
		switch {
		case diff < 0:
			text = fmt.Sprintf("⚡ %.2fs faster than %s", math.Abs(diff), variant)
		case diff > 0:
			text = fmt.Sprintf("%.2fs slower than %s", diff, variant)
		default:
			text = fmt.Sprintf("Matched %s average!", variant)
		}
		if other.AvgCompletionTime != nil && *other.AvgCompletionTime > 0 {
			text += fmt.Sprintf(" | %s avg: %.2fs", otherName, *other.AvgCompletionTime)
		}
	}
	if text == "" {
		text = "Great job completing the challenge!"
	}
	if pct != nil && pct.Status == constants.StatusSuccess {
		text += fmt.Sprintf(" | Faster than %g%% of %s players", pct.VariantPercentile, variant)
	}
	return text
}
