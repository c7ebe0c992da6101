package models

import (
	"encoding/json"
	"time"
)

type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

type Identity struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Variant  Variant `json:"variant"`
}

type PuzzleConfig struct {
	Letters     []string `yaml:"letters" json:"letters"`
	TargetWords []string `yaml:"targetWords" json:"targetWords"`
	TargetCount int      `yaml:"targetCount" json:"targetCount"`
	Difficulty  int      `yaml:"difficulty" json:"difficulty"`
}

// LeaderboardEntry is persisted as JSON under the leaderboard key.
type LeaderboardEntry struct {
	Username        string    `json:"username"`
	BestTimeSeconds float64   `json:"time"`
	Variant         Variant   `json:"variant"`
	Timestamp       time.Time `json:"timestamp"`
}

// Outcome summarises a finished session for telemetry.
type Outcome struct {
	Variant          Variant
	Success          bool
	CompletionTimeMs int64
	FoundWords       []string
	GuessCount       int
}

type TrackMetadata struct {
	PuzzleType    string   `json:"puzzle_type"`
	FoundWords    []string `json:"found_words,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// TrackRequest is the body of POST /api/track.
type TrackRequest struct {
	ExperimentID      string         `json:"experiment_id" binding:"required"`
	UserID            string         `json:"user_id" binding:"required"`
	Variant           Variant        `json:"variant" binding:"required,oneof=A B"`
	Converted         bool           `json:"converted"`
	ActionType        string         `json:"action_type" binding:"required,oneof=started completed repeated"`
	CompletionTime    *float64       `json:"completion_time,omitempty" binding:"omitempty,gte=0"`
	Success           *bool          `json:"success,omitempty"`
	CorrectWordsCount *int           `json:"correct_words_count,omitempty" binding:"omitempty,gte=0"`
	TotalGuessesCount *int           `json:"total_guesses_count,omitempty" binding:"omitempty,gte=0"`
	Metadata          *TrackMetadata `json:"metadata,omitempty"`
}

// TrackEvent is a stored row of the events table.
type TrackEvent struct {
	ID                int64           `json:"id"`
	ExperimentID      string          `json:"experiment_id"`
	UserID            string          `json:"user_id"`
	Variant           Variant         `json:"variant"`
	Converted         bool            `json:"converted"`
	Timestamp         time.Time       `json:"timestamp"`
	ActionType        string          `json:"action_type"`
	CompletionTime    *float64        `json:"completion_time,omitempty"`
	Success           *bool           `json:"success,omitempty"`
	CorrectWordsCount *int            `json:"correct_words_count,omitempty"`
	TotalGuessesCount *int            `json:"total_guesses_count,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
}

// WebhookEnvelope is the analytics platform's webhook body. Only the event is kept.
type WebhookEnvelope struct {
	Event *WebhookPayload `json:"event"`
}

type WebhookPayload struct {
	UUID       string         `json:"uuid"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Timestamp  string         `json:"timestamp"`
	Properties map[string]any `json:"properties"`
}

type WebhookEvent struct {
	UUID       string          `json:"uuid"`
	Event      string          `json:"event"`
	DistinctID string          `json:"distinct_id"`
	Timestamp  string          `json:"timestamp"`
	Properties json.RawMessage `json:"properties"`
	SessionID  *string         `json:"session_id"`
	WindowID   *string         `json:"window_id"`
	ReceivedAt time.Time       `json:"received_at"`
}

type TimeStats struct {
	N       int     `json:"n"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Std     float64 `json:"std"`
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

type Funnel struct {
	Started        int     `json:"started"`
	Completed      int     `json:"completed"`
	Repeated       int     `json:"repeated"`
	CompletionRate float64 `json:"completion_rate"`
	RepeatRate     float64 `json:"repeat_rate"`
}

type VariantStats struct {
	NUsers            int        `json:"n_users"`
	NStarted          int        `json:"n_started"`
	NCompleted        int        `json:"n_completed"`
	NFailed           int        `json:"n_failed"`
	NRepeated         int        `json:"n_repeated"`
	Conversions       int        `json:"conversions"`
	ConversionRate    float64    `json:"conversion_rate"`
	CompletionRate    float64    `json:"completion_rate"`
	RepeatRate        float64    `json:"repeat_rate"`
	AvgCompletionTime *float64   `json:"avg_completion_time"`
	TimeStats         *TimeStats `json:"time_stats,omitempty"`
	Funnel            Funnel     `json:"funnel"`
}

type DifficultyAnalysis struct {
	DifficultyLabel       string   `json:"difficulty_label"`
	VariantAAvgTime       *float64 `json:"variant_a_avg_time,omitempty"`
	VariantBAvgTime       *float64 `json:"variant_b_avg_time,omitempty"`
	VariantASuccessRate   float64  `json:"variant_a_success_rate"`
	VariantBSuccessRate   float64  `json:"variant_b_success_rate"`
	SuccessRateDifference float64  `json:"success_rate_difference"`
}

type Frequentist struct {
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

// Bayesian carries prob_b_better for older dashboards. No posterior model
// backs it yet, so it is always the flat prior.
type Bayesian struct {
	ProbBBetter float64 `json:"prob_b_better"`
}

type StatsResponse struct {
	Status             string              `json:"status"`
	Message            string              `json:"message,omitempty"`
	VariantA           *VariantStats       `json:"variant_a,omitempty"`
	VariantB           *VariantStats       `json:"variant_b,omitempty"`
	DifficultyAnalysis *DifficultyAnalysis `json:"difficulty_analysis,omitempty"`
	Frequentist        *Frequentist        `json:"frequentist,omitempty"`
	Bayesian           *Bayesian           `json:"bayesian,omitempty"`
}

type PercentileResponse struct {
	Status            string  `json:"status"`
	Message           string  `json:"message,omitempty"`
	VariantPercentile float64 `json:"variant_percentile"`
	TotalPlayers      int     `json:"total_players,omitempty"`
}

type ChartResponse struct {
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	Chart            string `json:"chart,omitempty"`
	SuccessRateChart string `json:"success_rate_chart,omitempty"`
	AvgTimeChart     string `json:"avg_time_chart,omitempty"`
}
