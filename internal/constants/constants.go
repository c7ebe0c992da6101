package constants

import "time"

const (
	ChallengeDuration = 60 * time.Second
	TickInterval      = 100 * time.Millisecond
	PollInterval      = 10 * time.Second
)

const (
	LeaderboardCapacity = 50
	LeaderboardTopN     = 5
)

const (
	ActionStarted   = "started"
	ActionCompleted = "completed"
	ActionRepeated  = "repeated"
)

const (
	PuzzleTypeWordSearch = "word_search"
	FailureReasonTimeout = "timeout"
)

// Keys in the client-local store.
const (
	KeyVariant     = "simulator_variant"
	KeyUserID      = "simulator_user_id"
	KeyUsername    = "simulator_username"
	KeyLeaderboard = "leaderboard"
)

const DefaultExperimentID = "83cac599-f4bb-4d68-8b12-04458801a22b"

const (
	RouteTrack            = "/api/track"
	RouteStats            = "/api/stats"
	RouteUserPercentile   = "/api/user_percentile"
	RouteFunnelChart      = "/api/funnel_chart"
	RouteTimeDistribution = "/api/time_distribution"
	RouteComparisonCharts = "/api/comparison_charts"
	RouteHealth           = "/api/health"
	RouteWebhook          = "/api/webhook"
)

const (
	StatusSuccess = "success"
	StatusOK      = "ok"
	StatusError   = "error"
)

const (
	ErrorCodeInvalidPayload  = "invalid_payload"
	ErrorCodeMissingQuery    = "missing_query"
	ErrorCodeNoEvents        = "No events found"
	ErrorCodeNotEnoughData   = "Not enough data"
	ErrorCodeNoData          = "No data available"
	ErrorCodeNoPercentile    = "Not enough data for percentile calculation"
	ErrorCodeInternal        = "internal_error"
	ErrorCodeStoreNotReady   = "database unavailable"
	MessageDuplicateSkipped  = "duplicate event skipped"
	MessageRateLimitExceeded = "Too many requests. Please slow down."
)

const WebhookAllowHeaders = "authorization, x-client-info, apikey, content-type"

type contextKey string

const RequestIDKey contextKey = "request_id"
