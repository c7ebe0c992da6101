// Package analysis aggregates experiment events into per-variant statistics
// and chart figures.
package analysis

import (
	"math"
	"slices"

	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

// significance is the p-value threshold for the success-rate test.
const significance = 0.05

// difficultyMargin is the success-rate gap, in percentage points, above which
// one variant is reported as harder.
const difficultyMargin = 5.0

// tCritical holds two-sided 95% Student t quantiles for 1..30 degrees of freedom.
var tCritical = []float64{
	12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
	2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
	2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042,
}

func isTerminal(e models.TrackEvent) bool {
	return e.ActionType == constants.ActionCompleted
}

// isSuccess treats a completed event as successful when success is set, and
// falls back to converted for rows written before success existed.
func isSuccess(e models.TrackEvent) bool {
	if !isTerminal(e) {
		return false
	}
	if e.Success != nil {
		return *e.Success
	}
	return e.Converted
}

// SuccessTimes returns the completion times of successful attempts for variant.
func SuccessTimes(events []models.TrackEvent, variant models.Variant) []float64 {
	ok := lo.Filter(events, func(e models.TrackEvent, _ int) bool {
		return e.Variant == variant && isSuccess(e) && e.CompletionTime != nil
	})
	return lo.Map(ok, func(e models.TrackEvent, _ int) float64 { return *e.CompletionTime })
}

// Analyze builds the stats response for one experiment's events.
func Analyze(events []models.TrackEvent) models.StatsResponse {
	if len(events) == 0 {
		return models.StatsResponse{Status: constants.StatusError, Message: constants.ErrorCodeNoEvents}
	}
	byVariant := lo.GroupBy(events, func(e models.TrackEvent) models.Variant { return e.Variant })

	a := variantStats(byVariant[models.VariantA], SuccessTimes(events, models.VariantA))
	b := variantStats(byVariant[models.VariantB], SuccessTimes(events, models.VariantB))

	resp := models.StatsResponse{
		Status:             constants.StatusSuccess,
		VariantA:           &a,
		VariantB:           &b,
		DifficultyAnalysis: difficulty(a, b),
		Bayesian:           &models.Bayesian{ProbBBetter: 0.5},
	}
	aTerminal, bTerminal := a.NCompleted+a.NFailed, b.NCompleted+b.NFailed
	if aTerminal > 0 && bTerminal > 0 {
		p := ChiSquareP(a.NCompleted, a.NFailed, b.NCompleted, b.NFailed)
		resp.Frequentist = &models.Frequentist{PValue: round(p, 4), Significant: p < significance}
	}
	return resp
}

func variantStats(events []models.TrackEvent, times []float64) models.VariantStats {
	count := func(action string) int {
		return lo.CountBy(events, func(e models.TrackEvent) bool { return e.ActionType == action })
	}
	started := count(constants.ActionStarted)
	repeated := count(constants.ActionRepeated)
	terminal := lo.CountBy(events, isTerminal)
	succeeded := lo.CountBy(events, isSuccess)

	s := models.VariantStats{
		NUsers:      len(lo.Uniq(lo.Map(events, func(e models.TrackEvent, _ int) string { return e.UserID }))),
		NStarted:    started,
		NCompleted:  succeeded,
		NFailed:     terminal - succeeded,
		NRepeated:   repeated,
		Conversions: succeeded,
	}
	if terminal > 0 {
		s.ConversionRate = round(float64(succeeded)/float64(terminal), 4)
	}
	if started > 0 {
		s.CompletionRate = round(float64(succeeded)/float64(started)*100, 1)
		s.RepeatRate = round(float64(repeated)/float64(started)*100, 1)
	}
	if ts := TimeSummary(times); ts != nil {
		s.TimeStats = ts
		mean := ts.Mean
		s.AvgCompletionTime = &mean
	}
	s.Funnel = models.Funnel{
		Started:        started,
		Completed:      succeeded,
		Repeated:       repeated,
		CompletionRate: s.CompletionRate,
		RepeatRate:     s.RepeatRate,
	}
	return s
}

// TimeSummary returns mean, median, sample deviation and a 95% t interval,
// or nil when times is empty.
func TimeSummary(times []float64) *models.TimeStats {
	n := len(times)
	if n == 0 {
		return nil
	}
	mean := lo.Sum(times) / float64(n)

	sorted := slices.Clone(times)
	slices.Sort(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var std, margin float64
	if n > 1 {
		ss := lo.SumBy(times, func(t float64) float64 { return (t - mean) * (t - mean) })
		std = math.Sqrt(ss / float64(n-1))
		margin = tQuantile(n-1) * std / math.Sqrt(float64(n))
	}
	return &models.TimeStats{
		N:       n,
		Mean:    round(mean, 2),
		Median:  round(median, 2),
		Std:     round(std, 2),
		CILower: round(mean-margin, 2),
		CIUpper: round(mean+margin, 2),
	}
}

func tQuantile(df int) float64 {
	if df <= len(tCritical) {
		return tCritical[df-1]
	}
	return 1.96
}

// ChiSquareP is the p-value of a 2x2 chi-square test with Yates' continuity
// correction. Tables with an empty row or column return 1.
func ChiSquareP(aSuccess, aFail, bSuccess, bFail int) float64 {
	observed := [2][2]float64{
		{float64(aSuccess), float64(aFail)},
		{float64(bSuccess), float64(bFail)},
	}
	rows := [2]float64{observed[0][0] + observed[0][1], observed[1][0] + observed[1][1]}
	cols := [2]float64{observed[0][0] + observed[1][0], observed[0][1] + observed[1][1]}
	total := rows[0] + rows[1]
	if rows[0] == 0 || rows[1] == 0 || cols[0] == 0 || cols[1] == 0 {
		return 1
	}

	var chi2 float64
	for i := range 2 {
		for j := range 2 {
			expected := rows[i] * cols[j] / total
			diff := math.Abs(observed[i][j] - expected)
			diff -= math.Min(0.5, diff)
			chi2 += diff * diff / expected
		}
	}
	return math.Erfc(math.Sqrt(chi2 / 2))
}

func difficulty(a, b models.VariantStats) *models.DifficultyAnalysis {
	aRate := successPercent(a)
	bRate := successPercent(b)
	d := &models.DifficultyAnalysis{
		VariantASuccessRate:   aRate,
		VariantBSuccessRate:   bRate,
		SuccessRateDifference: round(aRate-bRate, 1),
	}
	if a.TimeStats != nil {
		d.VariantAAvgTime = &a.TimeStats.Mean
	}
	if b.TimeStats != nil {
		d.VariantBAvgTime = &b.TimeStats.Mean
	}
	switch {
	case d.SuccessRateDifference > difficultyMargin:
		d.DifficultyLabel = "Variant B is harder"
	case d.SuccessRateDifference < -difficultyMargin:
		d.DifficultyLabel = "Variant A is harder"
	default:
		d.DifficultyLabel = "Similar difficulty"
	}
	return d
}

func successPercent(s models.VariantStats) float64 {
	return round(s.ConversionRate*100, 1)
}

// Percentile reports the share of the variant's successful times that are
// strictly slower than userTime. ok is false when there are no times.
func Percentile(events []models.TrackEvent, userTime float64, variant models.Variant) (models.PercentileResponse, bool) {
	times := SuccessTimes(events, variant)
	if len(times) == 0 {
		return models.PercentileResponse{}, false
	}
	slower := lo.CountBy(times, func(t float64) bool { return t > userTime })
	return models.PercentileResponse{
		Status:            constants.StatusSuccess,
		VariantPercentile: round(float64(slower)/float64(len(times))*100, 1),
		TotalPlayers:      len(times),
	}, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
