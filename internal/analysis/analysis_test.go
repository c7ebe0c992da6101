package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

func started(user string, v models.Variant) models.TrackEvent {
	return models.TrackEvent{UserID: user, Variant: v, ActionType: constants.ActionStarted, Timestamp: time.Now()}
}

func repeated(user string, v models.Variant) models.TrackEvent {
	return models.TrackEvent{UserID: user, Variant: v, ActionType: constants.ActionRepeated, Timestamp: time.Now()}
}

func finished(user string, v models.Variant, ok bool, seconds float64) models.TrackEvent {
	return models.TrackEvent{
		UserID: user, Variant: v, ActionType: constants.ActionCompleted,
		Converted: ok, Success: &ok, CompletionTime: &seconds, Timestamp: time.Now(),
	}
}

// seeded: A has three successes (10, 20, 30s) and one timeout across three
// users; B has one timeout and one 40s success.
func seeded() []models.TrackEvent {
	return []models.TrackEvent{
		started("u1", models.VariantA), finished("u1", models.VariantA, true, 10),
		started("u2", models.VariantA), finished("u2", models.VariantA, true, 20),
		started("u3", models.VariantA), finished("u3", models.VariantA, false, 60),
		repeated("u1", models.VariantA),
		started("u1", models.VariantA), finished("u1", models.VariantA, true, 30),
		started("u4", models.VariantB), finished("u4", models.VariantB, false, 60),
		started("u5", models.VariantB), finished("u5", models.VariantB, true, 40),
	}
}

func TestAnalyze_NoEvents(t *testing.T) {
	resp := Analyze(nil)
	assert.Equal(t, constants.StatusError, resp.Status)
	assert.Equal(t, "No events found", resp.Message)
}

func TestAnalyze_SeededAggregates(t *testing.T) {
	resp := Analyze(seeded())
	require.Equal(t, constants.StatusSuccess, resp.Status)

	a := resp.VariantA
	assert.Equal(t, 3, a.NUsers)
	assert.Equal(t, 4, a.NStarted)
	assert.Equal(t, 3, a.NCompleted)
	assert.Equal(t, 1, a.NFailed)
	assert.Equal(t, 1, a.NRepeated)
	assert.Equal(t, 3, a.Conversions)
	assert.Equal(t, 0.75, a.ConversionRate)
	assert.Equal(t, 75.0, a.CompletionRate)
	assert.Equal(t, 25.0, a.RepeatRate)
	require.NotNil(t, a.AvgCompletionTime)
	assert.Equal(t, 20.0, *a.AvgCompletionTime)
	assert.Equal(t, &models.TimeStats{N: 3, Mean: 20, Median: 20, Std: 10, CILower: -4.84, CIUpper: 44.84}, a.TimeStats)
	assert.Equal(t, models.Funnel{Started: 4, Completed: 3, Repeated: 1, CompletionRate: 75, RepeatRate: 25}, a.Funnel)

	b := resp.VariantB
	assert.Equal(t, 2, b.NUsers)
	assert.Equal(t, 0.5, b.ConversionRate)
	assert.Equal(t, &models.TimeStats{N: 1, Mean: 40, Median: 40, Std: 0, CILower: 40, CIUpper: 40}, b.TimeStats)

	require.NotNil(t, resp.DifficultyAnalysis)
	assert.Equal(t, "Variant B is harder", resp.DifficultyAnalysis.DifficultyLabel)
	assert.Equal(t, 25.0, resp.DifficultyAnalysis.SuccessRateDifference)

	require.NotNil(t, resp.Frequentist)
	assert.Equal(t, 1.0, resp.Frequentist.PValue)
	assert.False(t, resp.Frequentist.Significant)

	require.NotNil(t, resp.Bayesian)
	assert.Equal(t, 0.5, resp.Bayesian.ProbBBetter)
}

func TestAnalyze_MissingVariantHasZeroStats(t *testing.T) {
	resp := Analyze([]models.TrackEvent{started("u1", models.VariantA)})
	require.Equal(t, constants.StatusSuccess, resp.Status)
	assert.Equal(t, 0, resp.VariantB.NUsers)
	assert.Nil(t, resp.VariantB.AvgCompletionTime)
	assert.Nil(t, resp.Frequentist)
}

func TestAnalyze_SuccessFallsBackToConverted(t *testing.T) {
	legacy := models.TrackEvent{UserID: "u1", Variant: models.VariantA, ActionType: constants.ActionCompleted, Converted: true}
	resp := Analyze([]models.TrackEvent{legacy})
	assert.Equal(t, 1, resp.VariantA.Conversions)
	assert.Nil(t, resp.VariantA.TimeStats)
}

func TestChiSquareP(t *testing.T) {
	assert.InDelta(t, 0.0061, ChiSquareP(50, 50, 30, 70), 1e-4)
	assert.Equal(t, 1.0, ChiSquareP(3, 0, 2, 0))
	assert.Equal(t, 1.0, ChiSquareP(0, 0, 2, 1))
}

func TestTimeSummary_EvenMedian(t *testing.T) {
	ts := TimeSummary([]float64{4, 1, 3, 2})
	require.NotNil(t, ts)
	assert.Equal(t, 2.5, ts.Median)
	assert.Equal(t, 2.5, ts.Mean)
	assert.Nil(t, TimeSummary(nil))
}

func TestPercentile_CountsStrictlySlower(t *testing.T) {
	got, ok := Percentile(seeded(), 15, models.VariantA)
	require.True(t, ok)
	assert.Equal(t, 66.7, got.VariantPercentile)
	assert.Equal(t, 3, got.TotalPlayers)

	got, ok = Percentile(seeded(), 20, models.VariantA)
	require.True(t, ok)
	assert.Equal(t, 33.3, got.VariantPercentile)

	got, ok = Percentile(seeded(), 5, models.VariantB)
	require.True(t, ok)
	assert.Equal(t, 100.0, got.VariantPercentile)
}

func TestPercentile_NoData(t *testing.T) {
	_, ok := Percentile([]models.TrackEvent{started("u1", models.VariantB)}, 10, models.VariantB)
	assert.False(t, ok)
}

func TestFunnelChart_Golden(t *testing.T) {
	resp := Analyze(seeded())
	out, err := FunnelChart(*resp.VariantA, *resp.VariantB).JSON()
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "funnel_chart", []byte(out))
}

func TestTimeDistribution(t *testing.T) {
	fig := TimeDistribution(seeded())
	require.Len(t, fig.Data, 2)
	assert.Equal(t, []float64{10, 20, 30}, fig.Data[0]["x"])
	assert.Len(t, fig.Layout["shapes"], 2)

	empty := TimeDistribution([]models.TrackEvent{started("u1", models.VariantA)})
	assert.Empty(t, empty.Data)
	assert.Contains(t, empty.Layout, "annotations")
}

func TestComparisonCharts(t *testing.T) {
	resp := Analyze(seeded())

	success := SuccessRateChart(*resp.VariantA, *resp.VariantB)
	assert.Equal(t, []float64{75, 50}, success.Data[0]["y"])
	assert.Equal(t, []string{"75.0%", "50.0%"}, success.Data[0]["text"])

	avg := AvgTimeChart(*resp.VariantA, *resp.VariantB)
	errY := avg.Data[0]["error_y"].(map[string]any)
	assert.Equal(t, []float64{24.84, 0}, errY["array"])
	assert.Equal(t, []float64{24.84, 0}, errY["arrayminus"])

	raw, err := avg.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Contains(t, decoded, "layout")
}

func TestAvgTimeChart_NotEnoughData(t *testing.T) {
	fig := AvgTimeChart(models.VariantStats{}, models.VariantStats{})
	assert.Empty(t, fig.Data)
}
