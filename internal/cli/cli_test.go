package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

func zeroIntn(int) int { return 0 }

func testOptions(t *testing.T, apiURL string) *RootOptions {
	t.Helper()
	return &RootOptions{
		StatePath:    filepath.Join(t.TempDir(), "state", "state.db"),
		APIURL:       apiURL,
		ExperimentID: "exp-test",
		Intn:         zeroIntn,
	}
}

// fakeCollector answers the collector routes and records track posts.
type fakeCollector struct {
	mu      sync.Mutex
	tracked []models.TrackRequest
}

func (f *fakeCollector) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.tracked))
	for _, r := range f.tracked {
		out = append(out, r.ActionType)
	}
	return out
}

func (f *fakeCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case constants.RouteTrack:
		var req models.TrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.tracked = append(f.tracked, req)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"success","data":[]}`))
	case constants.RouteStats:
		_, _ = w.Write([]byte(`{"status":"success","variant_a":{"n_users":2,"conversions":1,"conversion_rate":0.5},"variant_b":{"n_users":1,"conversions":0,"conversion_rate":0}}`))
	case constants.RouteUserPercentile:
		_, _ = w.Write([]byte(`{"status":"success","percentile":80}`))
	case constants.RouteFunnelChart:
		_, _ = w.Write([]byte(`{"status":"success","chart":"{\"data\":[{},{}],\"layout\":{\"title\":{\"text\":\"User Funnel: Variant A vs B\"}}}"}`))
	default:
		_, _ = w.Write([]byte(`{"status":"error","message":"No data available"}`))
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"play", "leaderboard", "whoami", "dashboard"})

	for _, flag := range []string{"state", "api", "experiment"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestWhoami_AssignsStableIdentity(t *testing.T) {
	opts := testOptions(t, "http://unused")

	run := func() string {
		var out bytes.Buffer
		cmd := NewWhoamiCommand(opts)
		cmd.SetOut(&out)
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		return out.String()
	}

	first := run()
	assert.Contains(t, first, "Username:   Lightning Leopard")
	assert.Contains(t, first, "Variant:    A")
	assert.Contains(t, first, "Letters:    M A T H E M A T I C S L O W")
	assert.Contains(t, first, "Find 3 words")

	assert.Equal(t, first, run())
}

func TestLeaderboard_Empty(t *testing.T) {
	opts := testOptions(t, "http://unused")

	var out bytes.Buffer
	cmd := NewLeaderboardCommand(opts)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--top", "5"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, "Complete a challenge to appear here\n", out.String())
}

func TestPlay_CompletesAndRecords(t *testing.T) {
	collector := &fakeCollector{}
	srv := httptest.NewServer(collector)
	defer srv.Close()
	opts := testOptions(t, srv.URL)

	var out bytes.Buffer
	in := strings.NewReader("start\nmath\nnope\nthem\nmace\nquit\n")
	require.NoError(t, runPlay(context.Background(), opts, in, &out))

	text := out.String()
	assert.Contains(t, text, "Lightning Leopard, you are playing variant A")
	assert.Contains(t, text, "Go!")
	assert.Contains(t, text, "✓ MATH")
	assert.Contains(t, text, "✗ NOPE")
	assert.Contains(t, text, "Completed in")
	assert.Contains(t, text, "🏆 Leaderboard")
	assert.Contains(t, text, "Lightning Leopard 🌟")

	assert.Equal(t, []string{constants.ActionStarted, constants.ActionCompleted}, collector.actions())
	collector.mu.Lock()
	defer collector.mu.Unlock()
	for _, req := range collector.tracked {
		assert.Equal(t, "exp-test", req.ExperimentID)
		assert.Equal(t, models.VariantA, req.Variant)
	}
	done := collector.tracked[1]
	require.NotNil(t, done.Success)
	assert.True(t, *done.Success)
	require.NotNil(t, done.CorrectWordsCount)
	assert.Equal(t, 3, *done.CorrectWordsCount)
	require.NotNil(t, done.TotalGuessesCount)
	assert.Equal(t, 4, *done.TotalGuessesCount)
}

func TestPlay_QuitBeforeStartSendsNothing(t *testing.T) {
	collector := &fakeCollector{}
	srv := httptest.NewServer(collector)
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, runPlay(context.Background(), testOptions(t, srv.URL), strings.NewReader("quit\n"), &out))

	assert.Empty(t, collector.actions())
	assert.Contains(t, out.String(), "Complete a challenge to appear here")
}

func TestDashboard_Once(t *testing.T) {
	srv := httptest.NewServer(&fakeCollector{})
	defer srv.Close()

	opts := &DashboardOptions{RootOptions: testOptions(t, srv.URL), Once: true}
	var out bytes.Buffer
	require.NoError(t, runDashboard(context.Background(), opts, &out))

	text := out.String()
	assert.Contains(t, text, "== STATS")
	assert.Contains(t, text, "== FUNNEL")
	assert.Contains(t, text, "== TIME DISTRIBUTION")
	assert.Contains(t, text, "== COMPARISON")
	assert.Contains(t, text, "User Funnel: Variant A vs B (2 series)")
	assert.Contains(t, text, "No data available")
}
