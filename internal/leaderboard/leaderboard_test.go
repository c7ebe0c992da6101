package leaderboard

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	kv "github.com/CodeAndHammer/wordsprint/internal/kv"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

func newBoard() (*Board, *kv.Memory) {
	store := kv.NewMemory()
	b := New(store)
	b.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return b, store
}

func TestRecordAttempt_FirstEntryIsPersonalBest(t *testing.T) {
	ctx := context.Background()
	b, _ := newBoard()

	pb, err := b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 14.2)
	require.NoError(t, err)
	assert.True(t, pb)

	entries, err := b.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Swift Fox", entries[0].Username)
	assert.Equal(t, 14.2, entries[0].BestTimeSeconds)
}

func TestRecordAttempt_FasterOverwrites(t *testing.T) {
	ctx := context.Background()
	b, _ := newBoard()

	_, err := b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 14.2)
	require.NoError(t, err)
	pb, err := b.RecordAttempt(ctx, "Swift Fox", models.VariantB, 11.0)
	require.NoError(t, err)
	assert.True(t, pb)

	entries, err := b.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 11.0, entries[0].BestTimeSeconds)
	assert.Equal(t, models.VariantB, entries[0].Variant)
}

func TestRecordAttempt_NonImprovingIsNoop(t *testing.T) {
	ctx := context.Background()
	b, store := newBoard()

	_, err := b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 14.2)
	require.NoError(t, err)
	before, err := store.Get(ctx, constants.KeyLeaderboard)
	require.NoError(t, err)

	for _, secs := range []float64{14.2, 20, 59.9} {
		pb, err := b.RecordAttempt(ctx, "Swift Fox", models.VariantA, secs)
		require.NoError(t, err)
		assert.False(t, pb)
	}

	after, err := store.Get(ctx, constants.KeyLeaderboard)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordAttempt_SortedAndCapped(t *testing.T) {
	ctx := context.Background()
	b, _ := newBoard()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 120; i++ {
		user := fmt.Sprintf("user-%d", rng.Intn(80))
		_, err := b.RecordAttempt(ctx, user, models.VariantA, 1+rng.Float64()*58)
		require.NoError(t, err)

		entries, err := b.Entries(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(entries), constants.LeaderboardCapacity)
		assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool {
			return entries[i].BestTimeSeconds < entries[j].BestTimeSeconds
		}))
	}
}

func TestRender_IsReadOnly(t *testing.T) {
	ctx := context.Background()
	b, store := newBoard()
	_, err := b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 14.2)
	require.NoError(t, err)
	before, _ := store.Get(ctx, constants.KeyLeaderboard)

	_, err = b.Render(ctx, RenderOptions{TopN: 1, Username: "Swift Fox", AttemptSeconds: 30})
	require.NoError(t, err)

	after, _ := store.Get(ctx, constants.KeyLeaderboard)
	assert.Equal(t, before, after)
}

func TestRender_MarksCurrentUser(t *testing.T) {
	ctx := context.Background()
	b, _ := newBoard()
	_, _ = b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 12.5)
	_, _ = b.RecordAttempt(ctx, "Quick Hawk", models.VariantB, 15.25)

	view, err := b.Render(ctx, RenderOptions{TopN: 5, Username: "Quick Hawk"})
	require.NoError(t, err)
	require.Len(t, view.Rows, 2)
	assert.False(t, view.Rows[0].IsCurrentUser)
	assert.True(t, view.Rows[1].IsCurrentUser)
	assert.Nil(t, view.CurrentUser)
	assert.Nil(t, view.Attempt)
}

func TestRender_Golden(t *testing.T) {
	ctx := context.Background()
	b, _ := newBoard()
	_, _ = b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 12.5)
	_, _ = b.RecordAttempt(ctx, "Quick Hawk", models.VariantB, 15.25)
	_, _ = b.RecordAttempt(ctx, "Turbo Wolf", models.VariantA, 9.8)
	_, _ = b.RecordAttempt(ctx, "Sonic Eagle", models.VariantB, 30)

	view, err := b.Render(ctx, RenderOptions{TopN: 2, Username: "Sonic Eagle", AttemptSeconds: 41.2})
	require.NoError(t, err)
	require.NotNil(t, view.CurrentUser)
	assert.Equal(t, 4, view.CurrentUser.Rank)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "leaderboard_outside_top", []byte(Format(view)))
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "Complete a challenge to appear here\n", Format(View{}))
}

func TestEntries_CorruptData(t *testing.T) {
	ctx := context.Background()
	b, store := newBoard()
	require.NoError(t, store.Set(ctx, constants.KeyLeaderboard, "{not json"))

	_, err := b.Entries(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = b.RecordAttempt(ctx, "Swift Fox", models.VariantA, 10)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRecordAttempt_DeterministicAcrossRenders(t *testing.T) {
	ctx := context.Background()
	calls := []struct {
		user string
		secs float64
	}{{"a", 30}, {"b", 20}, {"a", 25}, {"c", 40}, {"b", 22}}

	plain, plainStore := newBoard()
	interleaved, interleavedStore := newBoard()
	for _, c := range calls {
		_, err := plain.RecordAttempt(ctx, c.user, models.VariantA, c.secs)
		require.NoError(t, err)
		_, err = interleaved.RecordAttempt(ctx, c.user, models.VariantA, c.secs)
		require.NoError(t, err)
		_, err = interleaved.Render(ctx, RenderOptions{TopN: 1, Username: c.user, AttemptSeconds: c.secs})
		require.NoError(t, err)
	}

	a, _ := plainStore.Get(ctx, constants.KeyLeaderboard)
	b, _ := interleavedStore.Get(ctx, constants.KeyLeaderboard)
	assert.Equal(t, a, b)
}
