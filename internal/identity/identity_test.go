package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	kv "github.com/CodeAndHammer/wordsprint/internal/kv"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

func fixed(values ...int) Intn {
	i := 0
	return func(n int) int {
		v := values[i%len(values)] % n
		i++
		return v
	}
}

func TestEnsure_AssignsOnFirstCall(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	// variant draw, adjective draw, animal draw
	id, err := New(store, fixed(1, 2, 4)).Ensure(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.VariantB, id.Variant)
	assert.Equal(t, "Quick Fox", id.Username)
	assert.True(t, strings.HasPrefix(id.UserID, "user_"))
	assert.Len(t, id.UserID, len("user_")+9)

	v, err := store.Get(ctx, constants.KeyVariant)
	require.NoError(t, err)
	assert.Equal(t, "B", v)
}

func TestEnsure_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	first, err := New(store, fixed(0, 0, 0)).Ensure(ctx)
	require.NoError(t, err)

	second, err := New(store, fixed(1, 9, 9)).Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsure_FillsMissingUsernameOnly(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, constants.KeyVariant, "A"))
	require.NoError(t, store.Set(ctx, constants.KeyUserID, "user_existing"))

	id, err := New(store, fixed(9, 9)).Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.VariantA, id.Variant)
	assert.Equal(t, "user_existing", id.UserID)
	assert.Equal(t, "Flash Gazelle", id.Username)
}

func TestLoad_RejectsUnknownVariant(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, constants.KeyVariant, "C"))

	_, err := New(store, nil).Load(ctx)
	assert.Error(t, err)
}

func TestGenerateUsername_CoversAllCombinations(t *testing.T) {
	seen := map[string]bool{}
	for a := 0; a < len(Adjectives); a++ {
		for b := 0; b < len(Animals); b++ {
			seen[New(kv.NewMemory(), fixed(a, b)).GenerateUsername()] = true
		}
	}
	assert.Len(t, seen, 100)
}
