package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	kv "github.com/CodeAndHammer/wordsprint/internal/kv"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

var Adjectives = []string{"Lightning", "Swift", "Quick", "Speedy", "Rapid", "Fast", "Blazing", "Turbo", "Sonic", "Flash"}

var Animals = []string{"Leopard", "Cheetah", "Falcon", "Hawk", "Fox", "Wolf", "Tiger", "Eagle", "Panther", "Gazelle"}

// Intn returns a uniform value in [0, n).
type Intn func(n int) int

// CryptoIntn draws from crypto/rand, falling back to 0 if the reader fails.
func CryptoIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		util.LogWarn("Error generating random number: %v, using fallback", err)
		return 0
	}
	return int(v.Int64())
}

type Store struct {
	kv   kv.Store
	intn Intn
}

func New(store kv.Store, intn Intn) *Store {
	if intn == nil {
		intn = CryptoIntn
	}
	return &Store{kv: store, intn: intn}
}

func (s *Store) GenerateUsername() string {
	return Adjectives[s.intn(len(Adjectives))] + " " + Animals[s.intn(len(Animals))]
}

func (s *Store) generateUserID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// Ensure assigns variant, user id and username on first call and returns the
// persisted identity. Later calls only read.
func (s *Store) Ensure(ctx context.Context) (models.Identity, error) {
	if _, err := s.kv.Get(ctx, constants.KeyVariant); errors.Is(err, kv.ErrNotFound) {
		variant := models.VariantA
		if s.intn(2) == 1 {
			variant = models.VariantB
		}
		if err := s.kv.Set(ctx, constants.KeyVariant, string(variant)); err != nil {
			return models.Identity{}, fmt.Errorf("persist variant: %w", err)
		}
		if err := s.kv.Set(ctx, constants.KeyUserID, s.generateUserID()); err != nil {
			return models.Identity{}, fmt.Errorf("persist user id: %w", err)
		}
		util.LogInfo("Assigned variant %s to new user", variant)
	} else if err != nil {
		return models.Identity{}, fmt.Errorf("read variant: %w", err)
	}

	if _, err := s.kv.Get(ctx, constants.KeyUsername); errors.Is(err, kv.ErrNotFound) {
		if err := s.kv.Set(ctx, constants.KeyUsername, s.GenerateUsername()); err != nil {
			return models.Identity{}, fmt.Errorf("persist username: %w", err)
		}
	} else if err != nil {
		return models.Identity{}, fmt.Errorf("read username: %w", err)
	}

	return s.Load(ctx)
}

func (s *Store) Load(ctx context.Context) (models.Identity, error) {
	variant, err := s.kv.Get(ctx, constants.KeyVariant)
	if err != nil {
		return models.Identity{}, fmt.Errorf("read variant: %w", err)
	}
	userID, err := kv.GetOr(ctx, s.kv, constants.KeyUserID, "")
	if err != nil {
		return models.Identity{}, fmt.Errorf("read user id: %w", err)
	}
	username, err := kv.GetOr(ctx, s.kv, constants.KeyUsername, "")
	if err != nil {
		return models.Identity{}, fmt.Errorf("read username: %w", err)
	}
	id := models.Identity{UserID: userID, Username: username, Variant: models.Variant(variant)}
	if !id.Variant.Valid() {
		return models.Identity{}, fmt.Errorf("stored variant %q is not A or B", variant)
	}
	return id, nil
}
