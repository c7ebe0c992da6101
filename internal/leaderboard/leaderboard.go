package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	kv "github.com/CodeAndHammer/wordsprint/internal/kv"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

var ErrCorrupt = errors.New("leaderboard: stored data is corrupt")

// Board keeps one best time per username, fastest first, capped in size.
type Board struct {
	store    kv.Store
	capacity int
	now      func() time.Time
}

func New(store kv.Store) *Board {
	return &Board{store: store, capacity: constants.LeaderboardCapacity, now: time.Now}
}

func (b *Board) Entries(ctx context.Context) ([]models.LeaderboardEntry, error) {
	raw, err := b.store.Get(ctx, constants.KeyLeaderboard)
	if errors.Is(err, kv.ErrNotFound) {
		return []models.LeaderboardEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	sortEntries(entries)
	return entries, nil
}

// RecordAttempt stores seconds as the user's time if it is their first or a
// strictly faster one, and reports whether it became their personal best.
func (b *Board) RecordAttempt(ctx context.Context, username string, variant models.Variant, seconds float64) (bool, error) {
	entries, err := b.Entries(ctx)
	if err != nil {
		return false, err
	}

	_, idx, found := lo.FindIndexOf(entries, func(e models.LeaderboardEntry) bool {
		return e.Username == username
	})
	entry := models.LeaderboardEntry{
		Username:        username,
		BestTimeSeconds: seconds,
		Variant:         variant,
		Timestamp:       b.now().UTC(),
	}
	switch {
	case !found:
		entries = append(entries, entry)
	case seconds < entries[idx].BestTimeSeconds:
		entries[idx] = entry
	default:
		return false, nil
	}

	sortEntries(entries)
	if len(entries) > b.capacity {
		entries = entries[:b.capacity]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := b.store.Set(ctx, constants.KeyLeaderboard, string(data)); err != nil {
		return false, fmt.Errorf("save leaderboard: %w", err)
	}
	return true, nil
}

func sortEntries(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BestTimeSeconds < entries[j].BestTimeSeconds
	})
}

type Row struct {
	Rank          int
	Username      string
	Seconds       float64
	Variant       models.Variant
	IsCurrentUser bool
}

type View struct {
	Rows []Row
	// CurrentUser is set when the current user ranks outside the top rows.
	CurrentUser *Row
	// Attempt is set when the latest attempt was slower than the stored best.
	Attempt *AttemptNote
}

type AttemptNote struct {
	Seconds     float64
	BestSeconds float64
}

type RenderOptions struct {
	TopN           int
	Username       string
	AttemptSeconds float64
}

// Render builds a read-only view of the fastest entries.
func (b *Board) Render(ctx context.Context, opts RenderOptions) (View, error) {
	entries, err := b.Entries(ctx)
	if err != nil {
		return View{}, err
	}
	if opts.TopN <= 0 {
		opts.TopN = constants.LeaderboardTopN
	}

	var view View
	for i, e := range entries {
		row := Row{
			Rank:          i + 1,
			Username:      e.Username,
			Seconds:       e.BestTimeSeconds,
			Variant:       e.Variant,
			IsCurrentUser: e.Username == opts.Username,
		}
		if i < opts.TopN {
			view.Rows = append(view.Rows, row)
			continue
		}
		if row.IsCurrentUser {
			view.CurrentUser = &row
		}
	}

	if opts.AttemptSeconds > 0 {
		if best, ok := lo.Find(entries, func(e models.LeaderboardEntry) bool { return e.Username == opts.Username }); ok && opts.AttemptSeconds > best.BestTimeSeconds {
			view.Attempt = &AttemptNote{Seconds: opts.AttemptSeconds, BestSeconds: best.BestTimeSeconds}
		}
	}
	return view, nil
}

// Format renders a view as terminal text.
func Format(v View) string {
	if len(v.Rows) == 0 {
		return "Complete a challenge to appear here\n"
	}
	var sb strings.Builder
	for _, r := range v.Rows {
		badge := ""
		if r.IsCurrentUser {
			badge = " 🌟"
		}
		fmt.Fprintf(&sb, "%2d. %-24s %7.2fs  [%s]\n", r.Rank, r.Username+badge, r.Seconds, r.Variant)
	}
	if v.CurrentUser != nil {
		sb.WriteString("    ...\n")
		fmt.Fprintf(&sb, "%2d. %-24s %7.2fs  [%s]\n", v.CurrentUser.Rank, v.CurrentUser.Username+" 🌟", v.CurrentUser.Seconds, v.CurrentUser.Variant)
	}
	if v.Attempt != nil {
		sb.WriteString("- - - - - - - - - - - - - - - - - - -\n")
		fmt.Fprintf(&sb, "This attempt: %.2fs   Your Best: %.2fs\n", v.Attempt.Seconds, v.Attempt.BestSeconds)
	}
	return sb.String()
}
