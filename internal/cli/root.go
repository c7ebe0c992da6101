// Package cli implements the wordsprint terminal client.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	collector "github.com/CodeAndHammer/wordsprint/internal/collector"
	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	identity "github.com/CodeAndHammer/wordsprint/internal/identity"
	kv "github.com/CodeAndHammer/wordsprint/internal/kv"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	StatePath    string
	APIURL       string
	ExperimentID string

	// Intn overrides the identity randomness (for testing).
	Intn identity.Intn
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wordsprint",
		Short: "Word-search sprint: a timed A/B experiment probe",
		Long: `Find every hidden word before the 60 second timer runs out.

Each player is assigned puzzle variant A or B on first run. Attempts are
reported to the experiment collector and the fastest local times are kept
on a leaderboard.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.StatePath, "state", util.GetEnvString("WORDSPRINT_STATE", defaultStatePath()), "path to the local state database")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", util.GetEnvString("WORDSPRINT_API", "http://localhost:8080"), "collector base URL")
	cmd.PersistentFlags().StringVar(&opts.ExperimentID, "experiment", util.GetEnvString("WORDSPRINT_EXPERIMENT", constants.DefaultExperimentID), "experiment id")

	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewDashboardCommand(opts))

	return cmd
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "wordsprint.db"
	}
	return filepath.Join(dir, "wordsprint", "state.db")
}

func (o *RootOptions) openState() (*kv.SQLite, error) {
	if dir := filepath.Dir(o.StatePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	return kv.OpenSQLite(o.StatePath)
}

func (o *RootOptions) identityStore(store kv.Store) *identity.Store {
	intn := o.Intn
	if intn == nil {
		intn = identity.CryptoIntn
	}
	return identity.New(store, intn)
}

func (o *RootOptions) collector() *collector.Client {
	return collector.New(o.APIURL, o.ExperimentID)
}
