package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	kv "github.com/CodeAndHammer/wordsprint/internal/kv"
	leaderboard "github.com/CodeAndHammer/wordsprint/internal/leaderboard"
)

func NewLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the fastest local times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openState()
			if err != nil {
				return err
			}
			defer store.Close()

			username := ""
			id, err := opts.identityStore(store).Load(cmd.Context())
			switch {
			case err == nil:
				username = id.Username
			case !errors.Is(err, kv.ErrNotFound):
				return err
			}

			view, err := leaderboard.New(store).Render(cmd.Context(), leaderboard.RenderOptions{TopN: top, Username: username})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), leaderboard.Format(view))
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", constants.LeaderboardTopN, "number of rows to show")
	return cmd
}
