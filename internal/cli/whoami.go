package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	game "github.com/CodeAndHammer/wordsprint/internal/game"
)

func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show your variant, username and puzzle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openState()
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := opts.identityStore(store).Ensure(cmd.Context())
			if err != nil {
				return err
			}
			cfg, _ := game.ConfigFor(id.Variant)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Username:   %s\n", id.Username)
			fmt.Fprintf(out, "User ID:    %s\n", id.UserID)
			fmt.Fprintf(out, "Variant:    %s\n", id.Variant)
			fmt.Fprintf(out, "Difficulty: %d/10\n", cfg.Difficulty)
			fmt.Fprintf(out, "Letters:    %s\n", strings.Join(cfg.Letters, " "))
			fmt.Fprintf(out, "Find %d words\n", cfg.TargetCount)
			return nil
		},
	}
}
