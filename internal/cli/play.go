package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	game "github.com/CodeAndHammer/wordsprint/internal/game"
	leaderboard "github.com/CodeAndHammer/wordsprint/internal/leaderboard"
	telemetry "github.com/CodeAndHammer/wordsprint/internal/telemetry"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

const playHelp = `Commands: start | again | reset | quit. Anything else is a guess.`

func NewPlayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the timed word-search challenge",
		Long: `Play the timed word-search challenge.

Type "start" to begin the 60 second timer, then type words one per line.
"again" starts over after a finished attempt, "reset" abandons the current
one and "quit" exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runPlay(ctx context.Context, opts *RootOptions, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := opts.openState()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := opts.identityStore(store).Ensure(ctx)
	if err != nil {
		return err
	}

	api := opts.collector()
	tracker := telemetry.New(api, opts.ExperimentID, id.UserID)
	board := leaderboard.New(store)
	renderer := &terminalRenderer{w: out}

	ctrl, err := game.NewController(id, game.ControllerOptions{
		Renderer: renderer,
		Tracker:  tracker,
		Recorder: board,
		Comparer: api,
	})
	if err != nil {
		return err
	}

	cfg := ctrl.Session.Config
	fmt.Fprintf(out, "%s, you are playing variant %s (difficulty %d/10).\n", id.Username, id.Variant, cfg.Difficulty)
	fmt.Fprintf(out, "Letters: %s\nFind %d words.\n%s\n", strings.Join(cfg.Letters, " "), cfg.TargetCount, playHelp)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(runCtx) }()

	scanner := bufio.NewScanner(in)
input:
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "start", "s":
			ctrl.Submit(game.Start{})
		case "again", "repeat":
			ctrl.Submit(game.Reset{Repeat: true})
			ctrl.Submit(game.Start{})
		case "reset":
			ctrl.Submit(game.Reset{})
		case "quit", "q", "exit":
			break input
		default:
			ctrl.Submit(game.SubmitWord{Word: line})
		}
	}
	if err := scanner.Err(); err != nil {
		util.LogWarn("Error reading input: %v", err)
	}

	ctrl.Close()
	runErr := <-done
	tracker.Wait()

	var attempt float64
	if ms := ctrl.Session.CompletionTimeMs; ms != nil && ctrl.Session.Phase() == game.PhaseCompleted {
		attempt = float64(*ms) / 1000
	}
	view, err := board.Render(ctx, leaderboard.RenderOptions{Username: id.Username, AttemptSeconds: attempt})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n🏆 Leaderboard\n%s", leaderboard.Format(view))
	return runErr
}

// terminalRenderer prints session effects as lines of text.
type terminalRenderer struct {
	mu        sync.Mutex
	w         io.Writer
	lastShown int64
}

func (r *terminalRenderer) Show(effect game.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := effect.(type) {
	case game.TimerUpdate:
		secs := int64(e.Remaining / time.Second)
		// Full countdown lines every ten seconds and for the last five.
		if secs != r.lastShown && (secs%10 == 0 || secs <= 5) {
			r.lastShown = secs
			fmt.Fprintf(r.w, "⏱  %s\n", util.FormatClock(e.Remaining))
		}
	case game.StartTimer:
		r.lastShown = -1
		fmt.Fprintln(r.w, "Go!")
	case game.WordAccepted:
		fmt.Fprintf(r.w, "✓ %s  (%s)\n", e.Word, strings.Join(e.Found, ", "))
	case game.WordRejected:
		fmt.Fprintf(r.w, "✗ %s\n", e.Word)
	case game.Completed:
		fmt.Fprintf(r.w, "Completed in %s with %d guesses!\n", util.FormatClock(time.Duration(e.ElapsedMs)*time.Millisecond), e.Guesses)
	case game.Failed:
		fmt.Fprintf(r.w, "Time's up! You found %d of %d words.\n", e.Found, e.Target)
	case game.PersonalBest:
		fmt.Fprintf(r.w, "🏆 New personal best: %.2fs\n", e.Seconds)
	case game.ShowComparison:
		fmt.Fprintln(r.w, e.Text)
	case game.Cleared:
		fmt.Fprintln(r.w, "Board cleared.")
	}
}
