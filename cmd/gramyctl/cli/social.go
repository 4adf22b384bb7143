package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gramy/gramy/internal/client"
	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
)

func parseGameID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id %q", raw)
	}
	return id, nil
}

// parseStatus maps "none" to the empty status, which removes it.
func parseStatus(raw string) (games.Status, error) {
	if raw == "none" || raw == "" {
		return "", nil
	}
	status := games.Status(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

func newLoginCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials and print the signed-in user id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Email == "" {
				return fmt.Errorf("--email is required")
			}
			c, err := client.New(opts.BaseURL, nil)
			if err != nil {
				return err
			}
			info, err := c.Login(cmd.Context(), opts.Email, opts.Password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", info.UserID)
			return nil
		},
	}
}

func newLikeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "like <review-id>",
		Short: "Toggle your like on a review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := session(cmd, opts)
			if err != nil {
				return err
			}
			state, err := client.NewLikes(c).Toggle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			verb := "unliked"
			if state.Liked {
				verb = "liked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "review %s %s (%d likes)\n", state.ReviewID, verb, state.Likes)
			return nil
		},
	}
}

func newFollowCommand(opts *Options) *cobra.Command {
	var unfollow bool
	cmd := &cobra.Command{
		Use:   "follow <user-id>",
		Short: "Follow or unfollow a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := session(cmd, opts)
			if err != nil {
				return err
			}
			f := client.NewFollows(c)
			// Seed the opposite relation so the prediction is a real change.
			f.Seed(args[0], follows.State{Following: unfollow})
			state, err := f.Set(cmd.Context(), args[0], !unfollow)
			if err != nil {
				return err
			}
			verb := "not following"
			if state.Following {
				verb = "following"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d followers)\n", verb, args[0], state.Followers)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unfollow, "unfollow", false, "stop following instead")
	return cmd
}

func newStatusCommand(opts *Options) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "status <game-id> <status|none>",
		Short: "Set or clear your play status for a game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			previous, err := parseStatus(from)
			if err != nil {
				return err
			}
			c, err := session(cmd, opts)
			if err != nil {
				return err
			}
			statuses := client.NewStatuses(c)
			statuses.Seed(games.StatusState{GameID: gameID, Status: previous})
			state, err := statuses.Set(cmd.Context(), gameID, status)
			if err != nil {
				printStatus(cmd.OutOrStdout(), "reverted to", state)
				return err
			}
			printStatus(cmd.OutOrStdout(), "now", state)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "status currently shown, restored on failure")
	return cmd
}

func printStatus(w io.Writer, prefix string, state games.StatusState) {
	label := "no status"
	if state.Status != "" {
		label = state.Status.Label()
	}
	fmt.Fprintf(w, "game %d %s: %s\n", state.GameID, prefix, label)
}

func newToggleCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <collection-id> <game-id>",
		Short: "Add a game to a collection or remove it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameID(args[1])
			if err != nil {
				return err
			}
			c, err := session(cmd, opts)
			if err != nil {
				return err
			}
			key := client.MembershipKey{CollectionID: args[0], GameID: gameID}
			state, err := client.NewMemberships(c).Toggle(cmd.Context(), key)
			if err != nil {
				return err
			}
			verb := "removed from"
			if state.InCollection {
				verb = "added to"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "game %d %s collection %s\n", gameID, verb, args[0])
			return nil
		},
	}
}

func newLogsCommand(opts *Options) *cobra.Command {
	logs := &cobra.Command{
		Use:   "logs",
		Short: "List and record play sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <game-id>",
		Short: "List your logs for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			c, err := session(cmd, opts)
			if err != nil {
				return err
			}
			entries, err := c.ListGameLogs(cmd.Context(), gameID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no logs")
				return nil
			}
			for _, l := range entries {
				hours := "-"
				if l.HoursPlayed != nil {
					hours = strconv.FormatFloat(*l.HoursPlayed, 'f', -1, 64)
				}
				fmt.Fprintf(out, "%s\t%s\tplays=%d\thours=%s\tcompleted=%t\n", l.ID, l.CreatedAt.Format("2006-01-02"), l.PlayCount, hours, l.Completed)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum logs to list")

	var (
		hours     float64
		completed bool
		notes     string
	)
	add := &cobra.Command{
		Use:   "add <game-id>",
		Short: "Record a play session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			in := client.GameLog{GameID: gameID}
			if cmd.Flags().Changed("hours") {
				in.HoursPlayed = &hours
			}
			if cmd.Flags().Changed("completed") {
				in.Completed = &completed
			}
			if notes != "" {
				in.Notes = &notes
			}
			c, err := session(cmd, opts)
			if err != nil {
				return err
			}
			created, err := c.CreateGameLog(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged %s\n", created.ID)
			return nil
		},
	}
	add.Flags().Float64Var(&hours, "hours", 0, "hours played")
	add.Flags().BoolVar(&completed, "completed", false, "mark the session as completing the game")
	add.Flags().StringVar(&notes, "notes", "", "free-form notes")

	logs.AddCommand(list, add)
	return logs
}
