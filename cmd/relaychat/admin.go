package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat/internal/app"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List saved rooms",
	Args:  cobra.NoArgs,
	RunE:  runRooms,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the local profile, rooms, transcripts and preferences",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var flagYes bool

func init() {
	resetCmd.Flags().BoolVar(&flagYes, "yes", false, "confirm deletion of all local data")
}

func runRooms(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	rooms, err := st.LoadRooms(cmd.Context())
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no rooms yet; join one with: relaychat chat <topic>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOPIC\tUNREAD\tLAST MESSAGE")
	for _, r := range rooms {
		last := "-"
		if r.LastMessage != nil {
			last = fmt.Sprintf("%s (%s)", truncate(r.LastMessage.Text, 40), time.UnixMilli(r.LastMessage.Timestamp).Format(time.DateTime))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Name, r.Topic, r.UnreadCount, last)
	}
	return w.Flush()
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !flagYes {
		return errors.New("refusing to delete local data without --yes")
	}
	cfg, logger, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(cmd.Context()); err != nil {
		return err
	}
	logger.Info().Str("path", cfg.Store.Path).Msg("local data cleared")
	fmt.Fprintln(cmd.OutOrStdout(), "local data cleared")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
