package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"WebResearcher/internal/domain"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Replay a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum conversations to list")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	application, _, _ := newApplication()
	defer application.Close()

	history, err := application.History(cmd.Context())
	if err != nil {
		return err
	}
	list, err := history.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no saved conversations")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tMESSAGES\tTITLE")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, c.UpdatedAt.Local().Format("2006-01-02 15:04"), c.MessageCount, c.Title)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	application, _, _ := newApplication()
	defer application.Close()

	history, err := application.History(cmd.Context())
	if err != nil {
		return err
	}
	conv, err := history.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n", conv.Title)
	for _, msg := range conv.Messages {
		switch msg.Role {
		case domain.RoleUser:
			fmt.Fprintf(out, "\n> %s\n\n", msg.Content)
		case domain.RoleAssistant:
			if len(msg.SearchEvents) == 0 {
				fmt.Fprintln(out, msg.Content)
				continue
			}
			printer := newPrinter(out, verbose)
			for _, e := range msg.SearchEvents {
				printer.Print(e)
			}
		}
	}
	return nil
}
