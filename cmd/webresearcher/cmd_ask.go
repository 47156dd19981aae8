package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/eventbus"
	"WebResearcher/internal/usecase"
)

var (
	saveConversation bool
	conversationID   string
	providerKeys     map[string]string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Research a question and stream the answer",
	Long: `Search the web for the question, read the best sources and stream an
answer that cites them as [n].

With --conversation the saved exchange is used as context, so follow-up
questions can refer to earlier answers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&saveConversation, "save", "s", false, "Save the exchange to the conversation history")
	askCmd.Flags().StringVar(&conversationID, "conversation", "", "Continue a saved conversation (implies --save)")
	askCmd.Flags().StringToStringVar(&providerKeys, "key", nil, "Per-request provider key, e.g. --key tavily=tvly-...")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	application, cfg, logger := newApplication()
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var (
		history *usecase.History
		conv    domain.Conversation
	)
	if saveConversation || conversationID != "" {
		var err error
		if history, err = application.History(ctx); err != nil {
			return err
		}
		if conv, err = history.Load(ctx, conversationID); err != nil {
			return err
		}
	}

	run := application.Engine().Start(ctx, usecase.Request{
		Query:       question,
		Context:     conv.Turns(),
		Credentials: domain.Credentials(providerKeys),
	})

	printer := newPrinter(cmd.OutOrStdout(), verbose)
	transcript, watchErr := eventbus.Watch(ctx, run.Bus(), cfg.Stream.IdleTimeout, printer.Print, logger)
	runErr := run.Wait()
	if transcript == nil {
		return watchErr
	}

	switch {
	case errors.Is(runErr, domain.ErrCancelled), ctx.Err() != nil:
		return domain.ErrCancelled
	case errors.Is(watchErr, domain.ErrStalled):
		logger.Warn("answer stream stalled, kept partial answer", "request_id", run.ID)
	case runErr != nil:
		return runErr
	}

	result, ok := transcript.Result()
	if history != nil && ok {
		saved, err := history.Record(ctx, conv, question, result.Content, transcript.Events)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nconversation: %s\n", saved.ID)
	}
	return nil
}
