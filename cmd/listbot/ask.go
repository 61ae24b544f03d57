package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
)

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask",
		Short: "Chat with the corpus in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, envFlag(cmd), true)
			if err != nil {
				return err
			}
			defer a.Close()

			return chatLoop(ctx, a.pipeline(), a.cfg.Conversation.MaxTurns, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// answerer is the part of the pipeline the terminal loop needs.
type answerer interface {
	Answer(ctx context.Context, q conversation.Query) (chatuc.Result, conversation.State)
}

// chatLoop reads one question per line and keeps the conversation state
// between turns. It ends on an exit word, EOF or cancellation.
func chatLoop(ctx context.Context, p answerer, maxTurns int, in io.Reader, out io.Writer) error {
	state := conversation.NewState(nil, "", maxTurns)
	sc := bufio.NewScanner(in)

	fmt.Fprintln(out, "Ask a question about the listings. Type exit to leave.")
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		question := strings.TrimSpace(sc.Text())
		if question == "" {
			continue
		}
		if exitWords[strings.ToLower(question)] {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		var res chatuc.Result
		res, state = p.Answer(ctx, conversation.NewQuery(question, state))
		fmt.Fprintln(out, res.Answer)
		fmt.Fprintln(out)
	}
}
