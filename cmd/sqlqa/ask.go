package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"sql-question-agent/internal/usecase"
)

type asker interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var visualize bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question, or start an interactive prompt when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, _, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				res, err := a.Service.Ask(ctx, usecase.AskInput{Question: args[0], Visualize: visualize})
				if err != nil {
					return err
				}
				printAnswer(out, res)
				return nil
			}
			return repl(ctx, a.Service, out, visualize)
		},
	}
	cmd.Flags().BoolVar(&visualize, "visualize", true, "extract chart data from the agent trace")
	return cmd
}

// repl reads questions until EOF, carrying the conversation between them.
func repl(ctx context.Context, svc asker, out io.Writer, visualize bool) error {
	cfg := &readline.Config{
		Prompt:          "question> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, ".sqlqa_history")
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return fmt.Errorf("start prompt: %w", err)
	}
	defer rl.Close()

	var conversationID string
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		question := strings.TrimSpace(line)
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := svc.Ask(ctx, usecase.AskInput{Question: question, ConversationID: conversationID, Visualize: visualize})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n\n", err)
			continue
		}
		conversationID = res.ConversationID
		printAnswer(out, res)
	}
}

func printAnswer(w io.Writer, res usecase.AskOutput) {
	for _, s := range res.Steps {
		fmt.Fprintf(w, "=== %s ===\n%s\n\n", s.Type, s.Content)
	}
	fmt.Fprintf(w, "Answer: %s\n", res.FinalAnswer)

	if c := res.Visualization; c != nil && c.Len() > 0 {
		fmt.Fprintln(w, "\nChart:")
		width := 0
		for _, l := range c.Labels {
			width = max(width, len(l))
		}
		for i, l := range c.Labels {
			fmt.Fprintf(w, "  %-*s  %s\n", width, l, strconv.FormatFloat(c.Values[i], 'f', -1, 64))
		}
	}
	fmt.Fprintln(w)
}
