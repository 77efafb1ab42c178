package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/chzyer/readline"
)

// IsTerminal reports whether stdin is an interactive terminal.
func IsTerminal() bool {
	return readline.IsTerminal(int(os.Stdin.Fd()))
}

// RunTerminal is Run with line editing, history and tab completion.
func (t *Table) RunTerminal(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile(),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          t.out,
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(t.out, "Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(t.out, "Use 'quit' to leave the table")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		quit, err := t.Exec(ctx, line)
		if err != nil {
			t.report(err)
		}
		if quit {
			return nil
		}
	}
}

func completer() *readline.PrefixCompleter {
	names := []string{"deal", "ace", "balance", "history", "help", "quit"}
	for name := range shortcuts {
		if len(name) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	pc := readline.NewPrefixCompleter()
	for _, name := range names {
		pc.Children = append(pc.Children, readline.PcItem(name))
	}
	return pc
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "blackjack_history")
}
