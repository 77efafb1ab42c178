package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/fileutil"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/store"
)

// HistoryCmd prints settled games, or exports every matching page as JSON.
type HistoryCmd struct {
	Server  string `kong:"default='http://localhost:8080',help='Server URL'"`
	User    string `kong:"help='Player ID to filter by'"`
	Token   string `kong:"env='BLACKJACK_TOKEN',help='Bearer token when the server requires auth'"`
	Result  string `kong:"help='Result filter (win, lose, push, blackjack, surrender, all)'"`
	Limit   int    `kong:"default='20',help='Games per page'"`
	Offset  int    `kong:"help='Games to skip'"`
	Output  string `kong:"short='o',help='Write all matching games as JSON to this file'"`
	NoColor bool   `kong:"name='no-color',help='Disable colored output'"`
}

func (c *HistoryCmd) Run() error {
	logger := shared.SetupConsoleLogger("warn")
	cl, err := client.New(c.Server, client.Options{Token: c.Token, Logger: logger})
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q := client.HistoryQuery{UserID: c.User, Result: c.Result, Limit: c.Limit, Offset: c.Offset}
	if c.Output == "" {
		page, err := cl.History(ctx, q)
		if err != nil {
			return err
		}
		fmt.Println(client.NewRenderer(client.NewStyles(!c.NoColor)).History(page))
		return nil
	}

	export, err := collectHistory(ctx, cl, q)
	if err != nil {
		return err
	}
	if err := writeExport(c.Output, export); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d games to %s\n", len(export.Games), c.Output)
	return nil
}

// collectHistory follows pagination until the server reports no more games.
func collectHistory(ctx context.Context, cl *client.Client, q client.HistoryQuery) (*protocol.History, error) {
	if q.Limit <= 0 || q.Limit > store.MaxHistoryLimit {
		q.Limit = store.MaxHistoryLimit
	}

	var all *protocol.History
	for {
		page, err := cl.History(ctx, q)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = page
		} else {
			all.Games = append(all.Games, page.Games...)
		}
		if !page.Pagination.HasMore || len(page.Games) == 0 {
			break
		}
		q.Offset += len(page.Games)
	}

	all.Pagination.Limit = len(all.Games)
	all.Pagination.HasMore = false
	return all, nil
}

func writeExport(path string, h *protocol.History) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	})
}
