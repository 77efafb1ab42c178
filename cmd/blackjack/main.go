package main

import (
	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the blackjack server"`
	Play    PlayCmd          `cmd:"" help:"Play interactively against a server"`
	History HistoryCmd       `cmd:"" help:"Show or export settled games"`
}

func main() {
	// Amounts go over the wire, and into stored game records, as JSON
	// numbers. Both forms decode.
	decimal.MarshalJSONWithoutQuotes = true

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjack"),
		kong.Description("Blackjack game server and client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
