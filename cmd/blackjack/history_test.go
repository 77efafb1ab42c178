package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/gateway"
	"github.com/lox/blackjack/internal/gameid"
	"github.com/lox/blackjack/internal/server"
	"github.com/lox/blackjack/internal/store"
)

// seedHistory stores n settled games for player directly in st.
func seedHistory(t *testing.T, st store.Store, player string, n int) {
	t.Helper()
	ctx := context.Background()
	_, err := st.EnsurePlayer(ctx, player, decimal.NewFromInt(1000))
	require.NoError(t, err)

	ids := gameid.NewGenerator(nil)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		id, err := ids.Generate()
		require.NoError(t, err)
		g := blackjack.NewGame(id, player, decimal.NewFromInt(10), nil, start.Add(time.Duration(i)*time.Minute))
		g.State = blackjack.StatePlaying
		g.CurrentBet = g.BetAmount
		_, err = st.CreateGame(ctx, g, decimal.NewFromInt(-10))
		require.NoError(t, err)

		settled := g.Clone()
		settled.State = blackjack.StateEnded
		settled.Result = blackjack.ResultPush
		settled.WinAmount = decimal.NewFromInt(10)
		settled.Version++
		ended := start.Add(time.Duration(i)*time.Minute + time.Second)
		settled.EndedAt = &ended
		_, err = st.CommitGame(ctx, store.Commit{
			Game:            settled,
			ExpectedState:   blackjack.StatePlaying,
			ExpectedVersion: g.Version,
			BalanceDelta:    decimal.NewFromInt(10),
		})
		require.NoError(t, err)
	}
}

func TestCollectHistoryFollowsPages(t *testing.T) {
	st := store.NewMemory()
	seedHistory(t, st, "alice", 7)

	gw := gateway.New(gateway.Config{Store: st, Clock: quartz.NewMock(t), Logger: zerolog.Nop()})
	ts := httptest.NewServer(server.New(gw, zerolog.Nop(), server.Options{}).Handler())
	defer ts.Close()

	cl, err := client.New(ts.URL, client.Options{})
	require.NoError(t, err)

	export, err := collectHistory(context.Background(), cl, client.HistoryQuery{UserID: "alice", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, export.Games, 7)
	assert.Equal(t, 7, export.Pagination.Total)
	assert.False(t, export.Pagination.HasMore)
	assert.Equal(t, 7, export.OverallStats.Pushes)

	seen := map[string]bool{}
	for _, g := range export.Games {
		assert.False(t, seen[g.ID], "duplicate game %s", g.ID)
		seen[g.ID] = true
	}

	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, writeExport(path, export))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded struct {
		Games []json.RawMessage `json:"games"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Games, 7)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, &server.StoreSettings{Driver: server.DriverMemory})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = openStore(ctx, &server.StoreSettings{Driver: server.DriverSQLite, DSN: filepath.Join(t.TempDir(), "bj.db")})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = openStore(ctx, &server.StoreSettings{Driver: "mysql"})
	assert.Error(t, err)
}

func TestBuildNotifierWithoutRedis(t *testing.T) {
	n, closeFn := buildNotifier(context.Background(), &server.RedisSettings{}, zerolog.Nop())
	defer closeFn()
	assert.IsType(t, &gateway.LogNotifier{}, n)
}
