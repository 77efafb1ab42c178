package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/store"
)

type recordingNotifier struct {
	mu          sync.Mutex
	settlements []Settlement
}

func (r *recordingNotifier) Notify(_ context.Context, s Settlement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements = append(r.settlements, s)
}

func (r *recordingNotifier) all() []Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Settlement(nil), r.settlements...)
}

type fixture struct {
	gw       *Gateway
	store    *store.Memory
	notifier *recordingNotifier
	clock    *quartz.Mock
}

// newFixture builds a gateway whose games are dealt from the given shoes in
// order, each written in draw order.
func newFixture(t *testing.T, shoes ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemory(),
		notifier: &recordingNotifier{},
		clock:    quartz.NewMock(t),
	}
	var mu sync.Mutex
	next := 0
	f.gw = New(Config{
		Store:    f.store,
		RNG:      randutil.NewLocked(randutil.New(1)),
		Notifier: f.notifier,
		Clock:    f.clock,
		Logger:   zerolog.Nop(),
		NewShoe: func() *deck.Shoe {
			mu.Lock()
			defer mu.Unlock()
			require.Less(t, next, len(shoes), "ran out of test shoes")
			s := deck.Stacked(deck.MustParseCards(shoes[next])...)
			next++
			return s
		},
	})
	return f
}

func (f *fixture) deal(t *testing.T, user, bet string) *blackjack.View {
	t.Helper()
	v, err := f.gw.Deal(context.Background(), DealRequest{UserID: user, Bet: decimal.RequireFromString(bet)})
	require.NoError(t, err)
	return v
}

func (f *fixture) balance(t *testing.T, user string) string {
	t.Helper()
	b, err := f.gw.Balance(context.Background(), user)
	require.NoError(t, err)
	return b.String()
}

func TestDealCreatesPlayerAndDebits(t *testing.T) {
	f := newFixture(t, "10h As 9c Kd")
	v := f.deal(t, "alice", "100")

	assert.Equal(t, blackjack.StatePlaying, v.State)
	assert.Len(t, v.DealerHand.Cards, 1)
	assert.Equal(t, 1, v.DealerHand.HiddenCards)
	require.NotNil(t, v.Balance)
	assert.Equal(t, "900", v.Balance.String())
	assert.Equal(t, "900", f.balance(t, "alice"))
	assert.Contains(t, v.AvailableActions, blackjack.ActionInsurance)
	assert.Empty(t, f.notifier.all())
}

func TestDealRejectsSecondActiveGame(t *testing.T) {
	f := newFixture(t, "10h 9d 9c 8s", "10h 9d 9c 8s")
	ctx := context.Background()

	first, err := f.gw.Deal(ctx, DealRequest{UserID: "alice", Bet: decimal.NewFromInt(100), RequestID: "d1"})
	require.NoError(t, err)

	again, err := f.gw.Deal(ctx, DealRequest{UserID: "alice", Bet: decimal.NewFromInt(100), RequestID: "d1"})
	require.NoError(t, err, "retransmitted deal returns the same game")
	assert.Equal(t, first.ID, again.ID)

	_, err = f.gw.Deal(ctx, DealRequest{UserID: "alice", Bet: decimal.NewFromInt(100), RequestID: "d2"})
	assert.ErrorIs(t, err, blackjack.ErrActiveGame)
	assert.Equal(t, "900", f.balance(t, "alice"))
}

func TestDealValidation(t *testing.T) {
	f := newFixture(t, "10h 9d 9c 8s")
	ctx := context.Background()

	_, err := f.gw.Deal(ctx, DealRequest{Bet: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, blackjack.ErrMissingField)

	_, err = f.gw.Deal(ctx, DealRequest{UserID: "alice", Bet: decimal.RequireFromString("0.001")})
	assert.ErrorIs(t, err, blackjack.ErrInvalidBet)

	_, err = f.gw.Deal(ctx, DealRequest{UserID: "alice", Bet: decimal.NewFromInt(5000)})
	assert.ErrorIs(t, err, blackjack.ErrInsufficientBalance)
	assert.Equal(t, "1000", f.balance(t, "alice"))
}

func TestApplySettlesAndNotifies(t *testing.T) {
	f := newFixture(t, "10h 9d 9c 8s")
	v := f.deal(t, "alice", "100")

	v, err := f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: "stand"})
	require.NoError(t, err)

	assert.Equal(t, blackjack.StateEnded, v.State)
	assert.Equal(t, blackjack.ResultWin, v.Result)
	assert.Len(t, v.DealerHand.Cards, 2)
	assert.Equal(t, "1100", v.Balance.String())

	settlements := f.notifier.all()
	require.Len(t, settlements, 1)
	assert.Equal(t, v.ID, settlements[0].GameID)
	assert.Equal(t, "alice", settlements[0].PlayerID)
	assert.Equal(t, blackjack.ResultWin, settlements[0].Result)
	assert.Equal(t, "100", settlements[0].NetProfit.String())
	assert.Equal(t, "1100", settlements[0].NewBalance.String())

	_, err = f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: "stand"})
	assert.ErrorIs(t, err, blackjack.ErrNotPlaying)
	assert.Equal(t, "1100", f.balance(t, "alice"))
	assert.Len(t, f.notifier.all(), 1)

	next := f.deal(t, "alice", "10")
	assert.NotEqual(t, v.ID, next.ID, "settled game no longer blocks a deal")
}

func TestApplyErrors(t *testing.T) {
	f := newFixture(t, "10h 9d 9c 8s")
	v := f.deal(t, "alice", "100")
	ctx := context.Background()

	_, err := f.gw.Apply(ctx, Request{GameID: v.ID, UserID: "mallory", Action: "stand"})
	assert.ErrorIs(t, err, blackjack.ErrNotOwner)
	assert.Equal(t, blackjack.KindUnauthorized, blackjack.KindOf(err))

	_, err = f.gw.Apply(ctx, Request{GameID: "missing", UserID: "alice", Action: "stand"})
	assert.ErrorIs(t, err, blackjack.ErrGameNotFound)

	_, err = f.gw.Apply(ctx, Request{GameID: v.ID, UserID: "alice", Action: "fold"})
	assert.ErrorIs(t, err, blackjack.ErrUnknownAction)

	_, err = f.gw.Apply(ctx, Request{UserID: "alice", Action: "stand"})
	assert.ErrorIs(t, err, blackjack.ErrMissingField)

	_, err = f.gw.Apply(ctx, Request{GameID: v.ID, UserID: "alice", Action: "split"})
	assert.ErrorIs(t, err, blackjack.ErrCannotSplit)

	got, err := f.gw.Game(ctx, v.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, blackjack.StatePlaying, got.State)
	assert.Equal(t, v.Version, got.Version)

	_, err = f.gw.Game(ctx, v.ID, "mallory")
	assert.ErrorIs(t, err, blackjack.ErrNotOwner)
}

func TestApplyShoeExhaustedIsRetryable(t *testing.T) {
	f := newFixture(t, "10h 9d 5c 8s")
	v := f.deal(t, "alice", "100")

	_, err := f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: "hit"})
	require.Error(t, err)
	var gameErr *blackjack.Error
	require.True(t, errors.As(err, &gameErr))
	assert.Equal(t, blackjack.KindShoeExhausted, gameErr.Kind)
	assert.True(t, gameErr.Retryable())

	got, err := f.gw.Game(context.Background(), v.ID, "")
	require.NoError(t, err)
	assert.Equal(t, v.Version, got.Version)
	assert.Equal(t, "900", got.Balance.String())
}

func TestRetransmittedStandOnSettledGameConflicts(t *testing.T) {
	f := newFixture(t, "10h 9d 9c 8s")
	v := f.deal(t, "alice", "100")
	req := Request{GameID: v.ID, UserID: "alice", Action: "stand", RequestID: "req-1"}

	first, err := f.gw.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, blackjack.StateEnded, first.State)
	assert.Equal(t, "1100", first.Balance.String())

	_, err = f.gw.Apply(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, blackjack.KindConflictState, blackjack.KindOf(err))
	assert.ErrorIs(t, err, blackjack.ErrNotPlaying)

	got, err := f.gw.Game(context.Background(), v.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.Version, got.Version)
	assert.Equal(t, "1100", f.balance(t, "alice"))
	assert.Len(t, f.notifier.all(), 1)
}

func TestSurrenderedGameIsTerminal(t *testing.T) {
	f := newFixture(t, "10h 9d 6c 7s")
	v := f.deal(t, "alice", "100")

	done, err := f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: "surrender", RequestID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, blackjack.StateSurrendered, done.State)
	assert.Equal(t, blackjack.ResultSurrender, done.Result)
	assert.Equal(t, "950", done.Balance.String())

	for _, action := range []string{"surrender", "stand", "hit"} {
		_, err = f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: action, RequestID: "s-1"})
		assert.ErrorIs(t, err, blackjack.ErrNotPlaying, action)
	}
	assert.Equal(t, "950", f.balance(t, "alice"))
	assert.Len(t, f.notifier.all(), 1)
}

func TestRetransmittedHitAppliesOnce(t *testing.T) {
	f := newFixture(t, "10h 9d 2c 8s 3h")
	v := f.deal(t, "alice", "100")
	req := Request{GameID: v.ID, UserID: "alice", Action: "hit", RequestID: "req-1"}

	first, err := f.gw.Apply(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, blackjack.StatePlaying, first.State)
	second, err := f.gw.Apply(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	assert.Len(t, second.PlayerHand.Cards, 3)
	assert.Equal(t, 15, second.PlayerHand.Value)
	assert.Equal(t, "900", second.Balance.String())
}

func TestConcurrentDuplicateSubmits(t *testing.T) {
	t.Run("same request id", func(t *testing.T) {
		f := newFixture(t, "10h 9d 9c 8s")
		v := f.deal(t, "alice", "100")

		var (
			eg        errgroup.Group
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for range 8 {
			eg.Go(func() error {
				_, err := f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: "stand", RequestID: "req-1"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case blackjack.KindOf(err) == blackjack.KindConflictState:
					conflicts++
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, eg.Wait())
		assert.Equal(t, 1, successes)
		assert.Equal(t, 7, conflicts)
		assert.Equal(t, "1100", f.balance(t, "alice"))
		assert.Len(t, f.notifier.all(), 1)
	})

	t.Run("no request id", func(t *testing.T) {
		f := newFixture(t, "10h 9d 9c 8s")
		v := f.deal(t, "alice", "100")

		var (
			eg        errgroup.Group
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for range 8 {
			eg.Go(func() error {
				_, err := f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: "alice", Action: "stand"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, blackjack.ErrNotPlaying):
					conflicts++
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, eg.Wait())
		assert.Equal(t, 1, successes)
		assert.Equal(t, 7, conflicts)
		assert.Equal(t, "1100", f.balance(t, "alice"))
	})
}

func TestGamesProceedIndependently(t *testing.T) {
	shoes := make([]string, 6)
	for i := range shoes {
		shoes[i] = "10h 9d 9c 8s"
	}
	f := newFixture(t, shoes...)

	var eg errgroup.Group
	for i := range shoes {
		user := fmt.Sprintf("player-%d", i)
		eg.Go(func() error {
			v, err := f.gw.Deal(context.Background(), DealRequest{UserID: user, Bet: decimal.NewFromInt(50)})
			if err != nil {
				return err
			}
			_, err = f.gw.Apply(context.Background(), Request{GameID: v.ID, UserID: user, Action: "stand"})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	for i := range shoes {
		assert.Equal(t, "1050", f.balance(t, fmt.Sprintf("player-%d", i)))
	}
	assert.Len(t, f.notifier.all(), len(shoes))
	assert.Equal(t, 0, f.gw.locks.size())
}

type failingStore struct {
	store.Store
	err error
}

func (s failingStore) GetGame(context.Context, string) (*blackjack.Game, error) {
	return nil, s.err
}

func TestStoreFailureIsInternal(t *testing.T) {
	gw := New(Config{Store: failingStore{Store: store.NewMemory(), err: errors.New("disk on fire")}, Logger: zerolog.Nop()})

	_, err := gw.Apply(context.Background(), Request{GameID: "g", UserID: "alice", Action: "hit"})
	require.Error(t, err)
	assert.Equal(t, blackjack.KindInternal, blackjack.KindOf(err))
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestHistory(t *testing.T) {
	f := newFixture(t, "10h 9d 9c 8s", "10h 9d 6c 8s Kd")
	ctx := context.Background()

	v := f.deal(t, "alice", "100")
	_, err := f.gw.Apply(ctx, Request{GameID: v.ID, UserID: "alice", Action: "stand"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	v = f.deal(t, "alice", "100")
	_, err = f.gw.Apply(ctx, Request{GameID: v.ID, UserID: "alice", Action: "hit"})
	require.NoError(t, err)

	page, err := f.gw.History(ctx, store.HistoryQuery{PlayerID: "alice"})
	require.NoError(t, err)
	require.Len(t, page.Games, 2)
	assert.Equal(t, blackjack.ResultLose, page.Games[0].Result)
	assert.Equal(t, blackjack.ResultWin, page.Games[1].Result)
	assert.Equal(t, "0", page.Stats.NetProfit.String())
}
