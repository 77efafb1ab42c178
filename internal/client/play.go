package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/protocol"
)

// shortcuts maps typed commands onto wire actions
var shortcuts = map[string]blackjack.Action{
	"h":         blackjack.ActionHit,
	"hit":       blackjack.ActionHit,
	"s":         blackjack.ActionStand,
	"stand":     blackjack.ActionStand,
	"d":         blackjack.ActionDoubleDown,
	"double":    blackjack.ActionDoubleDown,
	"p":         blackjack.ActionSplit,
	"split":     blackjack.ActionSplit,
	"i":         blackjack.ActionInsurance,
	"insurance": blackjack.ActionInsurance,
	"r":         blackjack.ActionSurrender,
	"surrender": blackjack.ActionSurrender,
}

const helpText = `Commands:
  deal [bet]         start a game (default bet when omitted)
  hit | h            draw a card
  stand | s          stand
  double | d         double down
  split | p          split a pair
  insurance | i      take insurance
  surrender | r      surrender half the bet
  hit N | stand N    play split hand N (0 or 1)
  ace V [N]          count aces as V (1 or 11), optionally on split hand N
  balance            show your balance
  history            show recent games
  quit               leave the table`

// Table is an interactive session for one player
type Table struct {
	client     *Client
	userID     string
	defaultBet decimal.Decimal
	renderer   *Renderer
	out        io.Writer
	logger     *log.Logger

	game *blackjack.View
}

// NewTable creates a session for userID writing to out
func NewTable(c *Client, userID string, defaultBet decimal.Decimal, renderer *Renderer, out io.Writer, logger *log.Logger) *Table {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Table{
		client:     c,
		userID:     userID,
		defaultBet: defaultBet,
		renderer:   renderer,
		out:        out,
		logger:     logger,
	}
}

// Game returns the last game seen, or nil
func (t *Table) Game() *blackjack.View {
	return t.game
}

// Run reads commands from in until quit, EOF, or ctx is cancelled.
func (t *Table) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(t.out, "Type 'help' for commands.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(t.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		quit, err := t.Exec(ctx, scanner.Text())
		if err != nil {
			t.report(err)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs one command line. It reports whether the session should end.
func (t *Table) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch cmd := fields[0]; cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(t.out, helpText)
		return false, nil
	case "deal", "bet":
		bet := t.defaultBet
		if len(fields) > 1 {
			b, err := decimal.NewFromString(fields[1])
			if err != nil {
				return false, fmt.Errorf("invalid bet %q", fields[1])
			}
			bet = b
		}
		resp, err := t.client.Deal(ctx, t.userID, bet)
		if err != nil {
			return false, err
		}
		t.show(resp)
		return false, nil
	case "balance":
		user, err := t.client.User(ctx, t.userID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Balance: %s\n", user.Balance.StringFixed(2))
		return false, nil
	case "history":
		h, err := t.client.History(ctx, HistoryQuery{UserID: t.userID, Limit: 10})
		if err != nil {
			return false, err
		}
		fmt.Fprintln(t.out, t.renderer.History(h))
		return false, nil
	case "ace":
		if len(fields) < 2 {
			return false, errors.New("usage: ace 1|11 [hand]")
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("invalid ace value %q", fields[1])
		}
		payload := &blackjack.Payload{AceValue: &v}
		if len(fields) > 2 {
			idx, err := strconv.Atoi(fields[2])
			if err != nil {
				return false, fmt.Errorf("invalid hand %q", fields[2])
			}
			payload.HandIndex = &idx
		}
		return false, t.act(ctx, blackjack.ActionSetAceValue, payload)
	default:
		action, ok := shortcuts[cmd]
		if !ok {
			return false, fmt.Errorf("unknown command %q, type 'help'", cmd)
		}
		var payload *blackjack.Payload
		if len(fields) > 1 && (action == blackjack.ActionHit || action == blackjack.ActionStand) {
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				return false, fmt.Errorf("invalid hand %q", fields[1])
			}
			payload = &blackjack.Payload{HandIndex: &idx}
			action = blackjack.ActionSplitHit
			if cmd == "s" || cmd == "stand" {
				action = blackjack.ActionSplitStand
			}
		}
		return false, t.act(ctx, action, payload)
	}
}

func (t *Table) act(ctx context.Context, action blackjack.Action, payload *blackjack.Payload) error {
	if t.game == nil || t.game.State.IsTerminal() {
		return errors.New("no game in progress, type 'deal' to start")
	}
	resp, err := t.client.Act(ctx, protocol.Action{
		GameID:  t.game.ID,
		UserID:  t.userID,
		Action:  string(action),
		Payload: payload,
	})
	if err != nil {
		return t.reconcile(ctx, err)
	}
	t.show(resp)
	return nil
}

// reconcile refetches the game after a state conflict. A stand or double whose
// reply was lost still settles the game, so its retransmission is refused;
// the refetched game shows the outcome instead of the error.
func (t *Table) reconcile(ctx context.Context, err error) error {
	var wireErr *protocol.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != blackjack.KindConflictState.String() {
		return err
	}
	fresh, gerr := t.client.Game(ctx, t.game.ID, t.userID)
	if gerr != nil || !fresh.Game.State.IsTerminal() {
		return err
	}
	t.logger.Debug("Game settled before the retransmission", "game_id", fresh.Game.ID)
	t.show(fresh)
	return nil
}

func (t *Table) show(resp *Response) {
	t.game = resp.Game
	if resp.Channel == ChannelHTTP {
		t.logger.Debug("Answered over HTTP fallback", "game_id", resp.Game.ID)
	}
	fmt.Fprintln(t.out, t.renderer.Game(resp.Game))
}

func (t *Table) report(err error) {
	var wireErr *protocol.Error
	if errors.As(err, &wireErr) {
		fmt.Fprintf(t.out, "%s\n", wireErr.Message)
		if wireErr.Retryable {
			fmt.Fprintln(t.out, "The request can be retried.")
		}
		return
	}
	t.logger.Error("Request failed", "error", err)
	fmt.Fprintf(t.out, "%v\n", err)
}
