package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/protocol"
)

// Styles holds the styles used to render games
type Styles struct {
	Header    lipgloss.Style
	Label     lipgloss.Style
	CardRed   lipgloss.Style
	CardBlack lipgloss.Style
	Hidden    lipgloss.Style
	Win       lipgloss.Style
	Lose      lipgloss.Style
	Push      lipgloss.Style
	Muted     lipgloss.Style
	Table     lipgloss.Style
}

// NewStyles returns the default styles. With color off every style renders
// plain text.
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{
			Header: plain, Label: plain, CardRed: plain, CardBlack: plain, Hidden: plain,
			Win: plain, Lose: plain, Push: plain, Muted: plain, Table: plain,
		}
	}
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#1B5E20")).
			Padding(0, 2).
			Bold(true),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true),
		CardRed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true),
		CardBlack: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0")).
			Bold(true),
		Hidden: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Win: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Lose: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
		Push: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#74B9FF")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Table: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1B5E20")).
			Padding(0, 1),
	}
}

// Renderer formats games for the terminal
type Renderer struct {
	styles Styles
}

func NewRenderer(styles Styles) *Renderer {
	return &Renderer{styles: styles}
}

func (r *Renderer) card(c deck.Card) string {
	if c.Suit.IsRed() {
		return r.styles.CardRed.Render(c.String())
	}
	return r.styles.CardBlack.Render(c.String())
}

func (r *Renderer) hand(h blackjack.HandView) string {
	parts := make([]string, 0, len(h.Cards)+h.HiddenCards)
	for _, c := range h.Cards {
		parts = append(parts, r.card(c))
	}
	for range h.HiddenCards {
		parts = append(parts, r.styles.Hidden.Render("??"))
	}

	value := fmt.Sprintf("(%d)", h.Value)
	switch {
	case h.IsBlackjack:
		value = "(blackjack)"
	case h.IsBust:
		value = fmt.Sprintf("(%d bust)", h.Value)
	case h.IsSoft:
		value = fmt.Sprintf("(soft %d)", h.Value)
	}
	if h.HiddenCards > 0 {
		value = fmt.Sprintf("(%d showing)", h.Value)
	}
	return strings.Join(parts, " ") + " " + r.styles.Muted.Render(value)
}

func (r *Renderer) result(res blackjack.Result) string {
	switch res {
	case blackjack.ResultWin, blackjack.ResultBlackjack:
		return r.styles.Win.Render(string(res))
	case blackjack.ResultPush:
		return r.styles.Push.Render(string(res))
	default:
		return r.styles.Lose.Render(string(res))
	}
}

// Game renders a game view
func (r *Renderer) Game(v *blackjack.View) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("Blackjack") + " " + r.styles.Muted.Render(v.ID) + "\n\n")
	fmt.Fprintf(&b, "%s %s\n", r.styles.Label.Render("Dealer:"), r.hand(v.DealerHand))

	if v.HasSplit {
		for i, h := range v.SplitHands {
			line := fmt.Sprintf("%s %s", r.styles.Label.Render(fmt.Sprintf("Hand %d:", i)), r.hand(h))
			if h.Bet != nil {
				line += " " + r.styles.Muted.Render("bet "+h.Bet.StringFixed(2))
			}
			if h.Result != "" {
				line += " " + r.result(h.Result)
			} else if h.Stood {
				line += " " + r.styles.Muted.Render("stood")
			}
			b.WriteString(line + "\n")
		}
	} else {
		fmt.Fprintf(&b, "%s %s\n", r.styles.Label.Render("You:   "), r.hand(v.PlayerHand))
	}

	fmt.Fprintf(&b, "\n%s %s", r.styles.Label.Render("Bet:"), v.CurrentBet.StringFixed(2))
	if v.HasInsurance {
		fmt.Fprintf(&b, "  %s %s", r.styles.Label.Render("Insurance:"), v.InsuranceBet.StringFixed(2))
	}
	if v.Balance != nil {
		fmt.Fprintf(&b, "  %s %s", r.styles.Label.Render("Balance:"), v.Balance.StringFixed(2))
	}
	b.WriteString("\n")

	if v.State.IsTerminal() {
		fmt.Fprintf(&b, "%s %s", r.styles.Label.Render("Result:"), r.result(v.Result))
		if v.NetProfit != nil {
			fmt.Fprintf(&b, "  %s %s", r.styles.Label.Render("Net:"), signed(*v.NetProfit))
		}
		b.WriteString("\n")
	} else if len(v.AvailableActions) > 0 {
		actions := make([]string, len(v.AvailableActions))
		for i, a := range v.AvailableActions {
			actions[i] = string(a)
		}
		fmt.Fprintf(&b, "%s %s\n", r.styles.Label.Render("Actions:"), strings.Join(actions, ", "))
	}
	return r.styles.Table.Render(strings.TrimRight(b.String(), "\n"))
}

// History renders a page of history with its aggregate stats
func (r *Renderer) History(h *protocol.History) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("History") + "\n\n")
	for _, g := range h.Games {
		net := "-"
		if g.NetProfit != nil {
			net = signed(*g.NetProfit)
		}
		fmt.Fprintf(&b, "%s  %-10s %8s  %s\n",
			g.CreatedAt.Format("2006-01-02 15:04"), r.result(g.Result), g.BetAmount.StringFixed(2), net)
	}
	if len(h.Games) == 0 {
		b.WriteString(r.styles.Muted.Render("No games yet") + "\n")
	}

	s := h.OverallStats
	fmt.Fprintf(&b, "\n%s %d  %s %d  %s %d  %s %d  %s %.1f%%\n",
		r.styles.Label.Render("Games:"), s.TotalGames,
		r.styles.Label.Render("Won:"), s.Wins+s.Blackjacks,
		r.styles.Label.Render("Lost:"), s.Losses+s.Surrenders,
		r.styles.Label.Render("Pushed:"), s.Pushes,
		r.styles.Label.Render("Win rate:"), s.WinRate*100)
	fmt.Fprintf(&b, "%s %s  %s %s\n",
		r.styles.Label.Render("Wagered:"), s.TotalWagered.StringFixed(2),
		r.styles.Label.Render("Net:"), signed(s.NetProfit))
	if h.Pagination.HasMore {
		fmt.Fprintf(&b, "%s\n", r.styles.Muted.Render(fmt.Sprintf("showing %d-%d of %d",
			h.Pagination.Offset+1, h.Pagination.Offset+len(h.Games), h.Pagination.Total)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
