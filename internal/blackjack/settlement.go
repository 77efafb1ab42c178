package blackjack

import "github.com/shopspring/decimal"

// Result is the terminal outcome of a game or split hand
type Result string

const (
	ResultWin       Result = "WIN"
	ResultLose      Result = "LOSE"
	ResultPush      Result = "PUSH"
	ResultBlackjack Result = "BLACKJACK"
	ResultSurrender Result = "SURRENDER"
)

// Payout multipliers, as total return including the stake.
var (
	winMultiplier       = decimal.NewFromInt(2)
	blackjackMultiplier = decimal.RequireFromString("2.5")
	pushMultiplier      = decimal.NewFromInt(1)
	insuranceMultiplier = decimal.NewFromInt(2)
	two                 = decimal.NewFromInt(2)
)

// Settle is the input to Resolve
type Settle struct {
	PlayerHand         Hand
	DealerHand         Hand
	BetAmount          decimal.Decimal
	InsuranceBet       decimal.Decimal
	DealerHasBlackjack bool
	HasSurrendered     bool
}

// Outcome is a settled result. WinAmount is the total returned to the
// player for the main bet, stake included.
type Outcome struct {
	Result       Result          `json:"result"`
	WinAmount    decimal.Decimal `json:"winAmount"`
	InsuranceWin decimal.Decimal `json:"insuranceWin"`
	NetProfit    decimal.Decimal `json:"netProfit"`
}

// Payout is everything credited back to the player.
func (o Outcome) Payout() decimal.Decimal {
	return o.WinAmount.Add(o.InsuranceWin)
}

// Resolve settles a finished hand. Rules apply in order and the first
// match decides the main result; the insurance side bet is settled
// independently of it.
func Resolve(s Settle) Outcome {
	out := Outcome{WinAmount: decimal.Zero, InsuranceWin: decimal.Zero}

	if s.HasSurrendered {
		out.Result = ResultSurrender
		out.WinAmount = HalfStake(s.BetAmount)
		out.NetProfit = out.WinAmount.Sub(s.BetAmount).Sub(s.InsuranceBet)
		return out
	}

	out.InsuranceWin = InsurancePayout(s.InsuranceBet, s.DealerHasBlackjack)

	player, dealer := s.PlayerHand, s.DealerHand
	switch {
	case player.IsBust:
		out.Result = ResultLose
	case dealer.IsBust:
		out.Result = ResultWin
	case player.IsBlackjack && !dealer.IsBlackjack:
		out.Result = ResultBlackjack
	case dealer.IsBlackjack && !player.IsBlackjack:
		out.Result = ResultLose
	case player.IsBlackjack && dealer.IsBlackjack:
		out.Result = ResultPush
	case player.Value > dealer.Value:
		out.Result = ResultWin
	case player.Value < dealer.Value:
		out.Result = ResultLose
	default:
		out.Result = ResultPush
	}

	out.WinAmount = mainPayout(out.Result, s.BetAmount)
	out.NetProfit = out.Payout().Sub(s.BetAmount).Sub(s.InsuranceBet)
	return out
}

// InsurancePayout returns the insurance return: twice the side bet when the
// dealer holds blackjack, otherwise nothing.
func InsurancePayout(insuranceBet decimal.Decimal, dealerHasBlackjack bool) decimal.Decimal {
	if insuranceBet.IsPositive() && dealerHasBlackjack {
		return insuranceBet.Mul(insuranceMultiplier)
	}
	return decimal.Zero
}

// HalfStake is floor(amount / 2) in whole units; used for surrender refunds
// and the insurance stake.
func HalfStake(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(two).Floor()
}

func mainPayout(result Result, bet decimal.Decimal) decimal.Decimal {
	switch result {
	case ResultWin:
		return bet.Mul(winMultiplier)
	case ResultBlackjack:
		return bet.Mul(blackjackMultiplier)
	case ResultPush:
		return bet.Mul(pushMultiplier)
	default:
		return decimal.Zero
	}
}
