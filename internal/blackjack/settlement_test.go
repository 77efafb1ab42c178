package blackjack

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		player       Hand
		dealer       Hand
		bet          string
		insurance    string
		surrendered  bool
		result       Result
		winAmount    string
		insuranceWin string
		netProfit    string
	}{
		{
			name:   "win pays double",
			player: Evaluate(cards("10h 9s"), false), dealer: Evaluate(cards("10d 8c"), false),
			bet: "100", result: ResultWin, winAmount: "200", insuranceWin: "0", netProfit: "100",
		},
		{
			name:   "blackjack pays two and a half",
			player: Evaluate(cards("Ah Ks"), false), dealer: Evaluate(cards("10d 8c"), false),
			bet: "100", result: ResultBlackjack, winAmount: "250", insuranceWin: "0", netProfit: "150",
		},
		{
			name:   "surrender returns half regardless of hands",
			player: Evaluate(cards("Ah Ks"), false), dealer: Evaluate(cards("10d 8c 9h"), false),
			bet: "100", surrendered: true, result: ResultSurrender, winAmount: "50", insuranceWin: "0", netProfit: "-50",
		},
		{
			name:   "surrender floors odd stakes",
			player: Evaluate(cards("10h 6s"), false), dealer: Evaluate(cards("10d 8c"), false),
			bet: "25", surrendered: true, result: ResultSurrender, winAmount: "12", insuranceWin: "0", netProfit: "-13",
		},
		{
			name:   "player bust loses even when dealer busts",
			player: Evaluate(cards("10h 6s 8d"), false), dealer: Evaluate(cards("10d 6c 9h"), false),
			bet: "100", result: ResultLose, winAmount: "0", insuranceWin: "0", netProfit: "-100",
		},
		{
			name:   "dealer bust",
			player: Evaluate(cards("10h 2s"), false), dealer: Evaluate(cards("10d 6c 9h"), false),
			bet: "100", result: ResultWin, winAmount: "200", insuranceWin: "0", netProfit: "100",
		},
		{
			name:   "dealer blackjack beats 21",
			player: Evaluate(cards("7h 7s 7d"), false), dealer: Evaluate(cards("Ad Kc"), false),
			bet: "100", result: ResultLose, winAmount: "0", insuranceWin: "0", netProfit: "-100",
		},
		{
			name:   "both blackjack push",
			player: Evaluate(cards("Ah Ks"), false), dealer: Evaluate(cards("Ad Qc"), false),
			bet: "100", result: ResultPush, winAmount: "100", insuranceWin: "0", netProfit: "0",
		},
		{
			name:   "split 21 is not blackjack and pays even money",
			player: Evaluate(cards("Ah Ks"), true), dealer: Evaluate(cards("10d 9c"), false),
			bet: "100", result: ResultWin, winAmount: "200", insuranceWin: "0", netProfit: "100",
		},
		{
			name:   "equal totals push",
			player: Evaluate(cards("10h 8s"), false), dealer: Evaluate(cards("10d 8c"), false),
			bet: "100", result: ResultPush, winAmount: "100", insuranceWin: "0", netProfit: "0",
		},
		{
			name:   "lower total loses",
			player: Evaluate(cards("10h 7s"), false), dealer: Evaluate(cards("10d 8c"), false),
			bet: "100", result: ResultLose, winAmount: "0", insuranceWin: "0", netProfit: "-100",
		},
		{
			name:   "insurance pays when dealer has blackjack",
			player: Evaluate(cards("9h 9s"), false), dealer: Evaluate(cards("Ad Kc"), false),
			bet: "100", insurance: "50", result: ResultLose, winAmount: "0", insuranceWin: "100", netProfit: "-50",
		},
		{
			name:   "insurance lost without dealer blackjack",
			player: Evaluate(cards("10h 9s"), false), dealer: Evaluate(cards("Ad 7c"), false),
			bet: "100", insurance: "50", result: ResultWin, winAmount: "200", insuranceWin: "0", netProfit: "50",
		},
		{
			name:   "fractional stake blackjack stays exact",
			player: Evaluate(cards("Ah Ks"), false), dealer: Evaluate(cards("10d 7c"), false),
			bet: "0.01", result: ResultBlackjack, winAmount: "0.025", insuranceWin: "0", netProfit: "0.015",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insurance := decimal.Zero
			if tt.insurance != "" {
				insurance = dec(tt.insurance)
			}
			out := Resolve(Settle{
				PlayerHand:         tt.player,
				DealerHand:         tt.dealer,
				BetAmount:          dec(tt.bet),
				InsuranceBet:       insurance,
				DealerHasBlackjack: tt.dealer.IsBlackjack,
				HasSurrendered:     tt.surrendered,
			})
			assert.Equal(t, tt.result, out.Result)
			assert.True(t, dec(tt.winAmount).Equal(out.WinAmount), "winAmount %s", out.WinAmount)
			assert.True(t, dec(tt.insuranceWin).Equal(out.InsuranceWin), "insuranceWin %s", out.InsuranceWin)
			assert.True(t, dec(tt.netProfit).Equal(out.NetProfit), "netProfit %s", out.NetProfit)
		})
	}
}

func TestResolveNoDriftOverManyHands(t *testing.T) {
	bet := dec("0.10")
	total := decimal.Zero
	for i := 0; i < 10000; i++ {
		out := Resolve(Settle{
			PlayerHand: Evaluate(cards("Ah Ks"), false),
			DealerHand: Evaluate(cards("10d 7c"), false),
			BetAmount:  bet,
		})
		total = total.Add(out.NetProfit)
	}
	assert.Equal(t, "1500", total.String())
}

func TestHalfStake(t *testing.T) {
	assert.Equal(t, "50", HalfStake(dec("100")).String())
	assert.Equal(t, "12", HalfStake(dec("25")).String())
	assert.Equal(t, "0", HalfStake(dec("1")).String())
}
