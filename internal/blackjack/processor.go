package blackjack

import (
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/deck"
)

// Action is a player move
type Action string

const (
	ActionHit         Action = "hit"
	ActionStand       Action = "stand"
	ActionDoubleDown  Action = "double_down"
	ActionInsurance   Action = "insurance"
	ActionSplit       Action = "split"
	ActionSurrender   Action = "surrender"
	ActionSplitHit    Action = "split_hit"
	ActionSplitStand  Action = "split_stand"
	ActionSetAceValue Action = "set_ace_value"
)

// Actions lists every action in display order.
var Actions = []Action{
	ActionHit, ActionStand, ActionDoubleDown, ActionInsurance, ActionSplit,
	ActionSurrender, ActionSplitHit, ActionSplitStand, ActionSetAceValue,
}

// ParseAction validates an action name from the wire
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := rules[a]; !ok {
		return "", ErrUnknownAction
	}
	return a, nil
}

// Payload carries the optional action arguments
type Payload struct {
	HandIndex *int `json:"handIndex,omitempty"`
	AceValue  *int `json:"aceValue,omitempty"`
}

// rule pairs an action's precondition with its effect. check must not
// mutate anything; apply runs on a private clone only after check passed.
type rule struct {
	check func(g *Game, in Payload, w *Wallet) error
	apply func(p *Processor, g *Game, in Payload, w *Wallet) error
}

var rules = map[Action]rule{
	ActionHit:         {check: checkSingleHand, apply: (*Processor).hit},
	ActionStand:       {check: checkSingleHand, apply: (*Processor).stand},
	ActionDoubleDown:  {check: checkDoubleDown, apply: (*Processor).doubleDown},
	ActionInsurance:   {check: checkInsurance, apply: (*Processor).insurance},
	ActionSplit:       {check: checkSplit, apply: (*Processor).split},
	ActionSurrender:   {check: checkSurrender, apply: (*Processor).surrender},
	ActionSplitHit:    {check: checkSplitHand, apply: (*Processor).splitHit},
	ActionSplitStand:  {check: checkSplitHand, apply: (*Processor).splitStand},
	ActionSetAceValue: {check: checkAceValue, apply: (*Processor).setAceValue},
}

// Processor validates and applies player actions
type Processor struct {
	dealer *DealerPolicy
	clock  quartz.Clock
}

// NewProcessor creates a processor. clock stamps settlement times.
func NewProcessor(dealer *DealerPolicy, clock quartz.Clock) *Processor {
	return &Processor{dealer: dealer, clock: clock}
}

// Deal debits the stake and deals player, dealer, player, dealer, moving
// the game from BETTING to PLAYING.
func (p *Processor) Deal(g *Game, w *Wallet) (*Game, error) {
	if g.State != StateBetting {
		return nil, ErrNotBetting
	}
	if err := ValidateBet(g.BetAmount); err != nil {
		return nil, err
	}
	if err := w.Debit(g.BetAmount); err != nil {
		return nil, err
	}

	next := g.Clone()
	player, dealer := make([]deck.Card, 0, 2), make([]deck.Card, 0, 2)
	for i := 0; i < 2; i++ {
		for _, hand := range []*[]deck.Card{&player, &dealer} {
			card, err := drawCard(next)
			if err != nil {
				w.Credit(g.BetAmount)
				return nil, err
			}
			*hand = append(*hand, card)
		}
	}

	next.PlayerHand = Evaluate(player, false)
	next.DealerHand = Evaluate(dealer, false)
	next.State = StatePlaying
	next.Version++
	return next, nil
}

// Apply validates action against g and returns the updated game. g is never
// modified; on error the wallet is left as it was.
func (p *Processor) Apply(g *Game, action Action, in Payload, w *Wallet) (*Game, error) {
	r, ok := rules[action]
	if !ok {
		return nil, ErrUnknownAction
	}
	if g.State != StatePlaying {
		return nil, ErrNotPlaying
	}
	if err := r.check(g, in, w); err != nil {
		return nil, err
	}

	next := g.Clone()
	if err := r.apply(p, next, in, w); err != nil {
		return nil, err
	}
	next.Version++
	next.LastAction = action
	return next, nil
}

// AvailableActions lists the actions whose preconditions hold for g given
// balance. Clients use it to predict; the server still validates.
func AvailableActions(g *Game, balance decimal.Decimal) []Action {
	if g.State != StatePlaying {
		return nil
	}
	var available []Action
	for _, action := range Actions {
		for _, in := range candidatePayloads(g, action) {
			if rules[action].check(g, in, NewWallet(balance)) == nil {
				available = append(available, action)
				break
			}
		}
	}
	return available
}

func candidatePayloads(g *Game, action Action) []Payload {
	var indexes []*int
	if g.HasSplit {
		for i := range g.SplitHands {
			idx := i
			indexes = append(indexes, &idx)
		}
	} else {
		indexes = []*int{nil}
	}

	switch action {
	case ActionSplitHit, ActionSplitStand:
		payloads := make([]Payload, 0, len(indexes))
		for _, idx := range indexes {
			payloads = append(payloads, Payload{HandIndex: idx})
		}
		return payloads
	case ActionSetAceValue:
		low, high := AceLow, AceHigh
		var payloads []Payload
		for _, idx := range indexes {
			payloads = append(payloads, Payload{HandIndex: idx, AceValue: &low}, Payload{HandIndex: idx, AceValue: &high})
		}
		return payloads
	default:
		return []Payload{{}}
	}
}

// Preconditions

func checkSingleHand(g *Game, _ Payload, _ *Wallet) error {
	if g.HasSplit {
		return ErrSplitHandsActive
	}
	return nil
}

func checkDoubleDown(g *Game, _ Payload, w *Wallet) error {
	if g.HasSplit {
		return ErrSplitHandsActive
	}
	if len(g.PlayerHand.Cards) != 2 {
		return ErrCannotDouble
	}
	if !w.CanCover(g.CurrentBet) {
		return ErrInsufficientBalance
	}
	return nil
}

func checkInsurance(g *Game, _ Payload, w *Wallet) error {
	if g.HasInsurance {
		return ErrInsuranceTaken
	}
	up, ok := g.DealerHand.UpCard()
	if !ok || !up.IsAce() || len(g.DealerHand.Cards) != 2 {
		return ErrInsuranceNotOffer
	}
	stake := HalfStake(g.CurrentBet)
	if !stake.IsPositive() {
		return ErrInsuranceTooSmall
	}
	if !w.CanCover(stake) {
		return ErrInsufficientBalance
	}
	return nil
}

func checkSplit(g *Game, _ Payload, w *Wallet) error {
	if g.HasSplit {
		return ErrAlreadySplit
	}
	if !g.PlayerHand.IsSplittable {
		return ErrCannotSplit
	}
	if !w.CanCover(g.CurrentBet) {
		return ErrInsufficientBalance
	}
	return nil
}

func checkSurrender(g *Game, _ Payload, _ *Wallet) error {
	if g.HasSurrendered || g.HasSplit || !g.PlayerHand.CanSurrender {
		return ErrCannotSurrender
	}
	return nil
}

func checkSplitHand(g *Game, in Payload, _ *Wallet) error {
	hand, err := splitHand(g, in.HandIndex)
	if err != nil {
		return err
	}
	if hand.Done() {
		return ErrHandFinished
	}
	return nil
}

func checkAceValue(g *Game, in Payload, _ *Wallet) error {
	if in.AceValue == nil || (*in.AceValue != AceLow && *in.AceValue != AceHigh) {
		return ErrInvalidAceValue
	}

	hand := g.PlayerHand
	if g.HasSplit {
		h, err := splitHand(g, in.HandIndex)
		if err != nil {
			return err
		}
		if h.Done() {
			return ErrHandFinished
		}
		hand = h
	} else if in.HandIndex != nil {
		return ErrNotSplit
	}

	if !hand.HasAce() {
		return ErrNoAce
	}
	if !hand.AceChoiceLive() {
		return ErrAceChoiceDead
	}
	return nil
}

func splitHand(g *Game, index *int) (Hand, error) {
	if !g.HasSplit {
		return Hand{}, ErrNotSplit
	}
	if index == nil || *index < 0 || *index >= len(g.SplitHands) {
		return Hand{}, ErrInvalidHandIndex
	}
	return g.SplitHands[*index], nil
}

// Effects

func (p *Processor) hit(g *Game, _ Payload, w *Wallet) error {
	card, err := drawCard(g)
	if err != nil {
		return err
	}
	g.PlayerHand = g.PlayerHand.Add(card)
	if g.PlayerHand.IsBust {
		p.settleMain(g, w, false)
	}
	return nil
}

func (p *Processor) stand(g *Game, _ Payload, w *Wallet) error {
	p.settleMain(g, w, true)
	return nil
}

func (p *Processor) doubleDown(g *Game, _ Payload, w *Wallet) error {
	extra := g.CurrentBet
	if err := w.Debit(extra); err != nil {
		return err
	}
	card, err := drawCard(g)
	if err != nil {
		w.Credit(extra)
		return err
	}

	original := g.BetAmount
	g.CurrentBet = g.CurrentBet.Add(extra)
	g.PlayerHand = g.PlayerHand.Add(card)
	g.PlayerHand.OriginalBet = &original
	p.settleMain(g, w, !g.PlayerHand.IsBust)
	return nil
}

func (p *Processor) insurance(g *Game, _ Payload, w *Wallet) error {
	stake := HalfStake(g.CurrentBet)
	if err := w.Debit(stake); err != nil {
		return err
	}
	g.InsuranceBet = stake
	g.HasInsurance = true
	return nil
}

func (p *Processor) split(g *Game, _ Payload, w *Wallet) error {
	if err := w.Debit(g.CurrentBet); err != nil {
		return err
	}

	g.SplitHands = make([]Hand, 0, 2)
	for _, card := range g.PlayerHand.Cards {
		bet := g.BetAmount
		hand := Evaluate([]deck.Card{card}, true)
		hand.OriginalBet = &bet
		g.SplitHands = append(g.SplitHands, hand)
	}
	g.PlayerHand = Evaluate(nil, false)
	g.CurrentBet = g.CurrentBet.Mul(two)
	g.HasSplit = true
	return nil
}

func (p *Processor) surrender(g *Game, _ Payload, w *Wallet) error {
	g.HasSurrendered = true
	out := Resolve(Settle{
		PlayerHand:     g.PlayerHand,
		DealerHand:     g.DealerHand,
		BetAmount:      g.CurrentBet,
		InsuranceBet:   g.InsuranceBet,
		HasSurrendered: true,
	})
	p.finish(g, w, out, StateSurrendered)
	return nil
}

func (p *Processor) splitHit(g *Game, in Payload, w *Wallet) error {
	card, err := drawCard(g)
	if err != nil {
		return err
	}
	idx := *in.HandIndex
	g.SplitHands[idx] = g.SplitHands[idx].Add(card)
	if g.allSplitHandsDone() {
		p.settleSplit(g, w)
	}
	return nil
}

func (p *Processor) splitStand(g *Game, in Payload, w *Wallet) error {
	idx := *in.HandIndex
	g.SplitHands[idx].Stood = true
	if g.allSplitHandsDone() {
		p.settleSplit(g, w)
	}
	return nil
}

func (p *Processor) setAceValue(g *Game, in Payload, _ *Wallet) error {
	if g.HasSplit {
		idx := *in.HandIndex
		g.SplitHands[idx] = g.SplitHands[idx].WithAceValue(*in.AceValue)
		return nil
	}
	g.PlayerHand = g.PlayerHand.WithAceValue(*in.AceValue)
	return nil
}

// Settlement

func (p *Processor) settleMain(g *Game, w *Wallet, playDealer bool) {
	if playDealer {
		g.DealerHand = p.dealer.Play(g.DealerHand, g.Shoe, g.PlayerHand.Value)
	}
	out := Resolve(Settle{
		PlayerHand:         g.PlayerHand,
		DealerHand:         g.DealerHand,
		BetAmount:          g.CurrentBet,
		InsuranceBet:       g.InsuranceBet,
		DealerHasBlackjack: g.DealerHand.IsBlackjack,
		HasSurrendered:     g.HasSurrendered,
	})
	p.finish(g, w, out, StateEnded)
}

// settleSplit plays the dealer once against the best standing split hand
// and settles each split hand on its own stake.
func (p *Processor) settleSplit(g *Game, w *Wallet) {
	if !g.allSplitHandsBust() {
		g.DealerHand = p.dealer.Play(g.DealerHand, g.Shoe, g.PlayerValueHint())
	}

	total := decimal.Zero
	results := make([]Result, 0, len(g.SplitHands))
	for _, hand := range g.SplitHands {
		bet := g.BetAmount
		if hand.OriginalBet != nil {
			bet = *hand.OriginalBet
		}
		out := Resolve(Settle{
			PlayerHand:         hand,
			DealerHand:         g.DealerHand,
			BetAmount:          bet,
			DealerHasBlackjack: g.DealerHand.IsBlackjack,
		})
		total = total.Add(out.WinAmount)
		results = append(results, out.Result)
	}

	out := Outcome{
		WinAmount:    total,
		InsuranceWin: InsurancePayout(g.InsuranceBet, g.DealerHand.IsBlackjack),
	}
	out.NetProfit = out.Payout().Sub(g.CurrentBet).Sub(g.InsuranceBet)
	out.Result = aggregateResult(results, total.Sub(g.CurrentBet))

	g.SplitResults = results
	p.finish(g, w, out, StateEnded)
}

func aggregateResult(results []Result, mainNet decimal.Decimal) Result {
	same := true
	for _, r := range results[1:] {
		if r != results[0] {
			same = false
			break
		}
	}
	if same {
		return results[0]
	}
	switch mainNet.Sign() {
	case 1:
		return ResultWin
	case -1:
		return ResultLose
	default:
		return ResultPush
	}
}

func (p *Processor) finish(g *Game, w *Wallet, out Outcome, state State) {
	g.Result = out.Result
	g.WinAmount = out.WinAmount
	g.InsuranceWin = out.InsuranceWin
	g.NetProfit = out.NetProfit
	g.State = state
	now := p.clock.Now()
	g.EndedAt = &now
	if payout := out.Payout(); payout.IsPositive() {
		w.Credit(payout)
	}
}

func drawCard(g *Game) (deck.Card, error) {
	if g.Shoe == nil {
		return deck.Card{}, ErrShoeExhausted
	}
	card, err := g.Shoe.Draw()
	if err != nil {
		return deck.Card{}, Wrap(ErrShoeExhausted, err)
	}
	return card, nil
}
