package blackjack

import "github.com/shopspring/decimal"

// Wallet tracks balance movements made while processing one action. The
// balance is a snapshot read before the action; the accumulated delta is
// committed together with the game.
type Wallet struct {
	balance decimal.Decimal
	delta   decimal.Decimal
}

// NewWallet starts a wallet from the player's current balance
func NewWallet(balance decimal.Decimal) *Wallet {
	return &Wallet{balance: balance, delta: decimal.Zero}
}

// Available is the balance after pending movements
func (w *Wallet) Available() decimal.Decimal {
	return w.balance.Add(w.delta)
}

// CanCover reports whether amount can be debited.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.Available().GreaterThanOrEqual(amount)
}

// Debit removes amount or fails without change
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !w.CanCover(amount) {
		return ErrInsufficientBalance
	}
	w.delta = w.delta.Sub(amount)
	return nil
}

// Credit adds amount
func (w *Wallet) Credit(amount decimal.Decimal) {
	w.delta = w.delta.Add(amount)
}

// Delta is the net change to commit
func (w *Wallet) Delta() decimal.Decimal {
	return w.delta
}
