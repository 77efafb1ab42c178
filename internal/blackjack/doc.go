// Package blackjack implements the rules of a single round of blackjack.
//
// The package is pure and synchronous: it scores hands, plays the dealer,
// validates and applies player actions and settles finished games. It
// never touches storage or the network; callers persist the returned Game
// and the Wallet delta together.
//
// # Basic Usage
//
//	proc := blackjack.NewProcessor(blackjack.NewDealerPolicy(rng), quartz.NewReal())
//	wallet := blackjack.NewWallet(balance)
//	game, err := proc.Deal(blackjack.NewGame(id, playerID, bet, shoe, now), wallet)
//	game, err = proc.Apply(game, blackjack.ActionStand, blackjack.Payload{}, wallet)
//	// persist game and wallet.Delta() atomically
//
// # Atomicity
//
// Apply never mutates its input. Every action is validated against the
// current game before anything changes, and a failed action returns a
// typed *Error with the original game untouched. The only side effect
// that survives a failure is none: stakes debited mid-action (double
// down) are refunded to the wallet before the error is returned.
//
// # Money
//
// Amounts are shopspring/decimal values. Payout multipliers are exact
// decimals so settlement never drifts across many hands.
package blackjack
