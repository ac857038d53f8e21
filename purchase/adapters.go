/*
adapters.go - Ledger and inventory contracts consumed by the engine

PURPOSE:
  The purchase engine never talks to storage directly. It consumes two
  narrow adapters - currency balances and item inventory - plus a Wallet
  that composes the two into one atomic transaction.

DOUBLE-SPEND SAFETY:
  Debit is a conditional decrement at the storage layer: it fails with
  ErrInsufficientFunds when the balance row would go negative, instead of
  reading then writing across calls. Two concurrent purchases against the
  same balance can therefore never both observe a pre-debit balance
  sufficient for one purchase.

ATOMICITY:
  WithTx runs the debit-then-credit sequence inside a single storage
  transaction. If fn returns an error - insufficient funds on a late debit,
  a failed grant, a transient storage fault - every prior debit and grant
  in the transaction is rolled back.
*/
package purchase

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger exposes atomic balance reads, debits, and credits per user per
// currency.
type Ledger interface {
	// Balance returns the user's balance in one currency. Unknown
	// user/currency pairs have balance zero.
	Balance(ctx context.Context, userID, currencyID string) (decimal.Decimal, error)

	// Debit atomically decrements a balance. Returns an error wrapping
	// catalog.ErrInsufficientFunds when the balance is too low; the balance
	// is untouched in that case.
	Debit(ctx context.Context, userID, currencyID string, amount decimal.Decimal) error

	// Credit atomically increments a balance.
	Credit(ctx context.Context, userID, currencyID string, amount decimal.Decimal) error
}

// Inventory exposes atomic item grants per user.
type Inventory interface {
	// Grant adds the items to the user's inventory. Granting the same item
	// twice stacks its quantity.
	Grant(ctx context.Context, userID string, itemIDs []string) error
}

// Wallet composes ledger and inventory over shared storage so a purchase
// can debit and credit as one unit.
type Wallet interface {
	Ledger
	Inventory

	// WithTx executes fn within a transaction. The Ledger and Inventory
	// passed to fn operate on the transaction; any error rolls everything
	// back.
	WithTx(ctx context.Context, fn func(l Ledger, inv Inventory) error) error
}
