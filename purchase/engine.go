/*
engine.go - The purchase engine

PURPOSE:
  Orchestrates a purchase: validates offer eligibility, computes the total
  price per currency, debits the buyer's balances, and credits the bought
  items - all or nothing.

OUTCOME MODEL:
  A purchase attempt moves through
    Requested -> Validated -> Committed | Denied
  Validation failures (unknown offer, closed window, malformed input) are
  errors returned to the caller. Running out of funds is NOT an error: it
  is a normal business outcome reported as a receipt with no items and a
  Denied reason. Callers inspect the receipt, not an error, to detect it.

SEE ALSO:
  - adapters.go: Ledger/Inventory/Wallet contracts
  - catalog/types.go: TimeInfo window evaluation
*/
package purchase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/playforge/store-engine/catalog"
)

// DeniedInsufficientFunds is the Receipt.Denied reason for a funds shortfall.
const DeniedInsufficientFunds = "insufficient_funds"

// Receipt is the result of a purchase attempt. Committed purchases list the
// granted items and exact debits; denied purchases carry an empty item list
// and a Denied reason, and guarantee zero side effects.
type Receipt struct {
	OfferID string
	Items   []string
	Debits  []CurrencyDebit
	Denied  string
}

// Committed reports whether the purchase went through.
func (r Receipt) Committed() bool { return r.Denied == "" }

// CurrencyDebit records one currency movement on a receipt.
type CurrencyDebit struct {
	CurrencyID string
	Amount     decimal.Decimal
}

// OfferReader is the slice of the catalog the engine needs.
type OfferReader interface {
	GetOffer(ctx context.Context, offerID string) (catalog.Offer, error)
}

// Engine executes purchases against a catalog and a wallet.
type Engine struct {
	offers OfferReader
	wallet Wallet
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the time source used for window checks.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(offers OfferReader, wallet Wallet, opts ...EngineOption) *Engine {
	e := &Engine{
		offers: offers,
		wallet: wallet,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuyItems purchases the given items. With an offerID the offer's price
// list (filtered to the requested items, and to the requested currencies
// when any are named) determines the cost; without one the items are free
// grants and currencies are irrelevant.
func (e *Engine) BuyItems(ctx context.Context, userID string, itemIDs, currencies []string, offerID string) (Receipt, error) {
	if userID == "" {
		return Receipt{}, fmt.Errorf("%w: userId must not be empty", catalog.ErrInvalidArgument)
	}
	if len(itemIDs) == 0 {
		return Receipt{}, fmt.Errorf("%w: itemIds must not be empty", catalog.ErrInvalidArgument)
	}

	if offerID == "" {
		return e.commit(ctx, userID, Receipt{Items: append([]string(nil), itemIDs...)}, nil)
	}

	offer, err := e.offers.GetOffer(ctx, offerID)
	if err != nil {
		return Receipt{}, err
	}
	if !offer.Time.Open(e.now()) {
		return Receipt{}, fmt.Errorf("%w: offer %s", catalog.ErrOutOfWindow, offerID)
	}

	totals := priceTotals(offer.Prices, itemIDs, currencies)
	receipt := Receipt{OfferID: offerID, Items: append([]string(nil), itemIDs...)}
	return e.commit(ctx, userID, receipt, totals)
}

// BuyOffer purchases an offer's full item bundle.
func (e *Engine) BuyOffer(ctx context.Context, userID, offerID string, currencies []string) (Receipt, error) {
	if userID == "" {
		return Receipt{}, fmt.Errorf("%w: userId must not be empty", catalog.ErrInvalidArgument)
	}
	if offerID == "" {
		return Receipt{}, fmt.Errorf("%w: offerId must not be empty", catalog.ErrInvalidArgument)
	}

	offer, err := e.offers.GetOffer(ctx, offerID)
	if err != nil {
		return Receipt{}, err
	}
	if !offer.Time.Open(e.now()) {
		return Receipt{}, fmt.Errorf("%w: offer %s", catalog.ErrOutOfWindow, offerID)
	}

	totals := priceTotals(offer.Prices, offer.ItemIDs, currencies)
	receipt := Receipt{OfferID: offerID, Items: append([]string(nil), offer.ItemIDs...)}
	return e.commit(ctx, userID, receipt, totals)
}

// priceTotals sums the required amount per currency for the requested items.
// Prices for other items are ignored; when currencies are named, prices in
// other currencies are ignored too. Zero totals are dropped.
func priceTotals(prices []catalog.PriceInfo, itemIDs, currencies []string) map[string]decimal.Decimal {
	wantItem := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wantItem[id] = true
	}
	wantCurrency := make(map[string]bool, len(currencies))
	for _, c := range currencies {
		wantCurrency[c] = true
	}

	totals := make(map[string]decimal.Decimal)
	for _, p := range prices {
		if !wantItem[p.ItemID] || p.CurrencyID == "" || p.Amount.IsZero() {
			continue
		}
		if len(wantCurrency) > 0 && !wantCurrency[p.CurrencyID] {
			continue
		}
		totals[p.CurrencyID] = totals[p.CurrencyID].Add(p.Amount)
	}
	return totals
}

// commit performs the balance precheck and the atomic debit+grant. A funds
// shortfall - detected up front or by a conditional debit losing a race -
// yields a denied receipt with everything rolled back.
func (e *Engine) commit(ctx context.Context, userID string, receipt Receipt, totals map[string]decimal.Decimal) (Receipt, error) {
	// Stable debit order keeps receipts and lock ordering deterministic.
	currencyIDs := make([]string, 0, len(totals))
	for id := range totals {
		currencyIDs = append(currencyIDs, id)
	}
	sort.Strings(currencyIDs)

	// Precheck: deny cheaply before opening a transaction. The conditional
	// debit below re-verifies under the transaction, so this is not racy.
	for _, currencyID := range currencyIDs {
		balance, err := e.wallet.Balance(ctx, userID, currencyID)
		if err != nil {
			return Receipt{}, err
		}
		if balance.LessThan(totals[currencyID]) {
			return denied(receipt), nil
		}
	}

	err := e.wallet.WithTx(ctx, func(l Ledger, inv Inventory) error {
		for _, currencyID := range currencyIDs {
			if err := l.Debit(ctx, userID, currencyID, totals[currencyID]); err != nil {
				return err
			}
		}
		return inv.Grant(ctx, userID, receipt.Items)
	})
	if errors.Is(err, catalog.ErrInsufficientFunds) {
		return denied(receipt), nil
	}
	if err != nil {
		return Receipt{}, err
	}

	for _, currencyID := range currencyIDs {
		receipt.Debits = append(receipt.Debits, CurrencyDebit{CurrencyID: currencyID, Amount: totals[currencyID]})
	}
	return receipt, nil
}

func denied(r Receipt) Receipt {
	return Receipt{OfferID: r.OfferID, Denied: DeniedInsufficientFunds}
}
