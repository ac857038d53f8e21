/*
Package catalog provides the core offer catalog engine.

PURPOSE:
  This package contains the domain types and store contract for purchasable
  store offers: bundles of virtual items sold for one or more virtual
  currencies, optionally time-boxed and taggable. The same types flow through
  the storage layer, the purchase engine, and the HTTP API.

KEY CONCEPTS IN THIS FILE (types.go):
  - Offer: A purchasable bundle with prices, validity window, and metadata
  - PriceInfo: Cost of one item in one currency, optionally app-scoped
  - TimeInfo: Validity window, possibly repeating on an interval
  - Patch: Partial update applied to a single offer field-by-field

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all price math, never float64
  2. Stable IDs: Offer IDs are assigned once at creation and never change
  3. Ordered collections: Tag and item order is significant and preserved
  4. Partial mutation: Every setter maps to one Patch; unset fields are untouched

SEE ALSO:
  - errors.go: Sentinel errors shared across the engine
  - store.go: Persistence contract and multi-value query batching
  - service.go: Admin-gated operations over a Store
*/
package catalog

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OFFER - Purchasable bundle of virtual items
// =============================================================================

type Offer struct {
	ID          string
	AppIDs      []string
	ItemIDs     []string
	Name        string
	Description string
	ImageURL    string
	Tags        []string
	Prices      []PriceInfo
	Time        TimeInfo
	Properties  string
	CreatedAt   time.Time
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate shared state.
func (o Offer) Clone() Offer {
	c := o
	c.AppIDs = append([]string(nil), o.AppIDs...)
	c.ItemIDs = append([]string(nil), o.ItemIDs...)
	c.Tags = append([]string(nil), o.Tags...)
	c.Prices = append([]PriceInfo(nil), o.Prices...)
	for i := range c.Prices {
		c.Prices[i].AppIDs = append([]string(nil), o.Prices[i].AppIDs...)
	}
	return c
}

// VisibleIn reports whether the offer is scoped to any of the given apps.
func (o Offer) VisibleIn(appIDs []string) bool {
	for _, want := range appIDs {
		for _, have := range o.AppIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// PRICE INFO - Cost of one item in one currency
// =============================================================================

type PriceInfo struct {
	AppIDs     []string
	ItemID     string
	CurrencyID string
	Amount     decimal.Decimal
}

func NewPriceInfo(itemID, currencyID string, amount int64) PriceInfo {
	return PriceInfo{ItemID: itemID, CurrencyID: currencyID, Amount: decimal.NewFromInt(amount)}
}

func (p PriceInfo) Equal(other PriceInfo) bool {
	if p.ItemID != other.ItemID || p.CurrencyID != other.CurrencyID || !p.Amount.Equal(other.Amount) {
		return false
	}
	if len(p.AppIDs) != len(other.AppIDs) {
		return false
	}
	for i := range p.AppIDs {
		if p.AppIDs[i] != other.AppIDs[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// TIME INFO - Purchasability window
// =============================================================================

// TimeInfo defines when an offer can be purchased. All fields are epoch
// seconds; a zero field means unbounded (Start/End) or non-repeating
// (IntervalDuration). A repeating offer is open for IntervalDuration seconds,
// then closed for IntervalDelay seconds, cycling from Start until End.
type TimeInfo struct {
	Start            int64
	End              int64
	IntervalDuration int64
	IntervalDelay    int64
}

func NewTimeInfo(start, end, intervalDuration, intervalDelay int64) TimeInfo {
	return TimeInfo{Start: start, End: end, IntervalDuration: intervalDuration, IntervalDelay: intervalDelay}
}

// IsZero reports whether no window is configured at all (always open).
func (t TimeInfo) IsZero() bool {
	return t.Start == 0 && t.End == 0 && t.IntervalDuration == 0 && t.IntervalDelay == 0
}

// Open reports whether the window admits a purchase at the given instant.
// Interval repetition is re-evaluated on every call.
func (t TimeInfo) Open(at time.Time) bool {
	now := at.Unix()
	if t.Start != 0 && now < t.Start {
		return false
	}
	if t.End != 0 && now > t.End {
		return false
	}
	if t.IntervalDuration <= 0 {
		return true
	}
	cycle := t.IntervalDuration + t.IntervalDelay
	if cycle <= 0 {
		return true
	}
	elapsed := now - t.Start
	return elapsed%cycle < t.IntervalDuration
}

// =============================================================================
// MUTATION TYPES
// =============================================================================

// AddOffer is the request to create a new offer. AppIDs and ItemIDs are
// required; everything else defaults to empty.
type AddOffer struct {
	AppIDs      []string
	ItemIDs     []string
	Name        string
	Description string
	Tags        []string

	// PriceItemID, when set, seeds the offer with a single zero-amount
	// price entry for that item. The price can be raised later via SetPrices.
	PriceItemID string
}

func (a AddOffer) Validate() error {
	if len(a.AppIDs) == 0 {
		return invalidArgument("appIds must not be empty")
	}
	if len(a.ItemIDs) == 0 {
		return invalidArgument("itemIds must not be empty")
	}
	return nil
}

// Patch is a partial update of a single offer. Nil fields are left untouched;
// every setter builds a Patch with exactly one field set, so validation and
// atomicity live in one place instead of seven.
type Patch struct {
	Name        *string
	Description *string
	ImageURL    *string
	Tags        *[]string
	Prices      *[]PriceInfo
	Time        *TimeInfo
	Properties  *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Name == nil && p.Description == nil && p.ImageURL == nil &&
		p.Tags == nil && p.Prices == nil && p.Time == nil && p.Properties == nil
}

// Apply overlays the patch onto an offer.
func (p Patch) Apply(o Offer) Offer {
	if p.Name != nil {
		o.Name = *p.Name
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.ImageURL != nil {
		o.ImageURL = *p.ImageURL
	}
	if p.Tags != nil {
		o.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Prices != nil {
		o.Prices = append([]PriceInfo(nil), (*p.Prices)...)
	}
	if p.Time != nil {
		o.Time = *p.Time
	}
	if p.Properties != nil {
		o.Properties = *p.Properties
	}
	return o
}

// ScopeTags namespaces tags to an app: each tag becomes "{tag}_{appId}".
// Scoping is explicit: it happens only when a non-empty appID is supplied,
// never inferred from call-site context.
func ScopeTags(tags []string, appID string) []string {
	if appID == "" {
		return append([]string(nil), tags...)
	}
	scoped := make([]string, len(tags))
	for i, tag := range tags {
		scoped[i] = tag + "_" + appID
	}
	return scoped
}

// ValidateProperties checks that a properties blob is well-formed JSON.
func ValidateProperties(blob string) error {
	if !json.Valid([]byte(blob)) {
		return invalidArgument("properties must be valid JSON")
	}
	return nil
}
