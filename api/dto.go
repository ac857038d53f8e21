/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Field names are camelCase, matching the client SDKs
  - Amounts serialize as JSON numbers via decimal.Decimal
  - TimeInfo fields are epoch seconds; a zero window is omitted entirely

SEE ALSO:
  - handlers.go: Uses these types
  - catalog/types.go: The domain types they mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/playforge/store-engine/catalog"
	"github.com/playforge/store-engine/purchase"
)

// =============================================================================
// OFFER TYPES
// =============================================================================

// OfferDTO represents a catalog offer in API responses.
type OfferDTO struct {
	ID          string     `json:"id"`
	AppIDs      []string   `json:"appIds"`
	ItemIDs     []string   `json:"itemIds"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Prices      []PriceDTO `json:"prices,omitempty"`
	Time        *TimeDTO   `json:"time,omitempty"`
	Properties  string     `json:"properties,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PriceDTO is the cost of one item in one currency.
type PriceDTO struct {
	AppIDs     []string        `json:"appIds,omitempty"`
	ItemID     string          `json:"itemId"`
	CurrencyID string          `json:"currencyId"`
	Amount     decimal.Decimal `json:"amount"`
}

// TimeDTO is a purchasability window in epoch seconds.
type TimeDTO struct {
	Start            int64 `json:"start"`
	End              int64 `json:"end"`
	IntervalDuration int64 `json:"intervalDuration"`
	IntervalDelay    int64 `json:"intervalDelay"`
}

func toOfferDTO(o catalog.Offer) OfferDTO {
	dto := OfferDTO{
		ID:          o.ID,
		AppIDs:      o.AppIDs,
		ItemIDs:     o.ItemIDs,
		Name:        o.Name,
		Description: o.Description,
		ImageURL:    o.ImageURL,
		Tags:        o.Tags,
		Properties:  o.Properties,
		CreatedAt:   o.CreatedAt,
	}
	for _, p := range o.Prices {
		dto.Prices = append(dto.Prices, PriceDTO(p))
	}
	if !o.Time.IsZero() {
		t := TimeDTO(o.Time)
		dto.Time = &t
	}
	return dto
}

func toOfferDTOs(offers []catalog.Offer) []OfferDTO {
	dtos := make([]OfferDTO, 0, len(offers))
	for _, o := range offers {
		dtos = append(dtos, toOfferDTO(o))
	}
	return dtos
}

func toPrices(dtos []PriceDTO) []catalog.PriceInfo {
	prices := make([]catalog.PriceInfo, len(dtos))
	for i, p := range dtos {
		prices[i] = catalog.PriceInfo(p)
	}
	return prices
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateOfferRequest is the request to create an offer.
type CreateOfferRequest struct {
	AppIDs      []string `json:"appIds"`
	ItemIDs     []string `json:"itemIds"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`

	// PriceItemID seeds a single zero-amount price entry for one item.
	PriceItemID string `json:"priceItemId,omitempty"`
}

// SetNameRequest replaces an offer's display name.
type SetNameRequest struct {
	Name string `json:"name"`
}

// SetDescriptionRequest replaces an offer's description.
type SetDescriptionRequest struct {
	Description string `json:"description"`
}

// SetImageRequest replaces an offer's image URL.
type SetImageRequest struct {
	ImageURL string `json:"imageUrl"`
}

// SetTagsRequest replaces an offer's tags. A non-empty AppID namespaces
// each stored tag to "{tag}_{appId}".
type SetTagsRequest struct {
	Tags  []string `json:"tags"`
	AppID string   `json:"appId,omitempty"`
}

// SetPricesRequest replaces an offer's price list.
type SetPricesRequest struct {
	Prices []PriceDTO `json:"prices"`
}

// SetTimeRequest replaces an offer's purchasability window.
type SetTimeRequest struct {
	Time TimeDTO `json:"time"`
}

// SetPropertiesRequest replaces an offer's opaque properties blob.
type SetPropertiesRequest struct {
	Properties string `json:"properties"`
}

// BuyItemsRequest purchases specific items, optionally priced by an offer.
type BuyItemsRequest struct {
	ItemIDs    []string `json:"itemIds"`
	Currencies []string `json:"currencies,omitempty"`
	OfferID    string   `json:"offerId,omitempty"`
}

// BuyOfferRequest purchases an offer's full item bundle.
type BuyOfferRequest struct {
	OfferID    string   `json:"offerId"`
	Currencies []string `json:"currencies,omitempty"`
}

// CreditRequest tops up one user balance. Admin only.
type CreditRequest struct {
	UserID     string          `json:"userId"`
	CurrencyID string          `json:"currencyId"`
	Amount     decimal.Decimal `json:"amount"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ReceiptDTO is the outcome of a purchase attempt. A denied purchase has an
// empty purchasedItems list and a denied reason; clients must check it
// rather than rely on the HTTP status.
type ReceiptDTO struct {
	OfferID        string     `json:"offerId,omitempty"`
	PurchasedItems []string   `json:"purchasedItems"`
	Debits         []DebitDTO `json:"currenciesDebited,omitempty"`
	Denied         string     `json:"denied,omitempty"`
}

// DebitDTO records one currency movement on a receipt.
type DebitDTO struct {
	CurrencyID string          `json:"currencyId"`
	Amount     decimal.Decimal `json:"amount"`
}

func toReceiptDTO(r purchase.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		OfferID:        r.OfferID,
		PurchasedItems: r.Items,
		Denied:         r.Denied,
	}
	if dto.PurchasedItems == nil {
		dto.PurchasedItems = []string{}
	}
	for _, d := range r.Debits {
		dto.Debits = append(dto.Debits, DebitDTO(d))
	}
	return dto
}

// TagsDTO wraps a tag list response.
type TagsDTO struct {
	Tags []string `json:"tags"`
}

// PropertiesDTO wraps a properties blob response.
type PropertiesDTO struct {
	Properties string `json:"properties"`
}

// BalanceDTO reports one user balance.
type BalanceDTO struct {
	UserID     string          `json:"userId"`
	CurrencyID string          `json:"currencyId"`
	Amount     decimal.Decimal `json:"amount"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
