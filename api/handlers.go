/*
handlers.go - HTTP API handlers for the store engine

PURPOSE:
  Exposes the offer catalog and purchase engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Offers:
    POST   /api/offers                    Create offer (admin)
    POST   /api/offers/import             Bulk CSV import (admin)
    GET    /api/offers                    Page offers by app ids
    GET    /api/offers/by-ids             Get offers by id set
    GET    /api/offers/by-tags            Get offers by tag set
    GET    /api/offers/by-timestamp       Get offers created since a time
    GET    /api/offers/{id}               Get one offer
    GET    /api/offers/{id}/tags          Get one offer's tags
    GET    /api/offers/{id}/properties    Get one offer's properties
    PUT    /api/offers/{id}/<field>       Replace one field (admin)
    DELETE /api/offers/{id}               Delete offer (admin)

  Purchases:
    POST   /api/purchase/items            Buy items (authenticated)
    POST   /api/purchase/offer            Buy an offer bundle (authenticated)

  Admin:
    POST   /api/admin/credits             Credit a user balance
    GET    /api/admin/balances            Read a user balance

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the caller from the request context
  3. Call domain logic (catalog service, purchase engine)
  4. Serialize response
  5. Map domain errors to HTTP statuses

ERROR HANDLING:
  Domain sentinels map to statuses in one place (handleError):
  - 400: Invalid input
  - 401: Purchase without a valid token
  - 403: Admin operation by a non-admin caller
  - 404: Unknown offer
  - 409: Purchase outside the offer's time window
  - 503: Transient storage failure, safe to retry
  An insufficient-funds denial is NOT an error: it returns 200 with an
  empty purchasedItems list and a denied reason on the receipt.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playforge/store-engine/auth"
	"github.com/playforge/store-engine/catalog"
	"github.com/playforge/store-engine/purchase"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog *catalog.Service
	Engine  *purchase.Engine
	Ledger  purchase.Ledger
	Guard   auth.Guard
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(cat *catalog.Service, engine *purchase.Engine, ledger purchase.Ledger, guard auth.Guard) *Handler {
	return &Handler{Catalog: cat, Engine: engine, Ledger: ledger, Guard: guard}
}

// =============================================================================
// OFFER HANDLERS
// =============================================================================

// CreateOffer creates a new offer.
// POST /api/offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	offer, err := h.Catalog.Add(r.Context(), callerFrom(r), catalog.AddOffer{
		AppIDs:      req.AppIDs,
		ItemIDs:     req.ItemIDs,
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		PriceItemID: req.PriceItemID,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferDTO(offer))
}

// ImportOffers bulk-creates offers from a CSV body.
// POST /api/offers/import
func (h *Handler) ImportOffers(w http.ResponseWriter, r *http.Request) {
	created, err := h.Catalog.Import(r.Context(), callerFrom(r), r.Body)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferDTOs(created))
}

// ListOffers pages offers visible in a set of apps, ordered by id.
// GET /api/offers?appIds=a,b&limit=20&cursor=<last id>&strict=true
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := catalog.AppQuery{
		AppIDs: splitParam(r.URL.Query().Get("appIds")),
		Limit:  20,
		Cursor: r.URL.Query().Get("cursor"),
		Strict: parseBool(r.URL.Query().Get("strict")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		q.Limit = limit
	}

	offers, err := h.Catalog.GetByAppIDs(r.Context(), q)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTOs(offers))
}

// GetOffersByIDs returns offers for an explicit id set. Sets larger than
// the backend query cap are answered in full.
// GET /api/offers/by-ids?ids=a,b,c
func (h *Handler) GetOffersByIDs(w http.ResponseWriter, r *http.Request) {
	ids := splitParam(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required", nil)
		return
	}
	offers, err := h.Catalog.GetByIDs(r.Context(), ids)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTOs(offers))
}

// GetOffersByTags returns offers whose tags intersect the requested set.
// An appId parameter queries the app-scoped form of each tag instead.
// GET /api/offers/by-tags?tags=x,y&appId=app1
func (h *Handler) GetOffersByTags(w http.ResponseWriter, r *http.Request) {
	tags := splitParam(r.URL.Query().Get("tags"))
	if appID := r.URL.Query().Get("appId"); appID != "" {
		tags = catalog.ScopeTags(tags, appID)
	}
	offers, err := h.Catalog.GetByTags(r.Context(), tags)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTOs(offers))
}

// GetOffersByTimestamp returns offers for one app created at or after the
// given epoch-seconds timestamp.
// GET /api/offers/by-timestamp?appId=app1&since=1700000000
func (h *Handler) GetOffersByTimestamp(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("appId")
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid since (epoch seconds)", err)
		return
	}
	offers, err := h.Catalog.GetByTimestamp(r.Context(), appID, time.Unix(since, 0).UTC())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTOs(offers))
}

// GetOffer returns a single offer.
// GET /api/offers/{id}
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.Catalog.GetOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTO(offer))
}

// GetOfferTags returns one offer's tags in stored order.
// GET /api/offers/{id}/tags
func (h *Handler) GetOfferTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Catalog.GetTags(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, TagsDTO{Tags: tags})
}

// GetOfferProperties returns one offer's properties blob.
// GET /api/offers/{id}/properties
func (h *Handler) GetOfferProperties(w http.ResponseWriter, r *http.Request) {
	blob, err := h.Catalog.GetProperties(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PropertiesDTO{Properties: blob})
}

// SetOfferName replaces an offer's display name.
// PUT /api/offers/{id}/name
func (h *Handler) SetOfferName(w http.ResponseWriter, r *http.Request) {
	var req SetNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	name, err := h.Catalog.SetName(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SetNameRequest{Name: name})
}

// SetOfferDescription replaces an offer's description.
// PUT /api/offers/{id}/description
func (h *Handler) SetOfferDescription(w http.ResponseWriter, r *http.Request) {
	var req SetDescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	desc, err := h.Catalog.SetDescription(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SetDescriptionRequest{Description: desc})
}

// SetOfferImage replaces an offer's image URL.
// PUT /api/offers/{id}/image
func (h *Handler) SetOfferImage(w http.ResponseWriter, r *http.Request) {
	var req SetImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	url, err := h.Catalog.SetImageURL(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.ImageURL)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SetImageRequest{ImageURL: url})
}

// SetOfferTags replaces an offer's tags, optionally scoped to an app.
// PUT /api/offers/{id}/tags
func (h *Handler) SetOfferTags(w http.ResponseWriter, r *http.Request) {
	var req SetTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	tags, err := h.Catalog.SetTags(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.Tags, req.AppID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TagsDTO{Tags: tags})
}

// SetOfferPrices replaces an offer's price list.
// PUT /api/offers/{id}/prices
func (h *Handler) SetOfferPrices(w http.ResponseWriter, r *http.Request) {
	var req SetPricesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	prices, err := h.Catalog.SetPrices(r.Context(), callerFrom(r), chi.URLParam(r, "id"), toPrices(req.Prices))
	if err != nil {
		handleError(w, err)
		return
	}
	resp := SetPricesRequest{Prices: make([]PriceDTO, len(prices))}
	for i, p := range prices {
		resp.Prices[i] = PriceDTO(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetOfferTime replaces an offer's purchasability window.
// PUT /api/offers/{id}/time
func (h *Handler) SetOfferTime(w http.ResponseWriter, r *http.Request) {
	var req SetTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	info, err := h.Catalog.SetTime(r.Context(), callerFrom(r), chi.URLParam(r, "id"), catalog.TimeInfo(req.Time))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SetTimeRequest{Time: TimeDTO(info)})
}

// SetOfferProperties replaces an offer's opaque properties blob.
// PUT /api/offers/{id}/properties
func (h *Handler) SetOfferProperties(w http.ResponseWriter, r *http.Request) {
	var req SetPropertiesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	blob, err := h.Catalog.SetProperties(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.Properties)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PropertiesDTO{Properties: blob})
}

// DeleteOffer removes an offer permanently.
// DELETE /api/offers/{id}
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// BuyItems purchases specific items as the authenticated caller. With an
// offerId the offer's prices apply; without one the items are free grants.
// POST /api/purchase/items
func (h *Handler) BuyItems(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req BuyItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.Engine.BuyItems(r.Context(), caller.UserID, req.ItemIDs, req.Currencies, req.OfferID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// BuyOffer purchases an offer's full item bundle as the authenticated caller.
// POST /api/purchase/offer
func (h *Handler) BuyOffer(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req BuyOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.Engine.BuyOffer(r.Context(), caller.UserID, req.OfferID, req.Currencies)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreditBalance tops up one user balance.
// POST /api/admin/credits
func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	if err := h.Guard.RequireAdmin(callerFrom(r)); err != nil {
		handleError(w, err)
		return
	}

	var req CreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.CurrencyID == "" {
		writeError(w, http.StatusBadRequest, "userId and currencyId are required", nil)
		return
	}

	if err := h.Ledger.Credit(r.Context(), req.UserID, req.CurrencyID, req.Amount); err != nil {
		handleError(w, err)
		return
	}
	balance, err := h.Ledger.Balance(r.Context(), req.UserID, req.CurrencyID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{UserID: req.UserID, CurrencyID: req.CurrencyID, Amount: balance})
}

// GetBalance reads one user balance.
// GET /api/admin/balances?userId=u1&currencyId=coins
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if err := h.Guard.RequireAdmin(callerFrom(r)); err != nil {
		handleError(w, err)
		return
	}

	userID := r.URL.Query().Get("userId")
	currencyID := r.URL.Query().Get("currencyId")
	if userID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "userId and currencyId are required", nil)
		return
	}

	balance, err := h.Ledger.Balance(r.Context(), userID, currencyID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{UserID: userID, CurrencyID: currencyID, Amount: balance})
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// callerFrom returns the authenticated caller, or the anonymous caller for
// unauthenticated requests. Admin-gated paths reject the anonymous caller
// in the guard, queries accept it.
func callerFrom(r *http.Request) auth.Caller {
	caller, _ := auth.CallerFrom(r.Context())
	return caller
}

// handleError maps domain errors onto HTTP statuses.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "Permission denied", err)
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Offer not found", err)
	case errors.Is(err, catalog.ErrOutOfWindow):
		writeError(w, http.StatusConflict, "Offer not available at this time", err)
	case errors.Is(err, catalog.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case errors.Is(err, catalog.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "Temporary storage failure, retry later", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(r.Body).Decode(dest)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(raw string) bool {
	return raw == "true" || raw == "1"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
