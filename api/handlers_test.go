/*
handlers_test.go - HTTP-level tests through the full router

Covers admin gating, the offer catalog round trip, purchases (committed,
denied, unauthenticated), and the error-status mapping.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playforge/store-engine/auth"
	"github.com/playforge/store-engine/catalog"
	"github.com/playforge/store-engine/catalog/store"
	"github.com/playforge/store-engine/purchase"
)

type testServer struct {
	router     http.Handler
	wallet     *purchase.MemoryWallet
	adminToken string
	userToken  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	guard := auth.NewAdminGuard()
	svc := catalog.NewService(store.NewMemory(), guard)
	wallet := purchase.NewMemoryWallet()
	engine := purchase.NewEngine(svc, wallet)

	verifier, err := auth.NewTokenVerifier("test-secret", time.Hour)
	require.NoError(t, err)
	adminToken, err := verifier.Sign(auth.Caller{UserID: "admin-1", Admin: true})
	require.NoError(t, err)
	userToken, err := verifier.Sign(auth.Caller{UserID: "user-1"})
	require.NoError(t, err)

	handler := NewHandler(svc, engine, wallet, guard)
	router := NewRouter(handler, RouterConfig{Verifier: verifier})

	return &testServer{
		router:     router,
		wallet:     wallet,
		adminToken: adminToken,
		userToken:  userToken,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (s *testServer) createOffer(t *testing.T, req CreateOfferRequest) OfferDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/offers", s.adminToken, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[OfferDTO](t, rec)
}

func (s *testServer) credit(t *testing.T, userID, currencyID string, amount int64) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/admin/credits", s.adminToken, CreditRequest{
		UserID: userID, CurrencyID: currencyID, Amount: decimal.NewFromInt(amount),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// OFFER ENDPOINT TESTS
// =============================================================================

func TestCreateOffer_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	req := CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"sword"}, Name: "Pack"}

	// Anonymous and non-admin callers are rejected without side effects.
	rec := s.do(t, http.MethodPost, "/api/offers", "", req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/offers", s.userToken, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/offers?appIds=app1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]OfferDTO](t, rec))

	// Admin succeeds.
	offer := s.createOffer(t, req)
	assert.NotEmpty(t, offer.ID)
	assert.Equal(t, "Pack", offer.Name)
}

func TestCreateOffer_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/offers", s.adminToken, `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid JSON but missing required sets.
	rec = s.do(t, http.MethodPost, "/api/offers", s.adminToken, CreateOfferRequest{Name: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOfferQueries(t *testing.T) {
	s := newTestServer(t)
	a := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}, Name: "A"})
	b := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app2"}, ItemIDs: []string{"i2"}, Name: "B"})

	// by-ids returns both, deduplicated.
	rec := s.do(t, http.MethodGet, "/api/offers/by-ids?ids="+a.ID+","+b.ID+","+a.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]OfferDTO](t, rec), 2)

	// Listing by app id sees only that app's offers.
	rec = s.do(t, http.MethodGet, "/api/offers?appIds=app2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	offers := decode[[]OfferDTO](t, rec)
	require.Len(t, offers, 1)
	assert.Equal(t, "B", offers[0].Name)

	// Single offer fetch; unknown id is a 404.
	rec = s.do(t, http.MethodGet, "/api/offers/"+a.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/offers/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetAndQueryScopedTags(t *testing.T) {
	s := newTestServer(t)
	offer := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	rec := s.do(t, http.MethodPut, "/api/offers/"+offer.ID+"/tags", s.adminToken,
		SetTagsRequest{Tags: []string{"sale"}, AppID: "app1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"sale_app1"}, decode[TagsDTO](t, rec).Tags)

	// Querying with the appId parameter applies the same scoping.
	rec = s.do(t, http.MethodGet, "/api/offers/by-tags?tags=sale&appId=app1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]OfferDTO](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/offers/by-tags?tags=sale", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]OfferDTO](t, rec))

	rec = s.do(t, http.MethodGet, "/api/offers/"+offer.ID+"/tags", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sale_app1"}, decode[TagsDTO](t, rec).Tags)
}

func TestSettersRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	offer := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	rec := s.do(t, http.MethodPut, "/api/offers/"+offer.ID+"/name", s.userToken, SetNameRequest{Name: "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/offers/"+offer.ID, s.userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteOffer(t *testing.T) {
	s := newTestServer(t)
	offer := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	rec := s.do(t, http.MethodDelete, "/api/offers/"+offer.ID, s.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Second delete and follow-up reads are 404s.
	rec = s.do(t, http.MethodDelete, "/api/offers/"+offer.ID, s.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/offers/"+offer.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportOffers(t *testing.T) {
	s := newTestServer(t)

	table := "name,description,appIds,tags,imageUrl,time,properties,itemIds,prices\n" +
		`Pack A,,"[""app1""]","[""sale""]",,,,"[""i1""]",` + "\n"

	rec := s.do(t, http.MethodPost, "/api/offers/import", s.adminToken, table)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]OfferDTO](t, rec)
	require.Len(t, created, 1)
	assert.Equal(t, "Pack A", created[0].Name)

	rec = s.do(t, http.MethodPost, "/api/offers/import", s.userToken, table)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/offers/import", s.adminToken, "bad,header\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PURCHASE ENDPOINT TESTS
// =============================================================================

func TestBuyOffer_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	offer := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"sword"}})

	rec := s.do(t, http.MethodPut, "/api/offers/"+offer.ID+"/prices", s.adminToken, SetPricesRequest{
		Prices: []PriceDTO{{ItemID: "sword", CurrencyID: "coins", Amount: decimal.NewFromInt(25)}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.credit(t, "user-1", "coins", 30)

	// First purchase commits and debits.
	rec = s.do(t, http.MethodPost, "/api/purchase/offer", s.userToken, BuyOfferRequest{OfferID: offer.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[ReceiptDTO](t, rec)
	assert.Empty(t, receipt.Denied)
	assert.Equal(t, []string{"sword"}, receipt.PurchasedItems)
	require.Len(t, receipt.Debits, 1)
	assert.True(t, receipt.Debits[0].Amount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, map[string]int{"sword": 1}, s.wallet.Items("user-1"))

	// Second purchase is denied (balance 5 < 25) but still a 200.
	rec = s.do(t, http.MethodPost, "/api/purchase/offer", s.userToken, BuyOfferRequest{OfferID: offer.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	receipt = decode[ReceiptDTO](t, rec)
	assert.Equal(t, purchase.DeniedInsufficientFunds, receipt.Denied)
	assert.Empty(t, receipt.PurchasedItems)
	assert.Equal(t, map[string]int{"sword": 1}, s.wallet.Items("user-1"))
}

func TestBuy_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/purchase/items", "", BuyItemsRequest{ItemIDs: []string{"i1"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuy_ClosedWindowConflict(t *testing.T) {
	s := newTestServer(t)
	offer := s.createOffer(t, CreateOfferRequest{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	// A window that ended long ago.
	rec := s.do(t, http.MethodPut, "/api/offers/"+offer.ID+"/time", s.adminToken, SetTimeRequest{
		Time: TimeDTO{Start: 1000, End: 2000},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/purchase/offer", s.userToken, BuyOfferRequest{OfferID: offer.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBuy_UnknownOfferNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/purchase/offer", s.userToken, BuyOfferRequest{OfferID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ADMIN ENDPOINT TESTS
// =============================================================================

func TestCreditsAndBalances(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/admin/credits", s.userToken, CreditRequest{
		UserID: "user-1", CurrencyID: "coins", Amount: decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s.credit(t, "user-1", "coins", 10)
	s.credit(t, "user-1", "coins", 5)

	rec = s.do(t, http.MethodGet, "/api/admin/balances?userId=user-1&currencyId=coins", s.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[BalanceDTO](t, rec)
	assert.True(t, balance.Amount.Equal(decimal.NewFromInt(15)), "balance = %s", balance.Amount)
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/offers/unknown", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Error)
	assert.True(t, strings.Contains(rec.Header().Get("Content-Type"), "application/json"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
