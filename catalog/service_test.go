package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/playforge/store-engine/auth"
	"github.com/playforge/store-engine/cache"
	"github.com/playforge/store-engine/catalog"
	"github.com/playforge/store-engine/catalog/store"
)

var (
	admin = auth.Caller{UserID: "admin-1", Admin: true}
	buyer = auth.Caller{UserID: "user-1"}
)

func newService(t *testing.T, opts ...catalog.Option) *catalog.Service {
	t.Helper()
	return catalog.NewService(store.NewMemory(), auth.NewAdminGuard(), opts...)
}

func addOffer(t *testing.T, svc *catalog.Service, req catalog.AddOffer) catalog.Offer {
	t.Helper()
	offer, err := svc.Add(context.Background(), admin, req)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return offer
}

func TestAdd_AssignsIDAndDefaults(t *testing.T) {
	svc := newService(t)

	offer := addOffer(t, svc, catalog.AddOffer{
		AppIDs:      []string{"app1"},
		ItemIDs:     []string{"sword"},
		Name:        "Starter Pack",
		PriceItemID: "sword",
	})

	if offer.ID == "" {
		t.Error("created offer must have an id")
	}
	if offer.Properties != "{}" {
		t.Errorf("Properties = %q, want empty JSON object", offer.Properties)
	}
	if len(offer.Prices) != 1 || offer.Prices[0].ItemID != "sword" || !offer.Prices[0].Amount.IsZero() {
		t.Errorf("PriceItemID should seed one zero-amount price, got %+v", offer.Prices)
	}
	if offer.CreatedAt.IsZero() {
		t.Error("created offer must carry a creation timestamp")
	}
}

func TestAdd_RequiresAdmin(t *testing.T) {
	svc := newService(t)

	_, err := svc.Add(context.Background(), buyer, catalog.AddOffer{
		AppIDs: []string{"app1"}, ItemIDs: []string{"i1"},
	})
	if !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	// Denied call has no side effects.
	offers, err := svc.GetByAppIDs(context.Background(), catalog.AppQuery{AppIDs: []string{"app1"}, Limit: 10})
	if err != nil {
		t.Fatalf("GetByAppIDs: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("denied Add still created %d offers", len(offers))
	}
}

func TestSetters_RequireAdmin(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	ctx := context.Background()
	if _, err := svc.SetName(ctx, buyer, offer.ID, "x"); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Errorf("SetName as non-admin: err = %v, want ErrPermissionDenied", err)
	}
	if err := svc.Delete(ctx, buyer, offer.ID); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Errorf("Delete as non-admin: err = %v, want ErrPermissionDenied", err)
	}
}

func TestSetTags_ScopedToApp(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	ctx := context.Background()
	tags, err := svc.SetTags(ctx, admin, offer.ID, []string{"sale", "hot"}, "app1")
	if err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if tags[0] != "sale_app1" || tags[1] != "hot_app1" {
		t.Errorf("scoped tags = %v", tags)
	}

	// The scoped form is what queries must use.
	offers, err := svc.GetByTags(ctx, []string{"sale_app1"})
	if err != nil {
		t.Fatalf("GetByTags: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("got %d offers by scoped tag, want 1", len(offers))
	}
	offers, err = svc.GetByTags(ctx, []string{"sale"})
	if err != nil {
		t.Fatalf("GetByTags: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("unscoped tag matched %d offers, want 0", len(offers))
	}
}

func TestSetTags_UnscopedWithoutAppID(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	tags, err := svc.SetTags(context.Background(), admin, offer.ID, []string{"sale"}, "")
	if err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if tags[0] != "sale" {
		t.Errorf("tags = %v, want unscoped [sale]", tags)
	}
}

func TestSetPrices_Validation(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	ctx := context.Background()
	_, err := svc.SetPrices(ctx, admin, offer.ID, []catalog.PriceInfo{{CurrencyID: "coins"}})
	if !errors.Is(err, catalog.ErrInvalidArgument) {
		t.Errorf("empty itemId: err = %v, want ErrInvalidArgument", err)
	}

	_, err = svc.SetPrices(ctx, admin, offer.ID, []catalog.PriceInfo{
		{ItemID: "i1", CurrencyID: "coins", Amount: decimal.NewFromInt(-5)},
	})
	if !errors.Is(err, catalog.ErrInvalidArgument) {
		t.Errorf("negative amount: err = %v, want ErrInvalidArgument", err)
	}

	prices, err := svc.SetPrices(ctx, admin, offer.ID, []catalog.PriceInfo{
		catalog.NewPriceInfo("i1", "coins", 25),
	})
	if err != nil {
		t.Fatalf("SetPrices: %v", err)
	}
	if len(prices) != 1 || !prices[0].Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("prices = %+v", prices)
	}
}

func TestSetTime_RejectsInvertedWindow(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	_, err := svc.SetTime(context.Background(), admin, offer.ID, catalog.NewTimeInfo(2000, 1000, 0, 0))
	if !errors.Is(err, catalog.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetProperties_RoundTrip(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	ctx := context.Background()
	blob := `{"theme":"winter","slots":3}`
	if _, err := svc.SetProperties(ctx, admin, offer.ID, blob); err != nil {
		t.Fatalf("SetProperties: %v", err)
	}

	got, err := svc.GetProperties(ctx, offer.ID)
	if err != nil {
		t.Fatalf("GetProperties: %v", err)
	}
	if got != blob {
		t.Errorf("properties = %q, want %q", got, blob)
	}

	if _, err := svc.SetProperties(ctx, admin, offer.ID, `not json`); !errors.Is(err, catalog.ErrInvalidArgument) {
		t.Errorf("invalid JSON: err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetter_UnknownOffer(t *testing.T) {
	svc := newService(t)
	_, err := svc.SetName(context.Background(), admin, "missing", "x")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_SecondDeleteNotFound(t *testing.T) {
	svc := newService(t)
	offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})

	ctx := context.Background()
	if err := svc.Delete(ctx, admin, offer.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.Delete(ctx, admin, offer.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetOffer(ctx, offer.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("read after delete: err = %v, want ErrNotFound", err)
	}
}

func TestGetByIDs_ServesFromCacheAndInvalidates(t *testing.T) {
	// GIVEN: A service with an in-process cache
	mem := store.NewMemory()
	c := cache.NewMemory()
	svc := catalog.NewService(mem, auth.NewAdminGuard(), catalog.WithCache(c))

	ctx := context.Background()
	offer, err := svc.Add(ctx, admin, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}, Name: "v1"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// WHEN: The offer is read (populating the cache), then renamed
	if _, err := svc.GetByIDs(ctx, []string{offer.ID}); err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if _, err := svc.SetName(ctx, admin, offer.ID, "v2"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	// THEN: The next read sees the new name, not the cached record
	got, err := svc.GetOffer(ctx, offer.ID)
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if got.Name != "v2" {
		t.Errorf("Name = %q, want %q (stale cache not invalidated)", got.Name, "v2")
	}
}

func TestGetByIDs_LargeSetAnsweredInFull(t *testing.T) {
	svc := newService(t)

	ctx := context.Background()
	var ids []string
	for i := 0; i < catalog.MaxQueryValues+5; i++ {
		offer := addOffer(t, svc, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}})
		ids = append(ids, offer.ID)
	}

	offers, err := svc.GetByIDs(ctx, ids)
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(offers) != len(ids) {
		t.Errorf("got %d offers, want %d (id set beyond the query cap must be merged)", len(offers), len(ids))
	}
	for i := 1; i < len(offers); i++ {
		if offers[i-1].ID >= offers[i].ID {
			t.Fatal("results must be ordered by id ascending")
		}
	}
}

func TestGetByTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	svc := catalog.NewService(store.NewMemory(), auth.NewAdminGuard(),
		catalog.WithClock(func() time.Time { return clock }))

	ctx := context.Background()
	if _, err := svc.Add(ctx, admin, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}, Name: "old"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	clock = base.Add(time.Hour)
	if _, err := svc.Add(ctx, admin, catalog.AddOffer{AppIDs: []string{"app1"}, ItemIDs: []string{"i1"}, Name: "new"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	offers, err := svc.GetByTimestamp(ctx, "app1", base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("GetByTimestamp: %v", err)
	}
	if len(offers) != 1 || offers[0].Name != "new" {
		t.Errorf("got %d offers, want only the newer one", len(offers))
	}

	// Other apps see nothing.
	offers, err = svc.GetByTimestamp(ctx, "app2", base)
	if err != nil {
		t.Fatalf("GetByTimestamp: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("app2 sees %d offers, want 0", len(offers))
	}
}
