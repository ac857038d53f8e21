/*
service.go - Admin-gated catalog operations

PURPOSE:
  Service is the public surface of the offer catalog. It owns id assignment,
  input validation, admin gating, tag app-scoping, and the optional
  read-through cache; persistence is delegated to a Store.

ACCESS CONTROL:
  Every mutation checks the Guard before touching the store, so a denied
  call provably has no side effects. Queries are open to anonymous callers.

CACHING:
  When a cache is configured, GetByIDs serves single offers from it and
  every mutation invalidates the touched offer. Set queries (tags, app ids,
  timestamps) always go to the store: their results depend on offers the
  cache doesn't know about.

SEE ALSO:
  - import.go: Bulk CSV import built on Add
  - auth/guard.go: The capability check
*/
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playforge/store-engine/auth"
	"github.com/playforge/store-engine/cache"
)

const offerCacheTTL = 5 * time.Minute

// Service exposes the offer catalog operations.
type Service struct {
	store Store
	guard auth.Guard
	cache cache.Cache // nil disables caching
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables read-through caching of offers by id.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, guard auth.Guard, opts ...Option) *Service {
	s := &Service{
		store: store,
		guard: guard,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func offerCacheKey(id string) string { return "offer:" + id }

// =============================================================================
// MUTATIONS
// =============================================================================

// Add creates a new offer with a fresh id.
func (s *Service) Add(ctx context.Context, caller auth.Caller, req AddOffer) (Offer, error) {
	if err := s.guard.RequireAdmin(caller); err != nil {
		return Offer{}, err
	}
	if err := req.Validate(); err != nil {
		return Offer{}, err
	}

	offer := Offer{
		ID:          uuid.NewString(),
		AppIDs:      DedupeStrings(req.AppIDs),
		ItemIDs:     append([]string(nil), req.ItemIDs...),
		Name:        req.Name,
		Description: req.Description,
		Tags:        append([]string(nil), req.Tags...),
		Properties:  "{}",
		CreatedAt:   s.now(),
	}
	if req.PriceItemID != "" {
		offer.Prices = []PriceInfo{NewPriceInfo(req.PriceItemID, "", 0)}
	}

	if err := s.store.Insert(ctx, offer); err != nil {
		return Offer{}, fmt.Errorf("add offer: %w", err)
	}
	return offer, nil
}

// SetTags replaces an offer's tags. A non-empty appID namespaces each stored
// tag to "{tag}_{appId}"; scoping never happens implicitly.
func (s *Service) SetTags(ctx context.Context, caller auth.Caller, offerID string, tags []string, appID string) ([]string, error) {
	scoped := ScopeTags(tags, appID)
	offer, err := s.update(ctx, caller, offerID, Patch{Tags: &scoped})
	if err != nil {
		return nil, err
	}
	return offer.Tags, nil
}

// SetName replaces an offer's display name.
func (s *Service) SetName(ctx context.Context, caller auth.Caller, offerID, name string) (string, error) {
	offer, err := s.update(ctx, caller, offerID, Patch{Name: &name})
	if err != nil {
		return "", err
	}
	return offer.Name, nil
}

// SetDescription replaces an offer's description.
func (s *Service) SetDescription(ctx context.Context, caller auth.Caller, offerID, description string) (string, error) {
	offer, err := s.update(ctx, caller, offerID, Patch{Description: &description})
	if err != nil {
		return "", err
	}
	return offer.Description, nil
}

// SetImageURL replaces an offer's image URL.
func (s *Service) SetImageURL(ctx context.Context, caller auth.Caller, offerID, imageURL string) (string, error) {
	offer, err := s.update(ctx, caller, offerID, Patch{ImageURL: &imageURL})
	if err != nil {
		return "", err
	}
	return offer.ImageURL, nil
}

// SetPrices replaces an offer's price list.
func (s *Service) SetPrices(ctx context.Context, caller auth.Caller, offerID string, prices []PriceInfo) ([]PriceInfo, error) {
	for _, p := range prices {
		if p.ItemID == "" {
			return nil, invalidArgument("price itemId must not be empty")
		}
		if p.Amount.IsNegative() {
			return nil, invalidArgument("price amount must not be negative")
		}
	}
	offer, err := s.update(ctx, caller, offerID, Patch{Prices: &prices})
	if err != nil {
		return nil, err
	}
	return offer.Prices, nil
}

// SetTime replaces an offer's purchasability window.
func (s *Service) SetTime(ctx context.Context, caller auth.Caller, offerID string, info TimeInfo) (TimeInfo, error) {
	if info.End != 0 && info.Start > info.End {
		return TimeInfo{}, invalidArgument("time window ends before it starts")
	}
	offer, err := s.update(ctx, caller, offerID, Patch{Time: &info})
	if err != nil {
		return TimeInfo{}, err
	}
	return offer.Time, nil
}

// SetProperties replaces an offer's opaque properties blob.
func (s *Service) SetProperties(ctx context.Context, caller auth.Caller, offerID, blob string) (string, error) {
	if err := ValidateProperties(blob); err != nil {
		return "", err
	}
	offer, err := s.update(ctx, caller, offerID, Patch{Properties: &blob})
	if err != nil {
		return "", err
	}
	return offer.Properties, nil
}

// update centralizes the admin check, the store call, and cache invalidation
// for every field setter.
func (s *Service) update(ctx context.Context, caller auth.Caller, offerID string, patch Patch) (Offer, error) {
	if err := s.guard.RequireAdmin(caller); err != nil {
		return Offer{}, err
	}
	offer, err := s.store.Update(ctx, offerID, patch)
	if err != nil {
		return Offer{}, err
	}
	s.invalidate(ctx, offerID)
	return offer, nil
}

// Delete removes an offer. Deleting twice surfaces ErrNotFound on the
// second call; subsequent queries never return the offer.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, offerID string) error {
	if err := s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, offerID); err != nil {
		return err
	}
	s.invalidate(ctx, offerID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, offerID string) {
	if s.cache == nil {
		return
	}
	// Best effort: a stale entry expires via TTL anyway.
	_ = s.cache.Delete(ctx, offerCacheKey(offerID))
}

// =============================================================================
// QUERIES
// =============================================================================

// GetByIDs returns the offers matching ids, deduplicated and ordered by id.
// Sets larger than the backend query cap are answered in full.
func (s *Service) GetByIDs(ctx context.Context, ids []string) ([]Offer, error) {
	ids = DedupeStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	if s.cache == nil {
		return s.store.GetByIDs(ctx, ids)
	}

	var hits []Offer
	var misses []string
	for _, id := range ids {
		var offer Offer
		if err := cache.GetJSON(ctx, s.cache, offerCacheKey(id), &offer); err == nil {
			hits = append(hits, offer)
		} else {
			misses = append(misses, id)
		}
	}

	var fetched []Offer
	if len(misses) > 0 {
		var err error
		fetched, err = s.store.GetByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, offer := range fetched {
			_ = cache.SetJSON(ctx, s.cache, offerCacheKey(offer.ID), offer, offerCacheTTL)
		}
	}
	return MergeByID(hits, fetched), nil
}

// GetByTags returns offers whose tags intersect the requested set.
func (s *Service) GetByTags(ctx context.Context, tags []string) ([]Offer, error) {
	if len(tags) == 0 {
		return nil, invalidArgument("tags must not be empty")
	}
	return s.store.GetByTags(ctx, DedupeStrings(tags))
}

// GetByAppIDs returns offers visible in any of the apps, paginated by id.
func (s *Service) GetByAppIDs(ctx context.Context, q AppQuery) ([]Offer, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.AppIDs = DedupeStrings(q.AppIDs)
	return s.store.GetByAppIDs(ctx, q)
}

// GetByTimestamp returns offers for one app created at or after since.
func (s *Service) GetByTimestamp(ctx context.Context, appID string, since time.Time) ([]Offer, error) {
	if appID == "" {
		return nil, invalidArgument("appId must not be empty")
	}
	return s.store.GetByTimestamp(ctx, appID, since)
}

// GetOffer returns a single offer or ErrNotFound.
func (s *Service) GetOffer(ctx context.Context, offerID string) (Offer, error) {
	offers, err := s.GetByIDs(ctx, []string{offerID})
	if err != nil {
		return Offer{}, err
	}
	if len(offers) == 0 {
		return Offer{}, ErrNotFound
	}
	return offers[0], nil
}

// GetTags returns one offer's tags in stored order.
func (s *Service) GetTags(ctx context.Context, offerID string) ([]string, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return offer.Tags, nil
}

// GetProperties returns one offer's properties blob.
func (s *Service) GetProperties(ctx context.Context, offerID string) (string, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return "", err
	}
	return offer.Properties, nil
}
