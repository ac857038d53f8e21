/*
store.go - Persistence contract for offers

PURPOSE:
  Defines the interface between the catalog service and the database.
  Different implementations can use SQLite or in-memory storage.

MULTI-VALUE QUERY CAP:
  Hosted document stores cap the number of values a single query may match
  against (Firestore's "in" operator takes at most 10). Implementations
  must hide that cap: callers pass id/app-id sets of any size and get the
  full merged result back, deduplicated and ordered by id. MaxQueryValues
  is the cap both bundled implementations batch against.

PAGINATION:
  GetByAppIDs pages over ascending offer id. The cursor names the last id
  of the previous page; the next page starts strictly after it. Because
  large app-id sets are answered by several underlying chunk queries, a
  merged page can come up short while chunks still hold matches. A Strict
  query keeps draining chunks until the page is full or the result set is
  exhausted, so a short page always means "no more results".

SEE ALSO:
  - store/memory.go: In-memory implementation for tests/dev
  - storage/sqlite: Production implementation
*/
package catalog

import (
	"context"
	"sort"
	"time"
)

// MaxQueryValues is the largest value set a single backend query may filter
// against. Stores batch and merge beyond it.
const MaxQueryValues = 10

// Store handles offer persistence. Mutations are atomic per offer; queries
// are snapshot-consistent per call.
type Store interface {
	// Insert persists a freshly created offer.
	Insert(ctx context.Context, offer Offer) error

	// GetByIDs returns the offers matching the given ids, deduplicated and
	// ordered by id ascending. Unknown ids are skipped, not errors.
	GetByIDs(ctx context.Context, ids []string) ([]Offer, error)

	// GetByTags returns offers whose tag list intersects the given set.
	GetByTags(ctx context.Context, tags []string) ([]Offer, error)

	// GetByAppIDs returns offers visible in any of the queried apps,
	// paginated per AppQuery.
	GetByAppIDs(ctx context.Context, q AppQuery) ([]Offer, error)

	// GetByTimestamp returns offers for one app created at or after since,
	// ordered by creation time then id.
	GetByTimestamp(ctx context.Context, appID string, since time.Time) ([]Offer, error)

	// Update applies a partial update to one offer and returns the updated
	// record. Returns ErrNotFound for unknown ids. Fields the patch leaves
	// nil are untouched.
	Update(ctx context.Context, offerID string, patch Patch) (Offer, error)

	// Delete removes an offer. Returns ErrNotFound if it doesn't exist,
	// including on a second delete of the same id.
	Delete(ctx context.Context, offerID string) error
}

// AppQuery parameterizes GetByAppIDs.
type AppQuery struct {
	AppIDs []string
	Limit  int

	// Cursor, when non-empty, restricts results to ids strictly greater.
	Cursor string

	// Strict guarantees that a page shorter than Limit means the result
	// set is exhausted, at the cost of extra chunk queries.
	Strict bool
}

func (q AppQuery) Validate() error {
	if len(q.AppIDs) == 0 {
		return invalidArgument("appIds must not be empty")
	}
	if q.Limit <= 0 {
		return invalidArgument("limit must be positive")
	}
	return nil
}

// =============================================================================
// CHUNK / MERGE HELPERS - Shared by store implementations
// =============================================================================

// Chunk splits values into slices of at most size elements.
func Chunk(values []string, size int) [][]string {
	if size <= 0 || len(values) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// MergeByID merges result pages into one slice deduplicated by id and
// ordered by id ascending.
func MergeByID(pages ...[]Offer) []Offer {
	seen := make(map[string]bool)
	var merged []Offer
	for _, page := range pages {
		for _, offer := range page {
			if seen[offer.ID] {
				continue
			}
			seen[offer.ID] = true
			merged = append(merged, offer)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}

// DedupeStrings removes duplicates preserving first-seen order.
func DedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
