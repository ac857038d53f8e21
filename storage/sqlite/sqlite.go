/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements offer persistence (catalog.Store) and the purchase wallet
  (purchase.Wallet) on one database so debits and grants commit in a single
  transaction. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  offers:       Offer records (scalar fields + prices as JSON)
  offer_apps:   App-id scope rows, indexed for GetByAppIDs
  offer_tags:   Ordered tag rows, indexed for GetByTags
  offer_items:  Ordered item rows
  balances:     One row per user per currency, decimal stored as text
  inventory:    One row per user per item with a stacked quantity

MULTI-VALUE QUERY CAP:
  Queries that filter on a value set (ids, app ids, tags) are issued in
  chunks of catalog.MaxQueryValues and merged, mirroring the per-query cap
  of hosted document stores. Per-chunk pages are each capped at the request
  limit, so the merged, deduplicated union always contains the exact global
  page - a short page means the result set is exhausted.

DOUBLE-SPEND SAFETY:
  Debits re-read the balance inside the same SQL transaction that writes
  it, and the store serializes writers, so a debit can never act on a
  balance another purchase is halfway through spending.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/store.db")  // ":memory:" for tests
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/playforge/store-engine/catalog"
	"github.com/playforge/store-engine/purchase"
)

// Store implements catalog.Store and purchase.Wallet using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS offers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		time_start INTEGER NOT NULL DEFAULT 0,
		time_end INTEGER NOT NULL DEFAULT 0,
		interval_duration INTEGER NOT NULL DEFAULT 0,
		interval_delay INTEGER NOT NULL DEFAULT 0,
		prices_json TEXT NOT NULL DEFAULT '[]',
		properties TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS offer_apps (
		offer_id TEXT NOT NULL,
		app_id TEXT NOT NULL,
		PRIMARY KEY (offer_id, app_id)
	);
	CREATE INDEX IF NOT EXISTS idx_offer_apps_app
		ON offer_apps(app_id, offer_id);

	CREATE TABLE IF NOT EXISTS offer_tags (
		offer_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (offer_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_offer_tags_tag
		ON offer_tags(tag, offer_id);

	CREATE TABLE IF NOT EXISTS offer_items (
		offer_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		PRIMARY KEY (offer_id, position)
	);

	-- Index for creation-time queries (GetByTimestamp hot path)
	CREATE INDEX IF NOT EXISTS idx_offers_created_at
		ON offers(created_at, id);

	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (user_id, currency_id)
	);

	CREATE TABLE IF NOT EXISTS inventory (
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, item_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", catalog.ErrTransient, op, err)
}

// dbPrice is the JSON shape prices are persisted in.
type dbPrice struct {
	AppIDs     []string        `json:"appIds,omitempty"`
	ItemID     string          `json:"itemId"`
	CurrencyID string          `json:"currencyId"`
	Amount     decimal.Decimal `json:"amount"`
}

func marshalPrices(prices []catalog.PriceInfo) (string, error) {
	rows := make([]dbPrice, len(prices))
	for i, p := range prices {
		rows[i] = dbPrice(p)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalPrices(raw string) ([]catalog.PriceInfo, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var rows []dbPrice
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, err
	}
	prices := make([]catalog.PriceInfo, len(rows))
	for i, r := range rows {
		prices[i] = catalog.PriceInfo(r)
	}
	return prices, nil
}

// =============================================================================
// OFFER STORE (catalog.Store interface)
// =============================================================================

// Insert persists a freshly created offer.
func (s *Store) Insert(ctx context.Context, offer catalog.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin insert", err)
	}
	defer tx.Rollback()

	pricesJSON, err := marshalPrices(offer.Prices)
	if err != nil {
		return fmt.Errorf("marshal prices: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO offers
		(id, name, description, image_url, time_start, time_end,
		 interval_duration, interval_delay, prices_json, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		offer.ID, offer.Name, offer.Description, offer.ImageURL,
		offer.Time.Start, offer.Time.End, offer.Time.IntervalDuration, offer.Time.IntervalDelay,
		pricesJSON, offer.Properties,
		offer.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return transient("insert offer", err)
	}

	if err := insertScopeRows(ctx, tx, offer); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return transient("commit insert", err)
	}
	return nil
}

func insertScopeRows(ctx context.Context, q queryer, offer catalog.Offer) error {
	for _, appID := range offer.AppIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO offer_apps (offer_id, app_id) VALUES (?, ?)",
			offer.ID, appID); err != nil {
			return transient("insert offer app", err)
		}
	}
	for i, tag := range offer.Tags {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO offer_tags (offer_id, position, tag) VALUES (?, ?, ?)",
			offer.ID, i, tag); err != nil {
			return transient("insert offer tag", err)
		}
	}
	for i, itemID := range offer.ItemIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO offer_items (offer_id, position, item_id) VALUES (?, ?, ?)",
			offer.ID, i, itemID); err != nil {
			return transient("insert offer item", err)
		}
	}
	return nil
}

// GetByIDs returns offers by id, deduplicated and ordered by id ascending.
// Id sets larger than the query cap are answered with several chunked
// queries merged into one result.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]catalog.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadOffers(ctx, s.db, catalog.DedupeStrings(ids))
}

// GetByTags returns offers whose tag list intersects the given set.
func (s *Store) GetByTags(ctx context.Context, tags []string) ([]catalog.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, chunk := range catalog.Chunk(catalog.DedupeStrings(tags), catalog.MaxQueryValues) {
		chunkIDs, err := s.queryIDs(ctx,
			"SELECT DISTINCT offer_id FROM offer_tags WHERE tag IN ("+placeholders(len(chunk))+") ORDER BY offer_id",
			toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		ids = append(ids, chunkIDs...)
	}
	return s.loadOffers(ctx, s.db, catalog.DedupeStrings(ids))
}

// GetByAppIDs returns a page of offers visible in any of the queried apps,
// ordered by id ascending, starting strictly after the cursor.
//
// Each app-id chunk contributes its own first Limit ids after the cursor;
// any id in the global page is necessarily inside its chunk's page, so the
// merged union always contains the exact global page. Both Strict and
// non-strict callers therefore get partition-exact pages here.
func (s *Store) GetByAppIDs(ctx context.Context, q catalog.AppQuery) ([]catalog.Offer, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, chunk := range catalog.Chunk(catalog.DedupeStrings(q.AppIDs), catalog.MaxQueryValues) {
		args := toArgs(chunk)
		args = append(args, q.Cursor, q.Limit)
		chunkIDs, err := s.queryIDs(ctx, `
			SELECT DISTINCT offer_id FROM offer_apps
			WHERE app_id IN (`+placeholders(len(chunk))+`) AND offer_id > ?
			ORDER BY offer_id LIMIT ?`,
			args...)
		if err != nil {
			return nil, err
		}
		ids = append(ids, chunkIDs...)
	}

	ids = catalog.DedupeStrings(ids)
	sort.Strings(ids)
	if len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	return s.loadOffers(ctx, s.db, ids)
}

// GetByTimestamp returns offers for one app created at or after since.
func (s *Store) GetByTimestamp(ctx context.Context, appID string, since time.Time) ([]catalog.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.queryIDs(ctx, `
		SELECT o.id FROM offers o
		JOIN offer_apps a ON a.offer_id = o.id
		WHERE a.app_id = ? AND o.created_at >= ?
		ORDER BY o.created_at, o.id`,
		appID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}

	offers, err := s.loadOffers(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	// loadOffers orders by id; restore creation order.
	byID := make(map[string]catalog.Offer, len(offers))
	for _, o := range offers {
		byID[o.ID] = o
	}
	ordered := make([]catalog.Offer, 0, len(offers))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			ordered = append(ordered, o)
		}
	}
	return ordered, nil
}

// Update applies a partial update atomically and returns the new record.
func (s *Store) Update(ctx context.Context, offerID string, patch catalog.Patch) (catalog.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Offer{}, transient("begin update", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM offers WHERE id = ?", offerID).Scan(&exists)
	if err != nil {
		return catalog.Offer{}, transient("check offer", err)
	}
	if exists == 0 {
		return catalog.Offer{}, catalog.ErrNotFound
	}

	var sets []string
	var args []any
	if patch.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *patch.Description)
	}
	if patch.ImageURL != nil {
		sets, args = append(sets, "image_url = ?"), append(args, *patch.ImageURL)
	}
	if patch.Time != nil {
		sets = append(sets, "time_start = ?", "time_end = ?", "interval_duration = ?", "interval_delay = ?")
		args = append(args, patch.Time.Start, patch.Time.End, patch.Time.IntervalDuration, patch.Time.IntervalDelay)
	}
	if patch.Prices != nil {
		pricesJSON, err := marshalPrices(*patch.Prices)
		if err != nil {
			return catalog.Offer{}, fmt.Errorf("marshal prices: %w", err)
		}
		sets, args = append(sets, "prices_json = ?"), append(args, pricesJSON)
	}
	if patch.Properties != nil {
		sets, args = append(sets, "properties = ?"), append(args, *patch.Properties)
	}
	if len(sets) > 0 {
		args = append(args, offerID)
		if _, err := tx.ExecContext(ctx,
			"UPDATE offers SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return catalog.Offer{}, transient("update offer", err)
		}
	}

	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM offer_tags WHERE offer_id = ?", offerID); err != nil {
			return catalog.Offer{}, transient("replace tags", err)
		}
		for i, tag := range *patch.Tags {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO offer_tags (offer_id, position, tag) VALUES (?, ?, ?)",
				offerID, i, tag); err != nil {
				return catalog.Offer{}, transient("replace tags", err)
			}
		}
	}

	offers, err := s.loadOffers(ctx, tx, []string{offerID})
	if err != nil {
		return catalog.Offer{}, err
	}
	if len(offers) == 0 {
		return catalog.Offer{}, catalog.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return catalog.Offer{}, transient("commit update", err)
	}
	return offers[0], nil
}

// Delete removes an offer and all of its scope rows. A second delete of the
// same id returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, offerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin delete", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM offers WHERE id = ?", offerID)
	if err != nil {
		return transient("delete offer", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return transient("delete offer", err)
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}

	for _, table := range []string{"offer_apps", "offer_tags", "offer_items"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE offer_id = ?", offerID); err != nil {
			return transient("delete offer scope", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return transient("commit delete", err)
	}
	return nil
}

// =============================================================================
// OFFER LOADING
// =============================================================================

// loadOffers assembles full offers for the given ids, ordered by id
// ascending, issuing chunked queries for sets beyond the cap.
func (s *Store) loadOffers(ctx context.Context, q queryer, ids []string) ([]catalog.Offer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	byID := make(map[string]*catalog.Offer, len(ids))
	for _, chunk := range catalog.Chunk(ids, catalog.MaxQueryValues) {
		if err := s.loadOfferRows(ctx, q, chunk, byID); err != nil {
			return nil, err
		}
	}
	for _, chunk := range catalog.Chunk(ids, catalog.MaxQueryValues) {
		if err := s.loadScopeRows(ctx, q, chunk, byID); err != nil {
			return nil, err
		}
	}

	result := make([]catalog.Offer, 0, len(byID))
	for _, offer := range byID {
		result = append(result, *offer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) loadOfferRows(ctx context.Context, q queryer, ids []string, byID map[string]*catalog.Offer) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, image_url, time_start, time_end,
		       interval_duration, interval_delay, prices_json, properties, created_at
		FROM offers WHERE id IN (`+placeholders(len(ids))+`)`,
		toArgs(ids)...)
	if err != nil {
		return transient("query offers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o catalog.Offer
		var pricesJSON, createdAt string
		if err := rows.Scan(
			&o.ID, &o.Name, &o.Description, &o.ImageURL,
			&o.Time.Start, &o.Time.End, &o.Time.IntervalDuration, &o.Time.IntervalDelay,
			&pricesJSON, &o.Properties, &createdAt,
		); err != nil {
			return transient("scan offer", err)
		}
		if o.Prices, err = unmarshalPrices(pricesJSON); err != nil {
			return fmt.Errorf("unmarshal prices for %s: %w", o.ID, err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		offer := o
		byID[o.ID] = &offer
	}
	return rows.Err()
}

func (s *Store) loadScopeRows(ctx context.Context, q queryer, ids []string, byID map[string]*catalog.Offer) error {
	rows, err := q.QueryContext(ctx,
		"SELECT offer_id, app_id FROM offer_apps WHERE offer_id IN ("+placeholders(len(ids))+") ORDER BY offer_id, app_id",
		toArgs(ids)...)
	if err != nil {
		return transient("query offer apps", err)
	}
	defer rows.Close()
	for rows.Next() {
		var offerID, appID string
		if err := rows.Scan(&offerID, &appID); err != nil {
			return transient("scan offer app", err)
		}
		if o := byID[offerID]; o != nil {
			o.AppIDs = append(o.AppIDs, appID)
		}
	}
	if err := rows.Err(); err != nil {
		return transient("query offer apps", err)
	}

	tagRows, err := q.QueryContext(ctx,
		"SELECT offer_id, tag FROM offer_tags WHERE offer_id IN ("+placeholders(len(ids))+") ORDER BY offer_id, position",
		toArgs(ids)...)
	if err != nil {
		return transient("query offer tags", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var offerID, tag string
		if err := tagRows.Scan(&offerID, &tag); err != nil {
			return transient("scan offer tag", err)
		}
		if o := byID[offerID]; o != nil {
			o.Tags = append(o.Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return transient("query offer tags", err)
	}

	itemRows, err := q.QueryContext(ctx,
		"SELECT offer_id, item_id FROM offer_items WHERE offer_id IN ("+placeholders(len(ids))+") ORDER BY offer_id, position",
		toArgs(ids)...)
	if err != nil {
		return transient("query offer items", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var offerID, itemID string
		if err := itemRows.Scan(&offerID, &itemID); err != nil {
			return transient("scan offer item", err)
		}
		if o := byID[offerID]; o != nil {
			o.ItemIDs = append(o.ItemIDs, itemID)
		}
	}
	return itemRows.Err()
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, transient("query ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, transient("scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// =============================================================================
// WALLET (purchase.Wallet interface)
// =============================================================================

// Balance returns the user's balance in one currency; zero when no row.
func (s *Store) Balance(ctx context.Context, userID, currencyID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return balanceTx(ctx, s.db, userID, currencyID)
}

// Debit atomically decrements a balance, failing without side effects when
// the balance is too low.
func (s *Store) Debit(ctx context.Context, userID, currencyID string, amount decimal.Decimal) error {
	return s.WithTx(ctx, func(l purchase.Ledger, _ purchase.Inventory) error {
		return l.Debit(ctx, userID, currencyID, amount)
	})
}

// Credit atomically increments a balance, creating the row on first use.
func (s *Store) Credit(ctx context.Context, userID, currencyID string, amount decimal.Decimal) error {
	return s.WithTx(ctx, func(l purchase.Ledger, _ purchase.Inventory) error {
		return l.Credit(ctx, userID, currencyID, amount)
	})
}

// Grant adds items to the user's inventory.
func (s *Store) Grant(ctx context.Context, userID string, itemIDs []string) error {
	return s.WithTx(ctx, func(_ purchase.Ledger, inv purchase.Inventory) error {
		return inv.Grant(ctx, userID, itemIDs)
	})
}

// ItemCount returns the stacked quantity of one inventory item.
func (s *Store) ItemCount(ctx context.Context, userID, itemID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT quantity FROM inventory WHERE user_id = ? AND item_id = ?",
		userID, itemID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, transient("query inventory", err)
	}
	return count, nil
}

// WithTx executes fn within a database transaction; writers are serialized
// so the balance read inside a debit cannot race another debit.
func (s *Store) WithTx(ctx context.Context, fn func(l purchase.Ledger, inv purchase.Inventory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin wallet tx", err)
	}
	defer tx.Rollback()

	view := &txWallet{tx: tx}
	if err := fn(view, view); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return transient("commit wallet tx", err)
	}
	return nil
}

type txWallet struct {
	tx *sql.Tx
}

func (w *txWallet) Balance(ctx context.Context, userID, currencyID string) (decimal.Decimal, error) {
	return balanceTx(ctx, w.tx, userID, currencyID)
}

func (w *txWallet) Debit(ctx context.Context, userID, currencyID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: debit amount must not be negative", catalog.ErrInvalidArgument)
	}
	balance, err := balanceTx(ctx, w.tx, userID, currencyID)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return &catalog.InsufficientFundsError{
			UserID:     userID,
			CurrencyID: currencyID,
			Available:  balance,
			Required:   amount,
		}
	}
	return upsertBalance(ctx, w.tx, userID, currencyID, balance.Sub(amount))
}

func (w *txWallet) Credit(ctx context.Context, userID, currencyID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: credit amount must not be negative", catalog.ErrInvalidArgument)
	}
	balance, err := balanceTx(ctx, w.tx, userID, currencyID)
	if err != nil {
		return err
	}
	return upsertBalance(ctx, w.tx, userID, currencyID, balance.Add(amount))
}

func (w *txWallet) Grant(ctx context.Context, userID string, itemIDs []string) error {
	for _, itemID := range itemIDs {
		_, err := w.tx.ExecContext(ctx, `
			INSERT INTO inventory (user_id, item_id, quantity) VALUES (?, ?, 1)
			ON CONFLICT(user_id, item_id) DO UPDATE SET quantity = quantity + 1`,
			userID, itemID)
		if err != nil {
			return transient("grant item", err)
		}
	}
	return nil
}

func balanceTx(ctx context.Context, q queryer, userID, currencyID string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE user_id = ? AND currency_id = ?",
		userID, currencyID).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, transient("query balance", err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for %s/%s: %w", userID, currencyID, err)
	}
	return amount, nil
}

func upsertBalance(ctx context.Context, q queryer, userID, currencyID string, amount decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (user_id, currency_id, amount) VALUES (?, ?, ?)
		ON CONFLICT(user_id, currency_id) DO UPDATE SET amount = excluded.amount`,
		userID, currencyID, amount.String())
	if err != nil {
		return transient("write balance", err)
	}
	return nil
}
