package purchase

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/playforge/store-engine/catalog"
)

// =============================================================================
// MEMORY WALLET - In-memory implementation (for testing/dev)
// =============================================================================

// MemoryWallet keeps balances and inventory in process. WithTx is simulated
// with a snapshot + rollback under one lock, which also gives the same
// serialization guarantee the SQL implementation gets from its transactions.
type MemoryWallet struct {
	mu        sync.Mutex
	balances  map[balanceKey]decimal.Decimal
	inventory map[string]map[string]int
}

type balanceKey struct {
	UserID     string
	CurrencyID string
}

func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{
		balances:  make(map[balanceKey]decimal.Decimal),
		inventory: make(map[string]map[string]int),
	}
}

func (m *MemoryWallet) Balance(_ context.Context, userID, currencyID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey{userID, currencyID}], nil
}

func (m *MemoryWallet) Debit(_ context.Context, userID, currencyID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(userID, currencyID, amount)
}

func (m *MemoryWallet) Credit(_ context.Context, userID, currencyID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditLocked(userID, currencyID, amount)
	return nil
}

func (m *MemoryWallet) Grant(_ context.Context, userID string, itemIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantLocked(userID, itemIDs)
	return nil
}

// Items returns the user's inventory counts. Test helper.
func (m *MemoryWallet) Items(userID string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.inventory[userID]))
	for item, n := range m.inventory[userID] {
		out[item] = n
	}
	return out
}

func (m *MemoryWallet) debitLocked(userID, currencyID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: debit amount must not be negative", catalog.ErrInvalidArgument)
	}
	key := balanceKey{userID, currencyID}
	balance := m.balances[key]
	if balance.LessThan(amount) {
		return &catalog.InsufficientFundsError{
			UserID:     userID,
			CurrencyID: currencyID,
			Available:  balance,
			Required:   amount,
		}
	}
	m.balances[key] = balance.Sub(amount)
	return nil
}

func (m *MemoryWallet) creditLocked(userID, currencyID string, amount decimal.Decimal) {
	key := balanceKey{userID, currencyID}
	m.balances[key] = m.balances[key].Add(amount)
}

func (m *MemoryWallet) grantLocked(userID string, itemIDs []string) {
	items := m.inventory[userID]
	if items == nil {
		items = make(map[string]int)
		m.inventory[userID] = items
	}
	for _, id := range itemIDs {
		items[id]++
	}
}

// WithTx executes fn against a transactional view, rolling back on error.
func (m *MemoryWallet) WithTx(_ context.Context, fn func(l Ledger, inv Inventory) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	view := &memoryTxView{wallet: m}
	if err := fn(view, view); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances  map[balanceKey]decimal.Decimal
	inventory map[string]map[string]int
}

func (m *MemoryWallet) snapshotLocked() memorySnapshot {
	balances := make(map[balanceKey]decimal.Decimal, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	inventory := make(map[string]map[string]int, len(m.inventory))
	for user, items := range m.inventory {
		cp := make(map[string]int, len(items))
		for item, n := range items {
			cp[item] = n
		}
		inventory[user] = cp
	}
	return memorySnapshot{balances: balances, inventory: inventory}
}

func (m *MemoryWallet) restoreLocked(s memorySnapshot) {
	m.balances = s.balances
	m.inventory = s.inventory
}

// memoryTxView operates on the wallet while the WithTx lock is held.
type memoryTxView struct {
	wallet *MemoryWallet
}

func (v *memoryTxView) Balance(_ context.Context, userID, currencyID string) (decimal.Decimal, error) {
	return v.wallet.balances[balanceKey{userID, currencyID}], nil
}

func (v *memoryTxView) Debit(_ context.Context, userID, currencyID string, amount decimal.Decimal) error {
	return v.wallet.debitLocked(userID, currencyID, amount)
}

func (v *memoryTxView) Credit(_ context.Context, userID, currencyID string, amount decimal.Decimal) error {
	v.wallet.creditLocked(userID, currencyID, amount)
	return nil
}

func (v *memoryTxView) Grant(_ context.Context, userID string, itemIDs []string) error {
	v.wallet.grantLocked(userID, itemIDs)
	return nil
}
