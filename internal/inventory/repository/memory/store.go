// Package memory is an in-process implementation of the inventory
// repositories. Transactions work on a cloned state that replaces the
// committed one only when the callback succeeds, and are serialized by a
// single writer lock, so it offers the same all-or-nothing and
// per-row-exclusive behaviour the services rely on from Postgres.
//
// Audit rows live outside the transactional state: like the Postgres
// repository, which writes them on the root connection, they survive a
// rollback of the surrounding operation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
)

type state struct {
	resources      map[string]repository.Resource
	transactions   map[string]repository.ResourceTransaction
	donations      map[string]repository.DonationSource
	lots           map[string]repository.Lot
	assets         map[string]repository.Asset
	assetTxs       map[string]repository.AssetTransaction
	warehouses     map[string]repository.Warehouse
	locations      map[string]repository.StorageLocation
	orders         map[string]repository.DispatchOrder
	dispatchLines  map[string]repository.DispatchLine
	stocktakes     map[string]repository.Stocktake
	stocktakeLines map[string]repository.StocktakeLine
	templates      map[string]repository.LabelTemplate
}

func newState() *state {
	return &state{
		resources:      map[string]repository.Resource{},
		transactions:   map[string]repository.ResourceTransaction{},
		donations:      map[string]repository.DonationSource{},
		lots:           map[string]repository.Lot{},
		assets:         map[string]repository.Asset{},
		assetTxs:       map[string]repository.AssetTransaction{},
		warehouses:     map[string]repository.Warehouse{},
		locations:      map[string]repository.StorageLocation{},
		orders:         map[string]repository.DispatchOrder{},
		dispatchLines:  map[string]repository.DispatchLine{},
		stocktakes:     map[string]repository.Stocktake{},
		stocktakeLines: map[string]repository.StocktakeLine{},
		templates:      map[string]repository.LabelTemplate{},
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every map. Stored values are structs whose pointer fields
// are only ever replaced, never written through, so a shallow copy is a
// full snapshot.
func (s *state) clone() *state {
	return &state{
		resources:      cloneMap(s.resources),
		transactions:   cloneMap(s.transactions),
		donations:      cloneMap(s.donations),
		lots:           cloneMap(s.lots),
		assets:         cloneMap(s.assets),
		assetTxs:       cloneMap(s.assetTxs),
		warehouses:     cloneMap(s.warehouses),
		locations:      cloneMap(s.locations),
		orders:         cloneMap(s.orders),
		dispatchLines:  cloneMap(s.dispatchLines),
		stocktakes:     cloneMap(s.stocktakes),
		stocktakeLines: cloneMap(s.stocktakeLines),
		templates:      cloneMap(s.templates),
	}
}

type stateKey struct{}

// Store holds the committed state and the append-only audit rows.
type Store struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *state

	auditMu        sync.Mutex
	sensitiveReads []repository.SensitiveReadLog
	labelPrints    []repository.LabelPrintLog

	clockMu sync.Mutex
	last    time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{state: newState()}
}

// tick returns a strictly increasing timestamp so newest-first listings
// are stable even for rows written in the same instant.
func (s *Store) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// WithinTx runs fn against a private copy of the state and commits it if fn
// returns nil. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(stateKey{}).(*state); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, stateKey{}, work)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if st, ok := ctx.Value(stateKey{}).(*state); ok {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write applies fn to the ambient transaction, or to a single-statement
// transaction of its own.
func (s *Store) write(ctx context.Context, fn func(*state) error) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(stateKey{}).(*state))
	})
}

// uniqueViolation is the raw driver error, for callers that inspect the
// constraint name before mapping.
func uniqueViolation(constraint string) error {
	return &pq.Error{Code: database.UniqueViolation, Constraint: constraint, Message: "duplicate key value violates unique constraint \"" + constraint + "\""}
}

// conflict is a unique violation already mapped the way the Postgres
// repositories map it.
func conflict(constraint string) error {
	return database.Map(uniqueViolation(constraint))
}

func sortByCreatedDesc[T any](items []*T, created func(*T) time.Time, id func(*T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) > id(items[j])
	})
}

func limit[T any](items []*T, n uint) []*T {
	if n == 0 {
		n = 100
	}
	if uint(len(items)) > n {
		return items[:n]
	}
	return items
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
