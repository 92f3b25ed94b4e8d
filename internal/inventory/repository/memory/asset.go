package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Assets returns the asset repository view
func (s *Store) Assets() *Assets { return &Assets{s} }

type Assets struct{ s *Store }

func (r *Assets) Create(ctx context.Context, a *repository.Asset) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	now := r.s.tick()
	a.CreatedAt, a.UpdatedAt = now, now
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.resources[a.ItemID]; !ok {
			return errors.BadRequest("referenced record does not exist")
		}
		for _, other := range st.assets {
			if other.AssetNo == a.AssetNo {
				return conflict("assets_asset_no_key")
			}
		}
		st.assets[a.ID] = *a
		return nil
	})
}

func (r *Assets) GetByID(ctx context.Context, id string) (*repository.Asset, error) {
	var out *repository.Asset
	err := r.s.read(ctx, func(st *state) error {
		a, ok := st.assets[id]
		if !ok {
			return errors.NotFound("asset")
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *Assets) GetForUpdate(ctx context.Context, id string) (*repository.Asset, error) {
	return r.GetByID(ctx, id)
}

func (r *Assets) Update(ctx context.Context, a *repository.Asset) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.assets[a.ID]
		if !ok {
			return errors.NotFound("asset")
		}
		// everything but identity, price and creation time is mutable
		next := *a
		next.ItemID, next.AssetNo, next.SerialNo = cur.ItemID, cur.AssetNo, cur.SerialNo
		next.Barcode, next.QRValue, next.UnitPrice = cur.Barcode, cur.QRValue, cur.UnitPrice
		next.CreatedAt = cur.CreatedAt
		next.Version = cur.Version + 1
		next.UpdatedAt = r.s.tick()
		st.assets[a.ID] = next
		a.Version, a.UpdatedAt = next.Version, next.UpdatedAt
		return nil
	})
}

func (r *Assets) List(ctx context.Context, f repository.AssetFilter) ([]*repository.Asset, error) {
	var out []*repository.Asset
	err := r.s.read(ctx, func(st *state) error {
		for _, a := range st.assets {
			if f.ItemID != "" && a.ItemID != f.ItemID ||
				f.Status != "" && a.Status != f.Status ||
				f.LocationID != "" && (a.LocationID == nil || *a.LocationID != f.LocationID) {
				continue
			}
			a := a
			out = append(out, &a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AssetNo < out[j].AssetNo })
	if f.Limit > 0 && uint(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

func (r *Assets) CountByStatus(ctx context.Context) ([]repository.AssetStatusCount, error) {
	counts := map[string]int{}
	err := r.s.read(ctx, func(st *state) error {
		for _, a := range st.assets {
			counts[a.Status]++
		}
		return nil
	})
	out := make([]repository.AssetStatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, repository.AssetStatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, err
}

func (r *Assets) ListOverdue(ctx context.Context, now time.Time) ([]*repository.Asset, error) {
	var out []*repository.Asset
	err := r.s.read(ctx, func(st *state) error {
		for _, a := range st.assets {
			if a.IsOverdue(now) {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpectedReturnDate.Before(*out[j].ExpectedReturnDate) })
	return out, err
}

func (r *Assets) CreateTransaction(ctx context.Context, t *repository.AssetTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = r.s.tick()
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.assets[t.AssetID]; !ok {
			return errors.BadRequest("referenced record does not exist")
		}
		st.assetTxs[t.ID] = *t
		return nil
	})
}

func (r *Assets) GetTransaction(ctx context.Context, id string) (*repository.AssetTransaction, error) {
	var out *repository.AssetTransaction
	err := r.s.read(ctx, func(st *state) error {
		t, ok := st.assetTxs[id]
		if !ok {
			return errors.NotFound("asset transaction")
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *Assets) ListTransactions(ctx context.Context, assetID string, n uint) ([]*repository.AssetTransaction, error) {
	var out []*repository.AssetTransaction
	err := r.s.read(ctx, func(st *state) error {
		for _, t := range st.assetTxs {
			if assetID != "" && t.AssetID != assetID {
				continue
			}
			t := t
			out = append(out, &t)
		}
		return nil
	})
	sortByCreatedDesc(out,
		func(t *repository.AssetTransaction) time.Time { return t.CreatedAt },
		func(t *repository.AssetTransaction) string { return t.ID })
	return limit(out, n), err
}
