package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Lots returns the lot repository view
func (s *Store) Lots() *Lots { return &Lots{s} }

type Lots struct{ s *Store }

func (r *Lots) Create(ctx context.Context, lot *repository.Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	now := r.s.tick()
	lot.CreatedAt, lot.UpdatedAt = now, now
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.resources[lot.ItemID]; !ok {
			return errors.BadRequest("referenced record does not exist")
		}
		for _, other := range st.lots {
			if other.QRValue == lot.QRValue {
				return conflict("lots_qr_value_key")
			}
			if other.ItemID == lot.ItemID && other.LotNumber == lot.LotNumber {
				return conflict("lots_item_lot_number_key")
			}
		}
		st.lots[lot.ID] = *lot
		return nil
	})
}

func (r *Lots) GetByID(ctx context.Context, id string) (*repository.Lot, error) {
	var out *repository.Lot
	err := r.s.read(ctx, func(st *state) error {
		lot, ok := st.lots[id]
		if !ok {
			return errors.NotFound("lot")
		}
		out = &lot
		return nil
	})
	return out, err
}

func (r *Lots) GetForUpdate(ctx context.Context, id string) (*repository.Lot, error) {
	return r.GetByID(ctx, id)
}

func (r *Lots) Update(ctx context.Context, lot *repository.Lot) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.lots[lot.ID]
		if !ok {
			return errors.NotFound("lot")
		}
		cur.Quantity = lot.Quantity
		cur.Status = lot.Status
		cur.LabelsPrinted = lot.LabelsPrinted
		cur.LastPrintBatchID = lot.LastPrintBatchID
		cur.UpdatedAt = r.s.tick()
		st.lots[lot.ID] = cur
		lot.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *Lots) ListByItem(ctx context.Context, itemID string) ([]*repository.Lot, error) {
	return r.list(ctx, func(l *repository.Lot) bool { return l.ItemID == itemID })
}

func (r *Lots) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*repository.Lot, error) {
	return r.list(ctx, func(l *repository.Lot) bool {
		return l.Status != repository.LotExpired && l.ExpiryDate != nil && l.ExpiryDate.Before(cutoff)
	})
}

func (r *Lots) list(ctx context.Context, keep func(*repository.Lot) bool) ([]*repository.Lot, error) {
	var out []*repository.Lot
	err := r.s.read(ctx, func(st *state) error {
		for _, lot := range st.lots {
			lot := lot
			if keep(&lot) {
				out = append(out, &lot)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ExpiryDate, out[j].ExpiryDate
		switch {
		case a == nil && b == nil:
			return out[i].LotNumber < out[j].LotNumber
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].LotNumber < out[j].LotNumber
	})
	return out, err
}
