package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Dispatches returns the dispatch order repository view
func (s *Store) Dispatches() *Dispatches { return &Dispatches{s} }

type Dispatches struct{ s *Store }

func (r *Dispatches) Create(ctx context.Context, o *repository.DispatchOrder) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	now := r.s.tick()
	o.CreatedAt, o.UpdatedAt = now, now
	return r.s.write(ctx, func(st *state) error {
		for _, other := range st.orders {
			if other.OrderNo == o.OrderNo {
				return uniqueViolation(repository.DispatchOrderNoConstraint)
			}
		}
		for _, line := range o.Lines {
			if _, ok := st.resources[line.ResourceID]; !ok {
				return errors.BadRequest("referenced record does not exist")
			}
		}
		header := *o
		header.Lines = nil
		st.orders[o.ID] = header
		for _, line := range o.Lines {
			if line.ID == "" {
				line.ID = uuid.New().String()
			}
			line.OrderID = o.ID
			st.dispatchLines[line.ID] = *line
		}
		return nil
	})
}

func (r *Dispatches) GetByID(ctx context.Context, id string) (*repository.DispatchOrder, error) {
	var out *repository.DispatchOrder
	err := r.s.read(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return errors.NotFound("dispatch order")
		}
		for _, line := range st.dispatchLines {
			if line.OrderID == id {
				line := line
				o.Lines = append(o.Lines, &line)
			}
		}
		sort.Slice(o.Lines, func(i, j int) bool {
			if o.Lines[i].ResourceID != o.Lines[j].ResourceID {
				return o.Lines[i].ResourceID < o.Lines[j].ResourceID
			}
			return o.Lines[i].ID < o.Lines[j].ID
		})
		out = &o
		return nil
	})
	return out, err
}

func (r *Dispatches) GetForUpdate(ctx context.Context, id string) (*repository.DispatchOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *Dispatches) Update(ctx context.Context, o *repository.DispatchOrder) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return errors.NotFound("dispatch order")
		}
		cur.Status = o.Status
		cur.ApproverName, cur.ApproverID = o.ApproverName, o.ApproverID
		cur.PickerName, cur.PickerID = o.PickerName, o.PickerID
		cur.RejectReason, cur.CancelReason = o.RejectReason, o.CancelReason
		cur.ApprovedAt, cur.PickStartedAt, cur.PickedAt = o.ApprovedAt, o.PickStartedAt, o.PickedAt
		cur.DispatchedAt, cur.DeliveredAt, cur.CancelledAt = o.DispatchedAt, o.DeliveredAt, o.CancelledAt
		cur.Version++
		cur.UpdatedAt = r.s.tick()
		st.orders[o.ID] = cur
		o.Version, o.UpdatedAt = cur.Version, cur.UpdatedAt
		return nil
	})
}

func (r *Dispatches) UpdateLinePicked(ctx context.Context, line *repository.DispatchLine) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.dispatchLines[line.ID]
		if !ok {
			return errors.NotFound("dispatch line")
		}
		if line.PickedQuantity < 0 || line.PickedQuantity > cur.RequestedQuantity {
			return errors.Validation(map[string]string{"picked_quantity": "must not exceed requested quantity"})
		}
		cur.PickedQuantity = line.PickedQuantity
		st.dispatchLines[line.ID] = cur
		return nil
	})
}

func (r *Dispatches) List(ctx context.Context, f repository.DispatchFilter) ([]*repository.DispatchOrder, error) {
	var out []*repository.DispatchOrder
	err := r.s.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if f.Status != "" && o.Status != f.Status ||
				f.Priority != "" && o.Priority != f.Priority ||
				!inRange(o.CreatedAt, f.From, f.To) {
				continue
			}
			o := o
			out = append(out, &o)
		}
		return nil
	})
	sortByCreatedDesc(out,
		func(o *repository.DispatchOrder) time.Time { return o.CreatedAt },
		func(o *repository.DispatchOrder) string { return o.ID })
	return limit(out, f.Limit), err
}
