package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Resources returns the resource repository view
func (s *Store) Resources() *Resources { return &Resources{s} }

// Transactions returns the ledger repository view
func (s *Store) Transactions() *Transactions { return &Transactions{s} }

// Donations returns the donation source repository view
func (s *Store) Donations() *Donations { return &Donations{s} }

type Resources struct{ s *Store }

func (r *Resources) Create(ctx context.Context, res *repository.Resource) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.Version == 0 {
		res.Version = 1
	}
	now := r.s.tick()
	res.CreatedAt, res.UpdatedAt = now, now
	return r.s.write(ctx, func(st *state) error {
		st.resources[res.ID] = *res
		return nil
	})
}

func (r *Resources) GetByID(ctx context.Context, id string) (*repository.Resource, error) {
	var out *repository.Resource
	err := r.s.read(ctx, func(st *state) error {
		res, ok := st.resources[id]
		if !ok {
			return errors.NotFound("resource")
		}
		out = &res
		return nil
	})
	return out, err
}

func (r *Resources) GetForUpdate(ctx context.Context, id string) (*repository.Resource, error) {
	return r.GetByID(ctx, id)
}

func (r *Resources) UpdateStock(ctx context.Context, res *repository.Resource) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.resources[res.ID]
		if !ok {
			return errors.NotFound("resource")
		}
		cur.Quantity = res.Quantity
		cur.Status = res.Status
		cur.Location = res.Location
		cur.StorageLocationID = res.StorageLocationID
		cur.Version++
		cur.UpdatedAt = r.s.tick()
		st.resources[res.ID] = cur
		res.Version, res.UpdatedAt = cur.Version, cur.UpdatedAt
		return nil
	})
}

func (r *Resources) List(ctx context.Context, f repository.ResourceFilter) ([]*repository.Resource, error) {
	var out []*repository.Resource
	err := r.s.read(ctx, func(st *state) error {
		for _, res := range st.resources {
			if f.Category != "" && res.Category != f.Category ||
				f.Status != "" && res.Status != f.Status ||
				f.ControlLevel != "" && res.ControlLevel != f.ControlLevel {
				continue
			}
			res := res
			out = append(out, &res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if f.Limit > 0 && uint(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

type Transactions struct{ s *Store }

func (r *Transactions) Create(ctx context.Context, t *repository.ResourceTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = r.s.tick()
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.resources[t.ResourceID]; !ok {
			return errors.BadRequest("referenced record does not exist")
		}
		st.transactions[t.ID] = *t
		return nil
	})
}

func (r *Transactions) GetByID(ctx context.Context, id string) (*repository.ResourceTransaction, error) {
	var out *repository.ResourceTransaction
	err := r.s.read(ctx, func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return errors.NotFound("transaction")
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *Transactions) GetForUpdate(ctx context.Context, id string) (*repository.ResourceTransaction, error) {
	return r.GetByID(ctx, id)
}

func (r *Transactions) UpdateApproval(ctx context.Context, t *repository.ResourceTransaction) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.transactions[t.ID]
		if !ok {
			return errors.NotFound("transaction")
		}
		cur.ApprovalStatus = t.ApprovalStatus
		cur.ApproverName = t.ApproverName
		cur.ApproverID = t.ApproverID
		cur.ApprovedAt = t.ApprovedAt
		cur.RejectReason = t.RejectReason
		cur.BeforeQuantity = t.BeforeQuantity
		cur.AfterQuantity = t.AfterQuantity
		st.transactions[t.ID] = cur
		return nil
	})
}

func (r *Transactions) List(ctx context.Context, f repository.TransactionFilter) ([]*repository.ResourceTransaction, error) {
	var out []*repository.ResourceTransaction
	err := r.s.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if f.ResourceID != "" && t.ResourceID != f.ResourceID ||
				f.Type != "" && t.Type != f.Type ||
				f.ApprovalStatus != "" && (t.ApprovalStatus == nil || *t.ApprovalStatus != f.ApprovalStatus) ||
				!inRange(t.CreatedAt, f.From, f.To) {
				continue
			}
			t := t
			out = append(out, &t)
		}
		return nil
	})
	sortByCreatedDesc(out,
		func(t *repository.ResourceTransaction) time.Time { return t.CreatedAt },
		func(t *repository.ResourceTransaction) string { return t.ID })
	return limit(out, f.Limit), err
}

type Donations struct{ s *Store }

func (r *Donations) Create(ctx context.Context, d *repository.DonationSource) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.CreatedAt = r.s.tick()
	return r.s.write(ctx, func(st *state) error {
		st.donations[d.ID] = *d
		return nil
	})
}

func (r *Donations) GetByID(ctx context.Context, id string) (*repository.DonationSource, error) {
	var out *repository.DonationSource
	err := r.s.read(ctx, func(st *state) error {
		d, ok := st.donations[id]
		if !ok {
			return errors.NotFound("donation source")
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *Donations) List(ctx context.Context) ([]*repository.DonationSource, error) {
	var out []*repository.DonationSource
	err := r.s.read(ctx, func(st *state) error {
		for _, d := range st.donations {
			d := d
			out = append(out, &d)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
