package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Stocktakes returns the stocktake repository view
func (s *Store) Stocktakes() *Stocktakes { return &Stocktakes{s} }

type Stocktakes struct{ s *Store }

func (r *Stocktakes) Create(ctx context.Context, stk *repository.Stocktake) error {
	if stk.ID == "" {
		stk.ID = uuid.New().String()
	}
	stk.StartedAt = r.s.tick()
	return r.s.write(ctx, func(st *state) error {
		header := *stk
		header.Lines = nil
		st.stocktakes[stk.ID] = header
		for _, line := range stk.Lines {
			if line.ID == "" {
				line.ID = uuid.New().String()
			}
			line.StocktakeID = stk.ID
			st.stocktakeLines[line.ID] = *line
		}
		return nil
	})
}

func (r *Stocktakes) GetByID(ctx context.Context, id string) (*repository.Stocktake, error) {
	var out *repository.Stocktake
	err := r.s.read(ctx, func(st *state) error {
		stk, ok := st.stocktakes[id]
		if !ok {
			return errors.NotFound("stocktake")
		}
		for _, line := range st.stocktakeLines {
			if line.StocktakeID == id {
				line := line
				stk.Lines = append(stk.Lines, &line)
			}
		}
		sort.Slice(stk.Lines, func(i, j int) bool { return stk.Lines[i].ID < stk.Lines[j].ID })
		out = &stk
		return nil
	})
	return out, err
}

func (r *Stocktakes) GetForUpdate(ctx context.Context, id string) (*repository.Stocktake, error) {
	return r.GetByID(ctx, id)
}

func (r *Stocktakes) Update(ctx context.Context, stk *repository.Stocktake) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.stocktakes[stk.ID]
		if !ok {
			return errors.NotFound("stocktake")
		}
		cur.Status = stk.Status
		cur.ReviewerName = stk.ReviewerName
		cur.GainCount, cur.LossCount = stk.GainCount, stk.LossCount
		cur.Notes = stk.Notes
		cur.CompletedAt = stk.CompletedAt
		st.stocktakes[stk.ID] = cur
		return nil
	})
}

func (r *Stocktakes) UpdateLine(ctx context.Context, line *repository.StocktakeLine) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.stocktakeLines[line.ID]
		if !ok {
			return errors.NotFound("stocktake line")
		}
		cur.ActualQty = line.ActualQty
		cur.Scanned = line.Scanned
		cur.MissingNote = line.MissingNote
		cur.Notes = line.Notes
		st.stocktakeLines[line.ID] = cur
		return nil
	})
}
