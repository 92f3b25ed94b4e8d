package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// stocktakeScope caps how many rows a single count snapshots
const stocktakeScope = 1000

// StartStocktakeInput opens a count
type StartStocktakeInput struct {
	Auditor     Operator
	WarehouseID *string
	Notes       *string
}

// StocktakeService runs physical counts. Completing a count may post the
// differences: consumables through ledger adjustments, missing assets
// through the asset lifecycle, so both keep their history.
type StocktakeService struct {
	tx         TxRunner
	stocktakes StocktakeStore
	resources  ResourceStore
	assetStore AssetStore
	ledger     *LedgerService
	assets     *AssetService
	logger     *logger.Logger
	now        func() time.Time
}

// NewStocktakeService creates a new stocktake service
func NewStocktakeService(
	tx TxRunner,
	stocktakes StocktakeStore,
	resources ResourceStore,
	assetStore AssetStore,
	ledger *LedgerService,
	assets *AssetService,
	log *logger.Logger,
) *StocktakeService {
	return &StocktakeService{
		tx:         tx,
		stocktakes: stocktakes,
		resources:  resources,
		assetStore: assetStore,
		ledger:     ledger,
		assets:     assets,
		logger:     log.WithComponent("stocktake"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartConsumable snapshots the system quantity of every resource
func (s *StocktakeService) StartConsumable(ctx context.Context, in StartStocktakeInput) (*repository.Stocktake, error) {
	if err := in.Auditor.validate(); err != nil {
		return nil, err
	}

	st := &repository.Stocktake{
		Type:        repository.StocktakeConsumable,
		Status:      repository.StocktakeInProgress,
		WarehouseID: in.WarehouseID,
		AuditorName: in.Auditor.Name,
		Notes:       in.Notes,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resources, err := s.resources.List(ctx, repository.ResourceFilter{Limit: stocktakeScope})
		if err != nil {
			return err
		}
		for _, r := range resources {
			id := r.ID
			st.Lines = append(st.Lines, &repository.StocktakeLine{ResourceID: &id, SystemQty: r.Quantity})
		}
		return s.stocktakes.Create(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("stocktake_id", st.ID).Int("lines", len(st.Lines)).Msg("consumable stocktake started")
	return st, nil
}

// StartAsset lists every in-stock asset for scanning
func (s *StocktakeService) StartAsset(ctx context.Context, in StartStocktakeInput) (*repository.Stocktake, error) {
	if err := in.Auditor.validate(); err != nil {
		return nil, err
	}

	st := &repository.Stocktake{
		Type:        repository.StocktakeAsset,
		Status:      repository.StocktakeInProgress,
		WarehouseID: in.WarehouseID,
		AuditorName: in.Auditor.Name,
		Notes:       in.Notes,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		assets, err := s.assetStore.List(ctx, repository.AssetFilter{Status: repository.AssetInStock, Limit: stocktakeScope})
		if err != nil {
			return err
		}
		for _, a := range assets {
			id := a.ID
			st.Lines = append(st.Lines, &repository.StocktakeLine{AssetID: &id, SystemQty: 1})
		}
		return s.stocktakes.Create(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("stocktake_id", st.ID).Int("lines", len(st.Lines)).Msg("asset stocktake started")
	return st, nil
}

// Get returns a stocktake with its lines
func (s *StocktakeService) Get(ctx context.Context, id string) (*repository.Stocktake, error) {
	return s.stocktakes.GetByID(ctx, id)
}

// RecordCount sets the counted quantity of one resource
func (s *StocktakeService) RecordCount(ctx context.Context, id, resourceID string, actualQty int, notes *string) (*repository.Stocktake, error) {
	if actualQty < 0 {
		return nil, errors.ValidationField("actual_qty", "must not be negative")
	}
	return s.updateLine(ctx, id, repository.StocktakeConsumable, "record count", func(l *repository.StocktakeLine) bool {
		return l.ResourceID != nil && *l.ResourceID == resourceID
	}, func(l *repository.StocktakeLine) {
		l.ActualQty = &actualQty
		if notes != nil {
			l.Notes = notes
		}
	})
}

// ScanAsset marks an asset as physically present
func (s *StocktakeService) ScanAsset(ctx context.Context, id, assetID string) (*repository.Stocktake, error) {
	return s.updateLine(ctx, id, repository.StocktakeAsset, "scan asset", matchAsset(assetID), func(l *repository.StocktakeLine) {
		one := 1
		l.Scanned = true
		l.ActualQty = &one
		l.MissingNote = nil
	})
}

// MarkAssetMissing records that an asset could not be found
func (s *StocktakeService) MarkAssetMissing(ctx context.Context, id, assetID, note string) (*repository.Stocktake, error) {
	if strings.TrimSpace(note) == "" {
		return nil, errors.ValidationField("note", "is required")
	}
	return s.updateLine(ctx, id, repository.StocktakeAsset, "mark asset missing", matchAsset(assetID), func(l *repository.StocktakeLine) {
		zero := 0
		l.Scanned = false
		l.ActualQty = &zero
		l.MissingNote = &note
	})
}

func matchAsset(assetID string) func(*repository.StocktakeLine) bool {
	return func(l *repository.StocktakeLine) bool {
		return l.AssetID != nil && *l.AssetID == assetID
	}
}

func (s *StocktakeService) updateLine(
	ctx context.Context,
	id, wantType, action string,
	match func(*repository.StocktakeLine) bool,
	apply func(*repository.StocktakeLine),
) (*repository.Stocktake, error) {
	var st *repository.Stocktake
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.stocktakes.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status != repository.StocktakeInProgress {
			return errors.InvalidState("stocktake", st.Status, action)
		}
		if st.Type != wantType {
			return errors.BadRequest(fmt.Sprintf("cannot %s on a %s stocktake", action, st.Type))
		}
		for _, l := range st.Lines {
			if match(l) {
				apply(l)
				return s.stocktakes.UpdateLine(ctx, l)
			}
		}
		return errors.NotFound("stocktake line")
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Complete closes the count and tallies gains and losses. With
// applyDifference, counted consumables are adjusted to the counted
// quantity and assets marked missing are reported lost.
func (s *StocktakeService) Complete(ctx context.Context, id string, reviewer Operator, applyDifference bool) (*repository.Stocktake, error) {
	if err := reviewer.validate(); err != nil {
		return nil, err
	}

	var st *repository.Stocktake
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.stocktakes.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status != repository.StocktakeInProgress {
			return errors.InvalidState("stocktake", st.Status, "complete")
		}

		gain, loss := 0, 0
		for _, l := range st.Lines {
			switch st.Type {
			case repository.StocktakeConsumable:
				diff := l.Difference()
				if diff > 0 {
					gain++
				} else if diff < 0 {
					loss++
				}
				if applyDifference && diff != 0 {
					note := fmt.Sprintf("stocktake %s: %d -> %d", st.ID, l.SystemQty, *l.ActualQty)
					if _, err := s.ledger.RecordTransaction(ctx, TransactionInput{
						ResourceID: *l.ResourceID,
						Type:       repository.TxAdjust,
						Quantity:   *l.ActualQty,
						Operator:   reviewer,
						Notes:      &note,
						signedOff:  true,
					}); err != nil {
						return err
					}
				}

			case repository.StocktakeAsset:
				if l.Scanned || l.MissingNote == nil {
					continue
				}
				loss++
				if applyDifference {
					if _, err := s.assets.ReportLost(ctx, *l.AssetID, l.MissingNote, reviewer); err != nil {
						return err
					}
				}
			}
		}

		st.Status = repository.StocktakeCompleted
		st.ReviewerName = &reviewer.Name
		st.GainCount = gain
		st.LossCount = loss
		st.CompletedAt = nowPtr(s.now())
		return s.stocktakes.Update(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stocktake_id", st.ID).
		Int("gain", st.GainCount).
		Int("loss", st.LossCount).
		Bool("applied", applyDifference).
		Msg("stocktake completed")
	return st, nil
}

// Cancel abandons an in-progress count
func (s *StocktakeService) Cancel(ctx context.Context, id string) (*repository.Stocktake, error) {
	var st *repository.Stocktake
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.stocktakes.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status != repository.StocktakeInProgress {
			return errors.InvalidState("stocktake", st.Status, "cancel")
		}
		st.Status = repository.StocktakeCancelled
		return s.stocktakes.Update(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("stocktake_id", st.ID).Msg("stocktake cancelled")
	return st, nil
}
