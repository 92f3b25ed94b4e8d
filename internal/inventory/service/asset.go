package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// CreateAssetInput describes a new piece of equipment
type CreateAssetInput struct {
	ItemID       string
	AssetNo      string
	SerialNo     *string
	Barcode      string
	LocationID   *string
	UnitPrice    decimal.NullDecimal
	InternalNote *string
}

// BorrowInput lends an asset out
type BorrowInput struct {
	BorrowerName       string
	BorrowerOrg        *string
	BorrowerContact    *string
	Purpose            *string
	ExpectedReturnDate time.Time
	Operator           Operator
}

// ReturnInput brings a borrowed asset back
type ReturnInput struct {
	Condition     string
	ConditionNote *string
	ToLocationID  string
	Operator      Operator
}

// AssetStats summarises the fleet
type AssetStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Overdue  int            `json:"overdue"`
}

// AssetService runs the asset lifecycle state machine. Every transition
// locks the asset, checks its guard, and writes the asset and one history
// row together.
type AssetService struct {
	tx        TxRunner
	assets    AssetStore
	resources ResourceStore
	locations LocationStore
	integrity *integrity.Service
	logger    *logger.Logger
	now       func() time.Time
}

// NewAssetService creates a new asset service
func NewAssetService(
	tx TxRunner,
	assets AssetStore,
	resources ResourceStore,
	locations LocationStore,
	integ *integrity.Service,
	log *logger.Logger,
) *AssetService {
	return &AssetService{
		tx:        tx,
		assets:    assets,
		resources: resources,
		locations: locations,
		integrity: integ,
		logger:    log.WithComponent("assets"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registers an asset in stock and stamps its QR code
func (s *AssetService) Create(ctx context.Context, in CreateAssetInput) (*repository.Asset, error) {
	details := map[string]string{}
	if in.ItemID == "" {
		details["item_id"] = "is required"
	}
	if strings.TrimSpace(in.AssetNo) == "" {
		details["asset_no"] = "is required"
	}
	if in.UnitPrice.Valid && in.UnitPrice.Decimal.IsNegative() {
		details["unit_price"] = "must not be negative"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	if _, err := s.resources.GetByID(ctx, in.ItemID); err != nil {
		return nil, err
	}
	if in.LocationID != nil {
		if _, err := s.locations.GetLocation(ctx, *in.LocationID); err != nil {
			return nil, err
		}
	}

	a := &repository.Asset{
		ID:           uuid.New().String(),
		ItemID:       in.ItemID,
		AssetNo:      strings.TrimSpace(in.AssetNo),
		SerialNo:     in.SerialNo,
		Barcode:      in.Barcode,
		Status:       repository.AssetInStock,
		LocationID:   in.LocationID,
		UnitPrice:    in.UnitPrice,
		InternalNote: in.InternalNote,
	}
	if a.Barcode == "" {
		a.Barcode = "AST:" + a.AssetNo
	}
	a.QRValue = s.integrity.Generate(integrity.TypeAsset, a.ID)

	if err := s.assets.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info().Str("asset_id", a.ID).Str("asset_no", a.AssetNo).Msg("asset created")
	return a, nil
}

// Get gets an asset by ID
func (s *AssetService) Get(ctx context.Context, id string) (*repository.Asset, error) {
	return s.assets.GetByID(ctx, id)
}

// List lists assets
func (s *AssetService) List(ctx context.Context, f repository.AssetFilter) ([]*repository.Asset, error) {
	return s.assets.List(ctx, f)
}

// FindByQRCode verifies a scanned code and loads the asset it names
func (s *AssetService) FindByQRCode(ctx context.Context, code string) (*repository.Asset, error) {
	id, err := resolveQR(s.integrity, code, integrity.TypeAsset)
	if err != nil {
		return nil, err
	}
	return s.assets.GetByID(ctx, id)
}

// Borrow lends an in-stock asset out. The asset leaves its bin.
func (s *AssetService) Borrow(ctx context.Context, id string, in BorrowInput) (*repository.Asset, error) {
	if err := in.Operator.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.BorrowerName) == "" {
		return nil, errors.ValidationField("borrower_name", "is required")
	}
	if in.ExpectedReturnDate.IsZero() {
		return nil, errors.ValidationField("expected_return_date", "is required")
	}

	return s.transition(ctx, id, "borrow", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status != repository.AssetInStock {
			return nil, errors.InvalidState("asset", a.Status, "borrow")
		}

		from := a.LocationID
		expected := in.ExpectedReturnDate.UTC()
		a.Status = repository.AssetBorrowed
		a.BorrowerName = &in.BorrowerName
		a.BorrowerOrg = in.BorrowerOrg
		a.BorrowerContact = in.BorrowerContact
		a.BorrowDate = nowPtr(s.now())
		a.ExpectedReturnDate = &expected
		a.BorrowPurpose = in.Purpose
		a.ReturnCondition = nil
		a.LocationID = nil

		return &repository.AssetTransaction{
			Type:               repository.AssetTxBorrow,
			FromLocationID:     from,
			BorrowerName:       &in.BorrowerName,
			BorrowerOrg:        in.BorrowerOrg,
			BorrowerContact:    in.BorrowerContact,
			Purpose:            in.Purpose,
			ExpectedReturnDate: &expected,
			OperatorName:       in.Operator.Name,
			OperatorID:         in.Operator.ID,
		}, nil
	})
}

// Return brings a borrowed asset back to a bin. An asset that needs
// repair goes straight to maintenance.
func (s *AssetService) Return(ctx context.Context, id string, in ReturnInput) (*repository.Asset, error) {
	if err := in.Operator.validate(); err != nil {
		return nil, err
	}
	switch in.Condition {
	case repository.ConditionNormal, repository.ConditionDamaged, repository.ConditionMissingParts, repository.ConditionNeedsRepair:
	default:
		return nil, errors.ValidationField("return_condition", "must be normal, damaged, missing_parts or needs_repair")
	}
	if in.ToLocationID == "" {
		return nil, errors.ValidationField("to_location_id", "is required")
	}

	return s.transition(ctx, id, "return", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status != repository.AssetBorrowed {
			return nil, errors.InvalidState("asset", a.Status, "return")
		}
		if _, err := s.locations.GetLocation(ctx, in.ToLocationID); err != nil {
			return nil, err
		}

		to := in.ToLocationID
		condition := in.Condition
		a.Status = repository.AssetInStock
		if in.Condition == repository.ConditionNeedsRepair {
			a.Status = repository.AssetMaintenance
		}
		a.LocationID = &to
		a.ReturnCondition = &condition
		a.DamageNote = in.ConditionNote
		a.ClearBorrower()

		return &repository.AssetTransaction{
			Type:            repository.AssetTxReturn,
			ToLocationID:    &to,
			ReturnCondition: &condition,
			ConditionNote:   in.ConditionNote,
			OperatorName:    in.Operator.Name,
			OperatorID:      in.Operator.ID,
		}, nil
	})
}

// Transfer moves an in-stock asset to another bin
func (s *AssetService) Transfer(ctx context.Context, id, toLocationID string, op Operator, notes *string) (*repository.Asset, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	if toLocationID == "" {
		return nil, errors.ValidationField("to_location_id", "is required")
	}

	return s.transition(ctx, id, "transfer", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status != repository.AssetInStock {
			return nil, errors.InvalidState("asset", a.Status, "transfer")
		}
		if _, err := s.locations.GetLocation(ctx, toLocationID); err != nil {
			return nil, err
		}

		from := a.LocationID
		a.LocationID = &toLocationID
		return &repository.AssetTransaction{
			Type:           repository.AssetTxTransfer,
			FromLocationID: from,
			ToLocationID:   &toLocationID,
			Notes:          notes,
			OperatorName:   op.Name,
			OperatorID:     op.ID,
		}, nil
	})
}

// MarkMaintenance sends an asset to repair. Borrowed assets must be
// returned first.
func (s *AssetService) MarkMaintenance(ctx context.Context, id string, notes *string, op Operator) (*repository.Asset, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, "maintenance", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status != repository.AssetInStock && a.Status != repository.AssetMaintenance {
			return nil, errors.InvalidState("asset", a.Status, "send to maintenance")
		}

		a.Status = repository.AssetMaintenance
		if notes != nil {
			a.InternalNote = notes
		}
		return &repository.AssetTransaction{
			Type:           repository.AssetTxMaintenanceIn,
			FromLocationID: a.LocationID,
			Notes:          notes,
			OperatorName:   op.Name,
			OperatorID:     op.ID,
		}, nil
	})
}

// CompleteMaintenance puts a repaired asset back into a bin
func (s *AssetService) CompleteMaintenance(ctx context.Context, id, toLocationID string, notes *string, op Operator) (*repository.Asset, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	if toLocationID == "" {
		return nil, errors.ValidationField("to_location_id", "is required")
	}

	return s.transition(ctx, id, "maintenance completed", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status != repository.AssetMaintenance {
			return nil, errors.InvalidState("asset", a.Status, "complete maintenance of")
		}
		if _, err := s.locations.GetLocation(ctx, toLocationID); err != nil {
			return nil, err
		}

		a.Status = repository.AssetInStock
		a.LocationID = &toLocationID
		if notes != nil {
			a.InternalNote = notes
		}
		a.DamageNote = nil
		a.ReturnCondition = nil
		return &repository.AssetTransaction{
			Type:         repository.AssetTxMaintenanceOut,
			ToLocationID: &toLocationID,
			Notes:        notes,
			OperatorName: op.Name,
			OperatorID:   op.ID,
		}, nil
	})
}

// Dispose retires an asset for good
func (s *AssetService) Dispose(ctx context.Context, id, reason string, op Operator) (*repository.Asset, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.ValidationField("reason", "is required")
	}

	return s.transition(ctx, id, "disposed", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status != repository.AssetInStock && a.Status != repository.AssetMaintenance {
			return nil, errors.InvalidState("asset", a.Status, "dispose")
		}

		from := a.LocationID
		a.Status = repository.AssetDisposed
		a.InternalNote = &reason
		a.LocationID = nil
		a.ClearBorrower()
		return &repository.AssetTransaction{
			Type:           repository.AssetTxDispose,
			FromLocationID: from,
			Notes:          &reason,
			OperatorName:   op.Name,
			OperatorID:     op.ID,
		}, nil
	})
}

// ReportLost forces an asset to lost from any non-terminal state; borrowed
// equipment can go missing in the field.
func (s *AssetService) ReportLost(ctx context.Context, id string, notes *string, op Operator) (*repository.Asset, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, "reported lost", func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error) {
		if a.Status == repository.AssetDisposed || a.Status == repository.AssetLost {
			return nil, errors.InvalidState("asset", a.Status, "report lost")
		}

		t := &repository.AssetTransaction{
			Type:           repository.AssetTxReportLost,
			FromLocationID: a.LocationID,
			BorrowerName:   a.BorrowerName,
			BorrowerOrg:    a.BorrowerOrg,
			Notes:          notes,
			OperatorName:   op.Name,
			OperatorID:     op.ID,
		}

		a.Status = repository.AssetLost
		if notes != nil {
			a.InternalNote = notes
		}
		a.LocationID = nil
		a.ClearBorrower()
		return t, nil
	})
}

func (s *AssetService) transition(
	ctx context.Context,
	id, what string,
	apply func(ctx context.Context, a *repository.Asset) (*repository.AssetTransaction, error),
) (*repository.Asset, error) {
	var out *repository.Asset
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.assets.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		t, err := apply(ctx, a)
		if err != nil {
			return err
		}
		if err := s.assets.Update(ctx, a); err != nil {
			return err
		}
		t.AssetID = a.ID
		if err := s.assets.CreateTransaction(ctx, t); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("asset_id", out.ID).Str("asset_no", out.AssetNo).Str("status", out.Status).Msg("asset " + what)
	return out, nil
}

// ListTransactions returns an asset's history, newest first
func (s *AssetService) ListTransactions(ctx context.Context, assetID string, limit uint) ([]*repository.AssetTransaction, error) {
	return s.assets.ListTransactions(ctx, assetID, limit)
}

// Stats counts assets per status and overdue loans
func (s *AssetService) Stats(ctx context.Context) (*AssetStats, error) {
	counts, err := s.assets.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.assets.ListOverdue(ctx, s.now())
	if err != nil {
		return nil, err
	}

	stats := &AssetStats{ByStatus: map[string]int{}, Overdue: len(overdue)}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}
	return stats, nil
}

// Overdue lists borrowed assets past their expected return date
func (s *AssetService) Overdue(ctx context.Context) ([]*repository.Asset, error) {
	return s.assets.ListOverdue(ctx, s.now())
}

// SanitizeForPublic returns a copy without borrower details, price and
// internal notes
func SanitizeForPublic(a *repository.Asset) *repository.Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.ClearBorrower()
	c.UnitPrice = decimal.NullDecimal{}
	c.InternalNote = nil
	c.DamageNote = nil
	return &c
}
