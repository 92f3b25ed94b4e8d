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
)

// CreateLotInput describes a new lot of a controlled or medical item
type CreateLotInput struct {
	ItemID      string
	LotNumber   string
	Quantity    int
	ExpiryDate  *time.Time
	WarehouseID *string
}

// LotService manages QR-labelled lots
type LotService struct {
	tx        TxRunner
	lots      LotStore
	resources ResourceStore
	integrity *integrity.Service
	logger    *logger.Logger
	now       func() time.Time
}

// NewLotService creates a new lot service
func NewLotService(tx TxRunner, lots LotStore, resources ResourceStore, integ *integrity.Service, log *logger.Logger) *LotService {
	return &LotService{
		tx:        tx,
		lots:      lots,
		resources: resources,
		integrity: integ,
		logger:    log.WithComponent("lots"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func lotStatus(current string, quantity int) string {
	if current == repository.LotExpired {
		return current
	}
	if quantity == 0 {
		return repository.LotDepleted
	}
	return repository.LotActive
}

// Create registers a lot and stamps its QR code. Civil items never get
// lots.
func (s *LotService) Create(ctx context.Context, in CreateLotInput) (*repository.Lot, error) {
	details := map[string]string{}
	if in.ItemID == "" {
		details["item_id"] = "is required"
	}
	if strings.TrimSpace(in.LotNumber) == "" {
		details["lot_number"] = "is required"
	}
	if in.Quantity < 0 {
		details["quantity"] = "must not be negative"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	item, err := s.resources.GetByID(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsTraceable() {
		return nil, errors.ValidationField("item_id", "civil items cannot carry lots")
	}

	lot := &repository.Lot{
		ID:          uuid.New().String(),
		ItemID:      item.ID,
		LotNumber:   strings.TrimSpace(in.LotNumber),
		ExpiryDate:  in.ExpiryDate,
		Quantity:    in.Quantity,
		Status:      lotStatus("", in.Quantity),
		WarehouseID: in.WarehouseID,
	}
	lot.QRValue = s.integrity.Generate(integrity.TypeLot, lot.ID)

	if err := s.lots.Create(ctx, lot); err != nil {
		return nil, err
	}

	s.logger.Info().Str("lot_id", lot.ID).Str("item_id", lot.ItemID).Str("lot_number", lot.LotNumber).Msg("lot created")
	return lot, nil
}

// UpdateQuantity applies delta. A result below zero is rejected; exactly
// zero depletes the lot and a later top-up reactivates it.
func (s *LotService) UpdateQuantity(ctx context.Context, id string, delta int) (*repository.Lot, error) {
	var lot *repository.Lot
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.lots.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := l.Quantity + delta
		if next < 0 {
			return errors.ValidationField("quantity", "would become negative")
		}
		l.Quantity = next
		l.Status = lotStatus(l.Status, next)
		if err := s.lots.Update(ctx, l); err != nil {
			return err
		}
		lot = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("lot_id", id).Int("delta", delta).Int("quantity", lot.Quantity).Str("status", lot.Status).Msg("lot quantity updated")
	return lot, nil
}

// MarkAsExpired flags a lot as expired
func (s *LotService) MarkAsExpired(ctx context.Context, id string) (*repository.Lot, error) {
	var lot *repository.Lot
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.lots.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		l.Status = repository.LotExpired
		if err := s.lots.Update(ctx, l); err != nil {
			return err
		}
		lot = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("lot_id", id).Msg("lot marked expired")
	return lot, nil
}

// FindByQRCode verifies a scanned code and loads the lot it names. A bad
// code is an integrity failure, never a not-found.
func (s *LotService) FindByQRCode(ctx context.Context, code string) (*repository.Lot, error) {
	id, err := resolveQR(s.integrity, code, integrity.TypeLot)
	if err != nil {
		return nil, err
	}
	return s.lots.GetByID(ctx, id)
}

// Get gets a lot by ID
func (s *LotService) Get(ctx context.Context, id string) (*repository.Lot, error) {
	return s.lots.GetByID(ctx, id)
}

// ListByItem lists the lots of an item
func (s *LotService) ListByItem(ctx context.Context, itemID string) ([]*repository.Lot, error) {
	return s.lots.ListByItem(ctx, itemID)
}

// ListExpiring lists unexpired lots expiring within the given number of days
func (s *LotService) ListExpiring(ctx context.Context, withinDays int) ([]*repository.Lot, error) {
	if withinDays < 0 {
		return nil, errors.ValidationField("within_days", "must not be negative")
	}
	return s.lots.ListExpiringBefore(ctx, s.now().AddDate(0, 0, withinDays))
}

func resolveQR(integ *integrity.Service, code string, want integrity.Type) (string, error) {
	res := integ.Verify(code)
	if !res.Valid {
		return "", errors.Integrity(res.Reason)
	}
	if res.Type != want {
		return "", errors.Integrity(integrity.ReasonWrongType)
	}
	return res.ID, nil
}
