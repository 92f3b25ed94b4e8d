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

// ComputeStatus derives a resource status from its quantity. reserved is
// never produced here.
func ComputeStatus(quantity, minQuantity int) string {
	switch {
	case quantity == 0:
		return repository.ResourceDepleted
	case quantity < minQuantity:
		return repository.ResourceLow
	default:
		return repository.ResourceAvailable
	}
}

// ApplyQuantity returns the quantity after a transaction of type typ and
// size q. Outbound types clamp at zero.
func ApplyQuantity(before int, typ string, q int) (int, error) {
	switch typ {
	case repository.TxIn, repository.TxDonate:
		return before + q, nil
	case repository.TxOut, repository.TxExpired:
		if q > before {
			return 0, nil
		}
		return before - q, nil
	case repository.TxAdjust:
		return q, nil
	case repository.TxTransfer:
		return before, nil
	}
	return 0, errors.ValidationField("type", fmt.Sprintf("unknown transaction type %q", typ))
}

// TransactionInput describes one ledger movement
type TransactionInput struct {
	ResourceID       string
	Type             string
	Quantity         int
	Operator         Operator
	FromLocation     *string
	ToLocation       *string
	Notes            *string
	ReferenceNo      *string
	DonationSourceID *string
	RecipientName    *string
	RecipientPhone   *string
	RecipientIDNo    *string
	RecipientOrg     *string
	Purpose          *string

	// signedOff marks movements whose second-person check happened
	// upstream: an approved dispatch order or a reviewed stocktake.
	signedOff bool
}

// reduces reports whether the movement lowers stock that currently sits at
// before.
func (in TransactionInput) reduces(before int) bool {
	switch in.Type {
	case repository.TxOut, repository.TxExpired:
		return true
	case repository.TxAdjust:
		return in.Quantity < before
	}
	return false
}

func (in TransactionInput) validate() error {
	if in.ResourceID == "" {
		return errors.ValidationField("resource_id", "is required")
	}
	if err := in.Operator.validate(); err != nil {
		return err
	}
	switch in.Type {
	case repository.TxAdjust:
		if in.Quantity < 0 {
			return errors.ValidationField("quantity", "must not be negative")
		}
	case repository.TxIn, repository.TxOut, repository.TxTransfer, repository.TxDonate, repository.TxExpired:
		if in.Quantity <= 0 {
			return errors.ValidationField("quantity", "must be greater than zero")
		}
	default:
		return errors.ValidationField("type", fmt.Sprintf("unknown transaction type %q", in.Type))
	}
	if in.Type == repository.TxTransfer && !nonEmpty(in.ToLocation) {
		return errors.ValidationField("to_location", "is required for a transfer")
	}
	return nil
}

// CreateResourceInput describes a new consumable line item
type CreateResourceInput struct {
	Name              string
	Category          string
	Unit              string
	MinQuantity       int
	ControlLevel      string
	InitialQuantity   int
	ExpiresAt         *time.Time
	Location          *string
	Barcode           *string
	StorageLocationID *string
	IsAssetized       bool
	Operator          Operator
}

// DonationInput books a gift from a donor
type DonationInput struct {
	ResourceID       string
	Quantity         int
	DonationSourceID string
	Operator         Operator
	ReferenceNo      *string
	Notes            *string
}

// LedgerService is the single funnel for stock quantity changes
type LedgerService struct {
	tx           TxRunner
	resources    ResourceStore
	transactions TransactionStore
	donations    DonationStore
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	tx TxRunner,
	resources ResourceStore,
	transactions TransactionStore,
	donations DonationStore,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		tx:           tx,
		resources:    resources,
		transactions: transactions,
		donations:    donations,
		logger:       log.WithComponent("ledger"),
	}
}

// RecordTransaction locks the resource, applies the movement, recomputes
// the status and writes the resource and its ledger row in one unit of
// work. Any reduction of controlled or medical stock fails with
// ApprovalRequired unless it comes from a signed-off workflow.
func (s *LedgerService) RecordTransaction(ctx context.Context, in TransactionInput) (*repository.ResourceTransaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *repository.ResourceTransaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.resources.GetForUpdate(ctx, in.ResourceID)
		if err != nil {
			return err
		}

		if res.IsTraceable() && !in.signedOff && in.reduces(res.Quantity) {
			return errors.ApprovalRequired(res.ID, res.ControlLevel)
		}
		if in.Type == repository.TxOut && res.IsTraceable() && !nonEmpty(in.RecipientName) {
			return errors.ValidationField("recipient_name", "is required for "+res.ControlLevel+" stock-out")
		}

		after, err := ApplyQuantity(res.Quantity, in.Type, in.Quantity)
		if err != nil {
			return err
		}

		t := &repository.ResourceTransaction{
			ResourceID:       res.ID,
			Type:             in.Type,
			Quantity:         in.Quantity,
			BeforeQuantity:   res.Quantity,
			AfterQuantity:    after,
			OperatorName:     in.Operator.Name,
			OperatorID:       in.Operator.ID,
			FromLocation:     in.FromLocation,
			ToLocation:       in.ToLocation,
			Notes:            in.Notes,
			ReferenceNo:      in.ReferenceNo,
			DonationSourceID: in.DonationSourceID,
			RecipientName:    in.RecipientName,
			RecipientPhone:   in.RecipientPhone,
			RecipientIDNo:    in.RecipientIDNo,
			RecipientOrg:     in.RecipientOrg,
			Purpose:          in.Purpose,
		}
		if in.Type == repository.TxTransfer {
			if t.FromLocation == nil {
				t.FromLocation = res.Location
			}
			res.Location = in.ToLocation
		}

		res.Quantity = after
		res.Status = ComputeStatus(after, res.MinQuantity)
		if err := s.resources.UpdateStock(ctx, res); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("resource_id", out.ResourceID).
		Str("transaction_id", out.ID).
		Str("type", out.Type).
		Int("before", out.BeforeQuantity).
		Int("after", out.AfterQuantity).
		Msg("stock transaction recorded")

	return out, nil
}

// AddStock books an inbound movement
func (s *LedgerService) AddStock(ctx context.Context, resourceID string, quantity int, op Operator, notes *string) (*repository.ResourceTransaction, error) {
	return s.RecordTransaction(ctx, TransactionInput{
		ResourceID: resourceID, Type: repository.TxIn, Quantity: quantity, Operator: op, Notes: notes,
	})
}

// DeductStock books an outbound movement. Controlled and medical items are
// refused here; they leave through the approval gate or a dispatch order.
func (s *LedgerService) DeductStock(ctx context.Context, in TransactionInput) (*repository.ResourceTransaction, error) {
	in.Type = repository.TxOut
	return s.RecordTransaction(ctx, in)
}

// Transfer moves a resource to another location without changing its
// quantity
func (s *LedgerService) Transfer(ctx context.Context, resourceID string, quantity int, toLocation string, op Operator, notes *string) (*repository.ResourceTransaction, error) {
	return s.RecordTransaction(ctx, TransactionInput{
		ResourceID: resourceID,
		Type:       repository.TxTransfer,
		Quantity:   quantity,
		Operator:   op,
		ToLocation: &toLocation,
		Notes:      notes,
	})
}

// Adjust sets the quantity to an absolute value
func (s *LedgerService) Adjust(ctx context.Context, resourceID string, quantity int, op Operator, notes *string) (*repository.ResourceTransaction, error) {
	return s.RecordTransaction(ctx, TransactionInput{
		ResourceID: resourceID, Type: repository.TxAdjust, Quantity: quantity, Operator: op, Notes: notes,
	})
}

// RecordDonation books a donate movement against a known donor
func (s *LedgerService) RecordDonation(ctx context.Context, in DonationInput) (*repository.ResourceTransaction, error) {
	if in.DonationSourceID == "" {
		return nil, errors.ValidationField("donation_source_id", "is required")
	}

	var out *repository.ResourceTransaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.donations.GetByID(ctx, in.DonationSourceID); err != nil {
			return err
		}
		t, err := s.RecordTransaction(ctx, TransactionInput{
			ResourceID:       in.ResourceID,
			Type:             repository.TxDonate,
			Quantity:         in.Quantity,
			Operator:         in.Operator,
			DonationSourceID: &in.DonationSourceID,
			ReferenceNo:      in.ReferenceNo,
			Notes:            in.Notes,
		})
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateResource registers a resource and books its opening stock as an
// inbound movement
func (s *LedgerService) CreateResource(ctx context.Context, in CreateResourceInput) (*repository.Resource, error) {
	details := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "is required"
	}
	if strings.TrimSpace(in.Unit) == "" {
		details["unit"] = "is required"
	}
	if in.MinQuantity < 0 {
		details["min_quantity"] = "must not be negative"
	}
	if in.InitialQuantity < 0 {
		details["initial_quantity"] = "must not be negative"
	}
	switch in.ControlLevel {
	case "":
		in.ControlLevel = repository.ControlCivil
	case repository.ControlCivil, repository.ControlControlled, repository.ControlMedical:
	default:
		details["control_level"] = "must be civil, controlled or medical"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	res := &repository.Resource{
		Name:              in.Name,
		Category:          in.Category,
		Unit:              in.Unit,
		MinQuantity:       in.MinQuantity,
		Status:            ComputeStatus(0, in.MinQuantity),
		ControlLevel:      in.ControlLevel,
		ExpiresAt:         in.ExpiresAt,
		Location:          in.Location,
		Barcode:           in.Barcode,
		StorageLocationID: in.StorageLocationID,
		IsAssetized:       in.IsAssetized,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.resources.Create(ctx, res); err != nil {
			return err
		}
		if in.InitialQuantity == 0 {
			return nil
		}
		if _, err := s.RecordTransaction(ctx, TransactionInput{
			ResourceID: res.ID,
			Type:       repository.TxIn,
			Quantity:   in.InitialQuantity,
			Operator:   in.Operator,
			Notes:      strPtr("opening stock"),
		}); err != nil {
			return err
		}
		fresh, err := s.resources.GetByID(ctx, res.ID)
		if err != nil {
			return err
		}
		res = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("resource_id", res.ID).Str("control_level", res.ControlLevel).Msg("resource created")
	return res, nil
}

// GetResource gets a resource by ID
func (s *LedgerService) GetResource(ctx context.Context, id string) (*repository.Resource, error) {
	return s.resources.GetByID(ctx, id)
}

// ListResources lists resources
func (s *LedgerService) ListResources(ctx context.Context, f repository.ResourceFilter) ([]*repository.Resource, error) {
	return s.resources.List(ctx, f)
}

// ListTransactions returns ledger history, newest first
func (s *LedgerService) ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]*repository.ResourceTransaction, error) {
	return s.transactions.List(ctx, f)
}

// CreateDonationSource registers a donor
func (s *LedgerService) CreateDonationSource(ctx context.Context, d *repository.DonationSource) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.ValidationField("name", "is required")
	}
	switch d.Type {
	case repository.DonorIndividual, repository.DonorCorporate, repository.DonorOrganization, repository.DonorGovernment:
	default:
		return errors.ValidationField("type", "must be individual, corporate, organization or government")
	}
	return s.donations.Create(ctx, d)
}

// ListDonationSources lists donors
func (s *LedgerService) ListDonationSources(ctx context.Context) ([]*repository.DonationSource, error) {
	return s.donations.List(ctx)
}
