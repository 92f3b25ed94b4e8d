package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// noTemplate is written on revoke entries, which print nothing
const noTemplate = "00000000-0000-0000-0000-000000000000"

// LabelGeometry is the printable area of a template
type LabelGeometry struct {
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	LayoutConfig types.JSONText `json:"layout_config"`
}

// LabelData is what gets printed on one label
type LabelData struct {
	QRValue     string     `json:"qr_value"`
	ItemName    string     `json:"item_name"`
	LotNumber   string     `json:"lot_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	AssetNo     string     `json:"asset_no,omitempty"`
	SerialNo    *string    `json:"serial_no,omitempty"`
	WarehouseID *string    `json:"warehouse_id,omitempty"`
	LocationID  *string    `json:"location_id,omitempty"`
}

// Label pairs the template geometry with the label contents
type Label struct {
	Template LabelGeometry `json:"template"`
	Data     LabelData     `json:"data"`
}

// PrintResult is the outcome of one print or reprint
type PrintResult struct {
	PrintBatchID string  `json:"print_batch_id"`
	Labels       []Label `json:"labels"`
}

// LabelService renders label payloads for lots and assets and keeps the
// print log. Civil items never get system labels.
type LabelService struct {
	tx        TxRunner
	lots      LotStore
	assets    AssetStore
	resources ResourceStore
	templates LabelTemplateStore
	audit     *AuditLogService
	logger    *logger.Logger
}

// NewLabelService creates a new label service
func NewLabelService(
	tx TxRunner,
	lots LotStore,
	assets AssetStore,
	resources ResourceStore,
	templates LabelTemplateStore,
	audit *AuditLogService,
	log *logger.Logger,
) *LabelService {
	return &LabelService{
		tx:        tx,
		lots:      lots,
		assets:    assets,
		resources: resources,
		templates: templates,
		audit:     audit,
		logger:    log.WithComponent("labels"),
	}
}

// Templates lists the active label templates
func (s *LabelService) Templates(ctx context.Context) ([]*repository.LabelTemplate, error) {
	return s.templates.List(ctx)
}

// PrintLotLabel prints one label for a lot
func (s *LabelService) PrintLotLabel(ctx context.Context, lotID, templateID string, a *actor.Actor) (*PrintResult, error) {
	return s.printLot(ctx, lotID, templateID, a, repository.LabelPrint)
}

// PrintAssetLabels prints one label per asset under a single print batch
func (s *LabelService) PrintAssetLabels(ctx context.Context, assetIDs []string, templateID string, a *actor.Actor) (*PrintResult, error) {
	return s.printAssets(ctx, assetIDs, templateID, a, repository.LabelPrint)
}

// Reprint prints a replacement label and records it as a reprint
func (s *LabelService) Reprint(ctx context.Context, targetType, targetID, templateID string, a *actor.Actor) (*PrintResult, error) {
	switch targetType {
	case repository.LabelTargetLot:
		return s.printLot(ctx, targetID, templateID, a, repository.LabelReprint)
	case repository.LabelTargetAsset:
		return s.printAssets(ctx, []string{targetID}, templateID, a, repository.LabelReprint)
	}
	return nil, errors.ValidationField("target_type", "must be lot or asset")
}

// Revoke records that the printed labels of a target must no longer be
// trusted. It returns the log entry id.
func (s *LabelService) Revoke(ctx context.Context, targetType, targetID, reason string, a *actor.Actor) (string, error) {
	if !minLength(reason, RevokeReasonMinLength) {
		return "", errors.ValidationField("revoke_reason", fmt.Sprintf("must be at least %d characters", RevokeReasonMinLength))
	}

	var itemID string
	switch targetType {
	case repository.LabelTargetLot:
		lot, err := s.lots.GetByID(ctx, targetID)
		if err != nil {
			return "", err
		}
		itemID = lot.ItemID
	case repository.LabelTargetAsset:
		asset, err := s.assets.GetByID(ctx, targetID)
		if err != nil {
			return "", err
		}
		itemID = asset.ItemID
	default:
		return "", errors.ValidationField("target_type", "must be lot or asset")
	}
	res, err := s.resources.GetByID(ctx, itemID)
	if err != nil {
		return "", err
	}

	a = auditActor(a)
	id, err := s.audit.LogLabelPrint(ctx, &repository.LabelPrintLog{
		ActorUID:     a.ID,
		ActorRole:    a.Role,
		Action:       repository.LabelRevoke,
		TargetType:   targetType,
		TargetIDs:    []string{targetID},
		ControlLevel: res.ControlLevel,
		TemplateID:   noTemplate,
		LabelCount:   0,
		RevokeReason: &reason,
	})
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("target_type", targetType).Str("target_id", targetID).Msg("labels revoked")
	return id, nil
}

// PrintHistory lists the print log of one lot or asset, newest first
func (s *LabelService) PrintHistory(ctx context.Context, targetType, targetID string) ([]*repository.LabelPrintLog, error) {
	if targetType != repository.LabelTargetLot && targetType != repository.LabelTargetAsset {
		return nil, errors.ValidationField("target_type", "must be lot or asset")
	}
	return s.audit.QueryLabelPrints(ctx, repository.AuditFilter{TargetType: targetType, TargetID: targetID})
}

func (s *LabelService) printLot(ctx context.Context, lotID, templateID string, a *actor.Actor, action string) (*PrintResult, error) {
	a = auditActor(a)

	var result *PrintResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lot, err := s.lots.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		res, err := s.resources.GetByID(ctx, lot.ItemID)
		if err != nil {
			return err
		}
		if !res.IsTraceable() {
			return errors.ValidationField("lot_id", "civil items do not carry system labels")
		}
		tpl, err := s.templates.GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if !tpl.Supports(repository.LabelTargetLot, res.ControlLevel) {
			return errors.BadRequest(fmt.Sprintf("template %q does not apply to %s lots", tpl.Name, res.ControlLevel))
		}

		batchID, err := s.audit.LogLabelPrint(ctx, &repository.LabelPrintLog{
			ActorUID:     a.ID,
			ActorRole:    a.Role,
			Action:       action,
			TargetType:   repository.LabelTargetLot,
			TargetIDs:    []string{lot.ID},
			ControlLevel: res.ControlLevel,
			TemplateID:   tpl.ID,
			LabelCount:   1,
		})
		if err != nil {
			return err
		}

		lot.LabelsPrinted++
		lot.LastPrintBatchID = &batchID
		if err := s.lots.Update(ctx, lot); err != nil {
			return err
		}

		result = &PrintResult{
			PrintBatchID: batchID,
			Labels: []Label{{
				Template: geometry(tpl),
				Data: LabelData{
					QRValue:     lot.QRValue,
					ItemName:    res.Name,
					LotNumber:   lot.LotNumber,
					ExpiryDate:  lot.ExpiryDate,
					WarehouseID: lot.WarehouseID,
				},
			}},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("lot_id", lotID).Str("action", action).Str("print_batch_id", result.PrintBatchID).Msg("lot label printed")
	return result, nil
}

func (s *LabelService) printAssets(ctx context.Context, assetIDs []string, templateID string, a *actor.Actor, action string) (*PrintResult, error) {
	ids := uniqueSorted(assetIDs)
	if len(ids) == 0 {
		return nil, errors.ValidationField("asset_ids", "at least one asset is required")
	}
	a = auditActor(a)

	var result *PrintResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tpl, err := s.templates.GetByID(ctx, templateID)
		if err != nil {
			return err
		}

		assets := make([]*repository.Asset, 0, len(ids))
		items := make(map[string]*repository.Resource, len(ids))
		levels := map[string]bool{}
		for _, id := range ids {
			asset, err := s.assets.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			res, ok := items[asset.ItemID]
			if !ok {
				if res, err = s.resources.GetByID(ctx, asset.ItemID); err != nil {
					return err
				}
				items[asset.ItemID] = res
			}
			if !res.IsAssetized {
				return errors.ValidationField("asset_ids", fmt.Sprintf("item %q is not assetized", res.Name))
			}
			if !tpl.Supports(repository.LabelTargetAsset, res.ControlLevel) {
				return errors.BadRequest(fmt.Sprintf("template %q does not apply to %s assets", tpl.Name, res.ControlLevel))
			}
			levels[res.ControlLevel] = true
			assets = append(assets, asset)
		}

		batchID, err := s.audit.LogLabelPrint(ctx, &repository.LabelPrintLog{
			ActorUID:     a.ID,
			ActorRole:    a.Role,
			Action:       action,
			TargetType:   repository.LabelTargetAsset,
			TargetIDs:    ids,
			ControlLevel: batchLevel(levels),
			TemplateID:   tpl.ID,
			LabelCount:   len(assets),
		})
		if err != nil {
			return err
		}

		result = &PrintResult{PrintBatchID: batchID, Labels: make([]Label, 0, len(assets))}
		for _, asset := range assets {
			asset.LabelsPrinted++
			asset.LastPrintBatchID = &batchID
			if err := s.assets.Update(ctx, asset); err != nil {
				return err
			}
			result.Labels = append(result.Labels, Label{
				Template: geometry(tpl),
				Data: LabelData{
					QRValue:    asset.QRValue,
					ItemName:   items[asset.ItemID].Name,
					AssetNo:    asset.AssetNo,
					SerialNo:   asset.SerialNo,
					LocationID: asset.LocationID,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("count", len(ids)).Str("action", action).Str("print_batch_id", result.PrintBatchID).Msg("asset labels printed")
	return result, nil
}

func geometry(t *repository.LabelTemplate) LabelGeometry {
	return LabelGeometry{Width: t.Width, Height: t.Height, LayoutConfig: t.LayoutConfig}
}

// batchLevel names the control level of a print batch, "mixed" when the
// assets span several.
func batchLevel(levels map[string]bool) string {
	if len(levels) != 1 {
		return "mixed"
	}
	for l := range levels {
		return l
	}
	return ""
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
