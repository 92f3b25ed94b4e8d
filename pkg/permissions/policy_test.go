package permissions

import (
	"context"
	"testing"

	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func price(v string) func(context.Context) (decimal.NullDecimal, error) {
	return func(context.Context) (decimal.NullDecimal, error) {
		if v == "" {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}, nil
	}
}

func TestSensitivePolicy_Evaluate(t *testing.T) {
	ctx := context.Background()
	threshold := decimal.NewFromInt(50000)

	tests := []struct {
		name          string
		role          string
		dispatchRead  bool
		target        Target
		wantForbidden bool
	}{
		{"admin reads anything", actor.RoleAdmin, false, Target{Kind: TargetDonor, Fields: []string{"phone"}}, false},
		{"warehouse reads borrower of high value asset", actor.RoleWarehouse, false,
			Target{Kind: TargetAssetTransaction, Fields: []string{"borrower_name", "borrower_org"}, UnitPrice: price("80000")}, false},
		{"warehouse blocked at exactly the threshold", actor.RoleWarehouse, false,
			Target{Kind: TargetAssetTransaction, Fields: []string{"borrower_name"}, UnitPrice: price("50000")}, true},
		{"warehouse blocked without price", actor.RoleWarehouse, false,
			Target{Kind: TargetAssetTransaction, Fields: []string{"borrower_name"}, UnitPrice: price("")}, true},
		{"warehouse blocked on other fields", actor.RoleWarehouse, false,
			Target{Kind: TargetAssetTransaction, Fields: []string{"borrower_id_no"}, UnitPrice: price("90000")}, true},
		{"warehouse blocked on recipients", actor.RoleWarehouse, false,
			Target{Kind: TargetTransaction, Fields: []string{"recipient_name"}}, true},
		{"dispatcher blocked by default", actor.RoleDispatcher, false,
			Target{Kind: TargetTransaction, Fields: []string{"recipient_name"}}, true},
		{"dispatcher allowed when enabled", actor.RoleDispatcher, true,
			Target{Kind: TargetTransaction, Fields: []string{"recipient_name"}}, false},
		{"dispatcher never reads donors", actor.RoleDispatcher, true,
			Target{Kind: TargetDonor, Fields: []string{"phone"}}, true},
		{"viewer blocked", actor.RoleViewer, true, Target{Kind: TargetTransaction}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSensitivePolicy(threshold, tt.dispatchRead)
			err := p.Evaluate(ctx, &actor.Actor{ID: "u1", Role: tt.role}, SensitiveRead, tt.target)
			if tt.wantForbidden {
				assert.ErrorIs(t, err, errors.ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSensitivePolicy_NilActor(t *testing.T) {
	p := NewSensitivePolicy(decimal.NewFromInt(1), true)
	err := p.Evaluate(context.Background(), nil, SensitiveRead, Target{Kind: TargetTransaction})
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(&actor.Actor{Role: actor.RoleAdmin}, DispatchApprove))
	assert.True(t, Allowed(&actor.Actor{Role: actor.RoleWarehouse}, InventoryWrite))
	assert.False(t, Allowed(&actor.Actor{Role: actor.RoleDispatcher}, DispatchApprove))
	assert.True(t, Allowed(&actor.Actor{Role: actor.RoleDispatcher, Permissions: []string{"dispatch.*"}}, DispatchApprove))
	assert.False(t, Allowed(nil, InventoryRead))
}

func TestHasPermission_Wildcards(t *testing.T) {
	assert.True(t, HasPermission([]string{"labels.*"}, LabelsRevoke))
	assert.False(t, HasPermission([]string{"labels.*"}, "labelsx.print"))
	assert.True(t, HasPermission(nil, ""))
}
