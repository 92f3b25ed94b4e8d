package permissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Sensitive target kinds
const (
	TargetTransaction      = "transaction"
	TargetAssetTransaction = "asset_transaction"
	TargetDonor            = "donor"
)

// HighValueBorrowerFields are the only fields warehouse staff may read, and
// only on high-value assets.
var HighValueBorrowerFields = []string{"borrower_name", "borrower_contact", "borrower_org"}

// Target describes the data an actor wants to see.
type Target struct {
	Kind   string
	ID     string
	Fields []string

	// UnitPrice resolves the value of the asset behind an asset transaction.
	// It is called only when a rule depends on it.
	UnitPrice func(ctx context.Context) (decimal.NullDecimal, error)
}

// Policy decides whether an actor may perform action on target. A nil
// error means allowed.
type Policy interface {
	Evaluate(ctx context.Context, a *actor.Actor, action string, target Target) error
}

// SensitivePolicy gates reads of personal data (recipients, borrowers,
// donor contacts).
type SensitivePolicy struct {
	HighValueThreshold       decimal.Decimal
	DispatchCanReadSensitive bool
}

// NewSensitivePolicy creates the policy from governance settings
func NewSensitivePolicy(threshold decimal.Decimal, dispatchCanRead bool) *SensitivePolicy {
	return &SensitivePolicy{HighValueThreshold: threshold, DispatchCanReadSensitive: dispatchCanRead}
}

// Evaluate implements Policy
func (p *SensitivePolicy) Evaluate(ctx context.Context, a *actor.Actor, action string, t Target) error {
	if a == nil {
		return errors.Forbidden("no actor")
	}
	if action != SensitiveRead {
		return errors.Forbidden(fmt.Sprintf("action %q is not governed by this policy", action))
	}

	switch a.Role {
	case actor.RoleAdmin:
		return nil

	case actor.RoleWarehouse:
		if t.Kind != TargetAssetTransaction || t.UnitPrice == nil {
			return errors.Forbidden("warehouse staff may only read borrower details of high-value assets")
		}
		price, err := t.UnitPrice(ctx)
		if err != nil {
			return err
		}
		if !price.Valid || !price.Decimal.GreaterThan(p.HighValueThreshold) {
			return errors.Forbidden("warehouse staff may only read borrower details of high-value assets")
		}
		if extra := outside(t.Fields, HighValueBorrowerFields); len(extra) > 0 {
			return errors.Forbidden("warehouse staff may not read fields: " + strings.Join(extra, ", "))
		}
		return nil

	case actor.RoleDispatcher:
		if p.DispatchCanReadSensitive && t.Kind == TargetTransaction {
			return nil
		}
		return errors.Forbidden("dispatchers may not read sensitive data unless enabled by an administrator")
	}

	return errors.Forbidden("insufficient permissions")
}

func outside(fields, allowed []string) []string {
	var extra []string
	for _, f := range fields {
		found := false
		for _, a := range allowed {
			if f == a {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, f)
		}
	}
	return extra
}
