// Package permissions checks operator grants and evaluates the data access
// policy.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "inventory.*")
//   - "resource.action" - Specific action (e.g., "inventory.read")
//   - "resource.subresource.action" - Nested permission (e.g., "stocktake.review")
package permissions

import (
	"strings"

	"github.com/reliefhub/reliefhub-backend/pkg/actor"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "inventory.*" matches "inventory.read", "inventory.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "inventory.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// MergePermissions merges multiple permission sets, removing duplicates.
// Useful for combining role permissions with permission overrides.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// Permission strings checked by the HTTP layer
const (
	InventoryRead   = "inventory.read"
	InventoryWrite  = "inventory.write"
	AssetsWrite     = "assets.write"
	DispatchCreate  = "dispatch.create"
	DispatchApprove = "dispatch.approve"
	DispatchPick    = "dispatch.pick"
	ApprovalDecide  = "approval.decide"
	LabelsPrint     = "labels.print"
	LabelsRevoke    = "labels.revoke"
	StocktakeRun    = "stocktake.run"
	StocktakeReview = "stocktake.review"
	AuditRead       = "audit.read"
	SensitiveRead   = "sensitive.read"
)

// CommonPermissions is the list of known permissions.
// This can be used for validation and autocomplete.
var CommonPermissions = []string{
	InventoryRead, InventoryWrite, "inventory.*",
	AssetsWrite, "assets.*",
	DispatchCreate, DispatchApprove, DispatchPick, "dispatch.*",
	ApprovalDecide, "approval.*",
	LabelsPrint, LabelsRevoke, "labels.*",
	StocktakeRun, StocktakeReview, "stocktake.*",
	AuditRead, "audit.*",
	SensitiveRead,
	"*",
}

// RolePermissions are the grants every member of a role carries before any
// per-user additions.
var RolePermissions = map[string][]string{
	actor.RoleAdmin: {"*"},
	actor.RoleWarehouse: {
		"inventory.*", "assets.*", DispatchPick, LabelsPrint,
		StocktakeRun, SensitiveRead,
	},
	actor.RoleDispatcher: {
		InventoryRead, DispatchCreate, SensitiveRead,
	},
	actor.RoleViewer: {InventoryRead},
}

// Effective returns the role grants merged with the actor's own.
func Effective(a *actor.Actor) []string {
	if a == nil {
		return nil
	}
	return MergePermissions(RolePermissions[a.Role], a.Permissions)
}

// Allowed reports whether the actor holds the permission
func Allowed(a *actor.Actor, required string) bool {
	return HasPermission(Effective(a), required)
}

// IsValidPermission checks if a permission string is in the known list.
// Allows wildcards and custom permissions not in the standard list.
func IsValidPermission(perm string) bool {
	// Allow wildcard
	if perm == "*" {
		return true
	}

	// Check against known permissions
	for _, p := range CommonPermissions {
		if p == perm {
			return true
		}
	}

	// Allow any permission that follows the pattern resource.action
	parts := strings.Split(perm, ".")
	return len(parts) >= 2
}
