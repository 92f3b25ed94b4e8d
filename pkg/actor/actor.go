// Package actor identifies the operator performing an action.
//
// The HTTP layer builds an Actor from the bearer token and stores it in the
// request context; services read it back for audit rows, approver identity
// and policy checks.
package actor

import (
	"context"
	"fmt"
)

// Roles known to the policy layer
const (
	RoleAdmin      = "admin"
	RoleWarehouse  = "warehouse"
	RoleDispatcher = "dispatcher"
	RoleViewer     = "viewer"
)

// SystemID identifies background and CLI-initiated work
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the operator performing an action.
type Actor struct {
	// ID is the stable user id from the identity provider
	ID string `json:"id"`

	// Name is the display name written into ledger and audit rows
	Name string `json:"name"`

	// Role is one of the Role* constants
	Role string `json:"role"`

	// Permissions are explicit grants in addition to the role
	Permissions []string `json:"permissions,omitempty"`
}

// DisplayName returns the name, falling back to the id
func (a *Actor) DisplayName() string {
	if a == nil {
		return "system"
	}
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.DisplayName(), a.Role)
}

// IDPtr returns the id as an optional column value
func (a *Actor) IDPtr() *string {
	if a == nil || a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// OrSystem returns the actor from ctx, or the system actor when absent
func OrSystem(ctx context.Context) *Actor {
	if a := FromContext(ctx); a != nil {
		return a
	}
	return SystemActor()
}

// SystemActor returns an Actor representing the service itself.
func SystemActor() *Actor {
	return &Actor{ID: SystemID, Name: "system", Role: RoleAdmin}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemID
}
