// Package actor identifies the user or system performing stock operations.
// Ledger rows are attributed to an actor so every quantity change stays
// traceable to whoever caused it.
package actor

import (
	"context"
	"fmt"
)

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is the actor's display name
	Name string `json:"name"`

	// Email is the actor's email address
	Email string `json:"email"`

	// RoleName is the actor's role (optional, for display purposes)
	RoleName string `json:"role_name,omitempty"`
}

const systemActorID = "00000000-0000-0000-0000-000000000000"

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Email)
}

// contextKey is the type for context keys to avoid collisions
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

// SystemActor returns an Actor representing the system itself.
// Use this for the scheduler, sweeps, and other system-initiated movements.
func SystemActor() *Actor {
	return &Actor{
		ID:    systemActorID,
		Name:  "System",
		Email: "system@kioskly.local",
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == systemActorID
}

// PerformedBy returns the actor ID to record on a ledger row.
// Falls back to the system actor when the context carries no actor.
func PerformedBy(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.ID
	}
	return systemActorID
}
