package shared

import "context"

// Role names an authorization level supplied by the authentication gateway.
type Role string

const (
	// RoleManagerFull is the highest privilege: catalog edits and entry deletion.
	RoleManagerFull Role = "manager_full"
	// RoleManager may view every shop and save opening stock.
	RoleManager Role = "manager"
	// RoleAttendant records transactions for the shop it is bound to.
	RoleAttendant Role = "attendant"
	// RolePending is a registered user awaiting approval.
	RolePending Role = "pending"
)

// Actor is the explicit session passed with every request.
type Actor struct {
	ID   string
	Role Role
	Shop string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
