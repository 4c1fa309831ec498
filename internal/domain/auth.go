package domain

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   string
	Role Role
}

// ActorFor builds the actor for an authenticated user.
func ActorFor(user *User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}
