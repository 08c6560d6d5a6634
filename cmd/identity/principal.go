package identity

import (
	"context"

	"sessiond/cmd/internal/auth/session"
)

// Principals adapts a Directory to session.PrincipalLookup.
type Principals struct {
	Dir Directory
}

// LookupPrincipal maps unknown ids to session.ErrPrincipalNotFound.
func (p Principals) LookupPrincipal(ctx context.Context, id string) (session.Principal, error) {
	u, err := p.Dir.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return session.Principal{}, session.ErrPrincipalNotFound
		}
		return session.Principal{}, err
	}
	return session.Principal{ID: u.ID, Active: u.Active}, nil
}
