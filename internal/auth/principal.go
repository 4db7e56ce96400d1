package auth

import "github.com/rdm-project/rdm-server/internal/store"

// Principal is the authenticated identity passed explicitly into every
// service call. There is no ambient "current user" state anywhere.
type Principal struct {
	ID       int64
	Username string
	Role     string
}

func (p Principal) IsAdmin() bool {
	return p.Role == string(store.RoleAdmin)
}
