package domain

// Actor is the chat user behind an inbound command or button press.
type Actor struct {
	ID          string
	DisplayName string
	RoleIDs     []string
	IsAdmin     bool
	IsBot       bool
}

// HasRole reports whether the actor holds roleID. An empty roleID never matches.
func (a Actor) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range a.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
