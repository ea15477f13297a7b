package entitlement

// Role is the single moderation role a user can hold, ordered by privilege.
type Role string

const (
	RoleNone      Role = ""
	RoleIntern    Role = "intern"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleOwner     Role = "owner"
)

var roleLevels = map[Role]int{
	RoleIntern:    1,
	RoleModerator: 2,
	RoleAdmin:     3,
	RoleOwner:     4,
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleLevels[r]
	return r, ok
}

func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r carries at least the privilege of min. An action
// requiring min is permitted iff the actor's role level reaches min's level.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level() && min.Level() > 0
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}
