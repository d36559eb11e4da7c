package market

// Role is a user registry role, as passed to isRole.
type Role uint8

const (
	RoleUserAdmin Role = iota
	RoleAssetAdmin
	RoleAgreementAdmin
	RoleAssetManager
	RoleTrader
	RoleMatcher
)

// Mask returns the user registry bit for r.
func (r Role) Mask() uint64 {
	return 1 << uint(r)
}

// RoleMask combines roles into the bitmask stored by the user registry.
// Trader alone is 16, asset manager alone is 8, user and asset admin is 3.
func RoleMask(roles ...Role) uint64 {
	var mask uint64
	for _, r := range roles {
		mask |= r.Mask()
	}
	return mask
}

// HasRole reports whether mask includes r.
func HasRole(mask uint64, r Role) bool {
	return mask&r.Mask() != 0
}
