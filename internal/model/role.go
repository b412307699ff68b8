package model

// Team roles, ascending privilege. Stored as plain integers in
// team_members.role and compared numerically everywhere; there is no
// separate roles table.
const (
    RoleRead  = 0 // view only
    RoleEdit  = 1 // modify content
    RoleAdmin = 2 // manage members below admin, invitations, settings
    RoleOwner = 3 // full control, exactly one per team
)

// ValidRole reports whether r is one of the four defined roles.
func ValidRole(r int) bool { return r >= RoleRead && r <= RoleOwner }

// CanManageMember decides whether a caller holding callerRole may
// change or remove a member currently holding targetRole. Owners may
// manage anyone; admins only members below admin rank. Acting on
// yourself is rejected before this rule ever runs, so it does not
// consider identity.
func CanManageMember(callerRole, targetRole int) bool {
    switch {
    case callerRole == RoleOwner:
        return true
    case callerRole == RoleAdmin:
        return targetRole < RoleAdmin
    default:
        return false
    }
}

// CanGrantRole decides whether a caller holding callerRole may assign
// newRole to another member. Only the owner hands out ownership; the
// single-owner invariant is then kept by demoting the previous owner
// in the same transaction as the promotion.
func CanGrantRole(callerRole, newRole int) bool {
    if newRole == RoleOwner {
        return callerRole == RoleOwner
    }
    return callerRole >= RoleAdmin
}
