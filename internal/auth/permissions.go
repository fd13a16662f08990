package auth

import "fmt"

// Permission is a named capability.
type Permission string

const (
	PermDashboardView  Permission = "dashboard:view"
	PermDashboardFull  Permission = "dashboard:full"
	PermDeviceOperate  Permission = "device:operate"
	PermBookingSubmit  Permission = "booking:submit"
	PermCommandLogRead Permission = "command:read"
	PermEventsStream   Permission = "events:stream"
)

// rolePermissions is the single source of truth for what each role may do.
// Anonymous callers have no entry.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermDashboardView,
		PermDashboardFull,
		PermDeviceOperate,
		PermBookingSubmit,
		PermCommandLogRead,
		PermEventsStream,
	},
	RolePartner: {
		PermDashboardView,
		PermDeviceOperate,
		PermBookingSubmit,
		PermEventsStream,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Authorize returns nil if id may use perm, ErrUnauthenticated for an
// anonymous caller and ErrForbidden otherwise.
func Authorize(id Identity, perm Permission) error {
	if id.IsAnonymous() {
		return ErrUnauthenticated
	}
	if !HasPermission(id.Role, perm) {
		return fmt.Errorf("%w: %s lacks %s", ErrForbidden, id.Role, perm)
	}
	return nil
}
