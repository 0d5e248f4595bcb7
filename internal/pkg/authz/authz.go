// Package authz is the single place that maps roles to permissions.
package authz

import "github.com/nablus1/TurfArena-booking/internal/domain"

type Permission string

const (
	BookingsManage    Permission = "bookings:manage"
	BookingsDelete    Permission = "bookings:delete"
	SlotsManage       Permission = "slots:manage"
	TicketsValidate   Permission = "tickets:validate"
	PaymentsReconcile Permission = "payments:reconcile"
	AnalyticsView     Permission = "analytics:view"
)

var staff = []Permission{BookingsManage, SlotsManage, TicketsValidate, PaymentsReconcile, AnalyticsView}

var grants = map[domain.UserRole]map[Permission]bool{
	domain.RoleUser:       {},
	domain.RoleAdmin:      set(staff...),
	domain.RoleSuperAdmin: set(append(staff, BookingsDelete)...),
}

func set(perms ...Permission) map[Permission]bool {
	out := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		out[p] = true
	}
	return out
}

// Can reports whether role holds perm. Unknown roles hold nothing.
func Can(role domain.UserRole, perm Permission) bool {
	return grants[role][perm]
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID int64
	Role   domain.UserRole
}

func (a Actor) Can(perm Permission) bool {
	return Can(a.Role, perm)
}

// Owns reports whether the actor is the owner or may act for any owner
// through perm.
func (a Actor) Owns(ownerID int64, perm Permission) bool {
	return a.UserID == ownerID || a.Can(perm)
}
