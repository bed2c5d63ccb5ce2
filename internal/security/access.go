package security

import (
	"github.com/yourorg/businesshub/internal/domain"
)

// Access evaluation is pure: no I/O, no side effects. The same checks gate
// reads (view a business) and privileged actions (list/approve join
// requests); the privileged gate additionally requires a creator or admin
// role.

// Approved reports whether a membership grants read access to its business.
// A nil membership (no record) never grants access.
func Approved(m *domain.Membership) bool {
	if m == nil {
		return false
	}
	return m.Role == domain.RoleCreator || m.ApprovedBy != nil
}

// CanManageRequests reports whether a membership grants the join-request
// workflow operations. An approved plain user may read the business but not
// administrate it.
func CanManageRequests(m *domain.Membership) bool {
	if !Approved(m) {
		return false
	}
	return m.Role == domain.RoleCreator || m.Role == domain.RoleAdmin
}

// Pending reports whether a membership is an open join request.
func Pending(m *domain.Membership) bool {
	if m == nil {
		return false
	}
	return m.Role != domain.RoleCreator && m.ApprovedBy == nil
}
