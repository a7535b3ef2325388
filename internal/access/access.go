// Package access holds the single role predicate used by every gated
// operation and the view gate built on top of it.
package access

import "github.com/psds-microservice/portal-service/internal/model"

var (
	StaffRoles      = []model.Role{model.RoleAdmin, model.RoleSuperAdmin}
	SuperAdminRoles = []model.Role{model.RoleSuperAdmin}
)

// HasRole reports whether u holds one of roles. A nil user has no role.
func HasRole(u *model.User, roles ...model.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func IsStaff(u *model.User) bool {
	return HasRole(u, StaffRoles...)
}

type State string

const (
	StateLoading State = "loading"
	StateAllowed State = "allowed"
	StateDenied  State = "denied"
)

const (
	RedirectLogin  = "/login"
	RedirectPortal = "/portal"
)

// Session — состояние загрузки личности на стороне вызывающего.
// Settled=false означает, что разрешение личности ещё идёт.
type Session struct {
	Settled bool
	User    *model.User
}

type Decision struct {
	State    State  `json:"state"`
	Redirect string `json:"redirect,omitempty"`
}

func (d Decision) Allowed() bool { return d.State == StateAllowed }

// Gate guards a protected view.
type Gate struct {
	RequireAdmin      bool
	RequireSuperAdmin bool
}

func (g Gate) Evaluate(s Session) Decision {
	if !s.Settled {
		return Decision{State: StateLoading}
	}
	if s.User == nil {
		return Decision{State: StateDenied, Redirect: RedirectLogin}
	}
	if g.RequireSuperAdmin && !HasRole(s.User, SuperAdminRoles...) {
		return Decision{State: StateDenied, Redirect: RedirectPortal}
	}
	if g.RequireAdmin && !IsStaff(s.User) {
		return Decision{State: StateDenied, Redirect: RedirectPortal}
	}
	return Decision{State: StateAllowed}
}
