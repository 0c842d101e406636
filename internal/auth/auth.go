// Package auth decides which actor may trigger which order operation.
// Identity and role storage live outside this service; callers hand in an
// Actor built from whatever the gateway authenticated.
package auth

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleClient  Role = "client"
	RoleFlorist Role = "florist"
	RoleCourier Role = "courier"
	RoleStaff   Role = "staff"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleClient, RoleFlorist, RoleCourier, RoleStaff:
		return r, true
	}
	return "", false
}

type Actor struct {
	ID   string
	Role Role
}

type Action string

const (
	ActionCreateOrder       Action = "create_order"
	ActionPay               Action = "pay"
	ActionView              Action = "view"
	ActionCheckStock        Action = "check_stock"
	ActionCompleteAssembly  Action = "complete_assembly"
	ActionStartDelivery     Action = "start_delivery"
	ActionCompleteDelivery  Action = "complete_delivery"
	ActionUpdateLocation    Action = "update_location"
	ActionConfirmCompletion Action = "confirm_completion"
	ActionCancel            Action = "cancel"
	ActionIntakeStock       Action = "intake_stock"
	ActionRunAssignment     Action = "run_assignment"
)

// Ownership describes who an order belongs to. Empty ids mean "nobody".
type Ownership struct {
	CustomerID string
	FloristID  string
	CourierID  string
}

type Decision struct {
	Allowed bool
	Reason  string
}

var ErrNotAuthorized = errors.New("not authorized")

// Err turns a deny decision into an error wrapping ErrNotAuthorized.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Authorize is called at the entry of every order operation.
func Authorize(a Actor, act Action, own Ownership) Decision {
	if a.ID == "" {
		return deny("anonymous actor")
	}
	switch act {
	case ActionCreateOrder:
		return requireRole(a, act, RoleClient)
	case ActionPay, ActionConfirmCompletion:
		if d := requireRole(a, act, RoleClient); !d.Allowed {
			return d
		}
		return requireSelf(a, own.CustomerID, "order belongs to another customer")
	case ActionCompleteAssembly:
		if d := requireRole(a, act, RoleFlorist); !d.Allowed {
			return d
		}
		return requireSelf(a, own.FloristID, "order is not assigned to this florist")
	case ActionStartDelivery, ActionCompleteDelivery, ActionUpdateLocation:
		if d := requireRole(a, act, RoleCourier); !d.Allowed {
			return d
		}
		return requireSelf(a, own.CourierID, "order is not assigned to this courier")
	case ActionCancel:
		if a.Role == RoleStaff {
			return allow()
		}
		if d := requireRole(a, act, RoleClient); !d.Allowed {
			return d
		}
		return requireSelf(a, own.CustomerID, "order belongs to another customer")
	case ActionView:
		if a.Role == RoleStaff {
			return allow()
		}
		if a.ID == own.CustomerID || a.ID == own.FloristID || a.ID == own.CourierID {
			return allow()
		}
		return deny("actor is not a party of this order")
	case ActionCheckStock:
		if a.Role == RoleStaff {
			return allow()
		}
		if a.Role == RoleFlorist && a.ID == own.FloristID {
			return allow()
		}
		return deny("only staff or the assigned florist may check stock")
	case ActionIntakeStock, ActionRunAssignment:
		return requireRole(a, act, RoleStaff)
	}
	return deny("unknown action %q", act)
}

func requireRole(a Actor, act Action, want Role) Decision {
	if a.Role != want {
		return deny("role %q may not %s", a.Role, act)
	}
	return allow()
}

func requireSelf(a Actor, owner, reason string) Decision {
	if owner == "" || owner != a.ID {
		return deny("%s", reason)
	}
	return allow()
}
