package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	own := Ownership{CustomerID: "c1", FloristID: "f1", CourierID: "k1"}

	cases := []struct {
		name  string
		actor Actor
		act   Action
		want  bool
	}{
		{"client creates order", Actor{"c9", RoleClient}, ActionCreateOrder, true},
		{"florist cannot create order", Actor{"f1", RoleFlorist}, ActionCreateOrder, false},
		{"owner pays", Actor{"c1", RoleClient}, ActionPay, true},
		{"other client cannot pay", Actor{"c2", RoleClient}, ActionPay, false},
		{"assigned florist assembles", Actor{"f1", RoleFlorist}, ActionCompleteAssembly, true},
		{"other florist cannot assemble", Actor{"f2", RoleFlorist}, ActionCompleteAssembly, false},
		{"courier cannot assemble", Actor{"k1", RoleCourier}, ActionCompleteAssembly, false},
		{"assigned courier delivers", Actor{"k1", RoleCourier}, ActionCompleteDelivery, true},
		{"unassigned courier", Actor{"k2", RoleCourier}, ActionStartDelivery, false},
		{"owner confirms", Actor{"c1", RoleClient}, ActionConfirmCompletion, true},
		{"courier cannot confirm", Actor{"k1", RoleCourier}, ActionConfirmCompletion, false},
		{"staff cancels", Actor{"s1", RoleStaff}, ActionCancel, true},
		{"owner cancels", Actor{"c1", RoleClient}, ActionCancel, true},
		{"florist views assigned", Actor{"f1", RoleFlorist}, ActionView, true},
		{"stranger cannot view", Actor{"x", RoleClient}, ActionView, false},
		{"staff intakes stock", Actor{"s1", RoleStaff}, ActionIntakeStock, true},
		{"client cannot intake", Actor{"c1", RoleClient}, ActionIntakeStock, false},
		{"anonymous", Actor{"", RoleStaff}, ActionView, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Authorize(tc.actor, tc.act, own)
			assert.Equal(t, tc.want, d.Allowed, d.Reason)
			if !tc.want {
				assert.NotEmpty(t, d.Reason)
				assert.True(t, errors.Is(d.Err(), ErrNotAuthorized))
			}
		})
	}
}

func TestAuthorize_UnassignedFlorist(t *testing.T) {
	d := Authorize(Actor{"f1", RoleFlorist}, ActionCompleteAssembly, Ownership{CustomerID: "c1"})
	assert.False(t, d.Allowed)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("courier")
	assert.True(t, ok)
	assert.Equal(t, RoleCourier, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}
