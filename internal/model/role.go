package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is fixed at registration.
type Role int

const (
	RoleBuyer Role = iota + 1
	RoleSeller
	RoleAdmin
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buyer":
		return RoleBuyer, nil
	case "seller":
		return RoleSeller, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// CanPurchase reports whether users of this role may buy from the machine.
// Admin accounts carry no deposit of their own.
func (r Role) CanPurchase() bool {
	switch r {
	case RoleBuyer, RoleSeller:
		return true
	case RoleAdmin:
		return false
	}
	return false
}

// CanSell reports whether users of this role may list products.
func (r Role) CanSell() bool {
	switch r {
	case RoleSeller:
		return true
	case RoleBuyer, RoleAdmin:
		return false
	}
	return false
}

// CanAdminister reports whether users of this role may manage other
// accounts.
func (r Role) CanAdminister() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleBuyer, RoleSeller:
		return false
	}
	return false
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
