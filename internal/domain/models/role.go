package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of agents taking part in a round.
type Role int

const (
	RoleCentralBank Role = iota + 1
	RoleBigBank
	RoleSmallBank
	RoleEconomy
)

// Roles lists every role in turn order.
func Roles() []Role {
	return []Role{RoleCentralBank, RoleBigBank, RoleSmallBank, RoleEconomy}
}

func (r Role) String() string {
	switch r {
	case RoleCentralBank:
		return "central_bank"
	case RoleBigBank:
		return "big_bank"
	case RoleSmallBank:
		return "small_bank"
	case RoleEconomy:
		return "economy"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// DisplayName is the agent name used in prompts.
func (r Role) DisplayName() string {
	switch r {
	case RoleCentralBank:
		return "CentralBank"
	case RoleBigBank:
		return "BigBank"
	case RoleSmallBank:
		return "SmallBank"
	case RoleEconomy:
		return "EconomyAgent"
	default:
		return r.String()
	}
}

// ParseRole accepts the snake_case identifier or the display name.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if strings.EqualFold(s, r.String()) || strings.EqualFold(s, r.DisplayName()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
