package rbac

import (
	"testing"

	"chatdesk-platform/internal/auth"
)

func TestCanAccessSector(t *testing.T) {
	cases := []struct {
		name     string
		role     string
		caller   string
		conv     string
		expected bool
	}{
		{"admin bypasses", auth.RoleAdmin, "", "Vendas", true},
		{"agent same sector", auth.RoleAgent, "Suporte", "Suporte", true},
		{"agent other sector", auth.RoleAgent, "Suporte", "Vendas", false},
		{"agent empty sector", auth.RoleAgent, "", "Vendas", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccessSector(tc.role, tc.caller, tc.conv); got != tc.expected {
				t.Fatalf("CanAccessSector(%q,%q,%q) = %v, want %v", tc.role, tc.caller, tc.conv, got, tc.expected)
			}
		})
	}
}
