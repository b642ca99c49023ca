package authz

import "fmt"

// RoleSeed declares one built-in role and its allow rules.
type RoleSeed struct {
	Role     string
	Policies []Policy
}

// BuiltinRoleSeeds are the roles created at startup. Admin holds the full
// back office; support and finance get the narrower slices they work with.
var BuiltinRoleSeeds = []RoleSeed{
	{
		Role: "role:admin",
		Policies: []Policy{
			{Object: "/admin/*", Action: "*"},
		},
	},
	{
		Role: "role:support",
		Policies: []Policy{
			{Object: "/admin/orders", Action: "GET"},
			{Object: "/admin/orders/:id/status", Action: "PUT"},
			{Object: "/admin/payments", Action: "GET"},
		},
	},
	{
		Role: "role:finance",
		Policies: []Policy{
			{Object: "/admin/payments", Action: "GET"},
			{Object: "/admin/payments/:id/refund", Action: "POST"},
		},
	},
}

// BootstrapBuiltinRoles seeds the built-in roles and their policies.
// Re-running is safe: existing rules are left untouched.
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}
	for _, seed := range BuiltinRoleSeeds {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return fmt.Errorf("seed role %s failed: %w", seed.Role, err)
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("seed policy for %s failed: %w", role, err)
			}
		}
	}
	return nil
}
