package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-portal/internal/domain"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

// RequireRoles ensures the principal has one of the allowed roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.User.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff admits every internal role.
func RequireStaff() fiber.Handler {
	return RequireRoles(domain.RoleTechnician, domain.RoleEmployee, domain.RoleManager, domain.RoleAdmin)
}
