package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core/user"
)

// roleMiddleware only lets users having one of `roles` through.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

var (
	teacherOnly = roleMiddleware(user.RoleTeacher)
	studentOnly = roleMiddleware(user.RoleStudent)
	parentOnly  = roleMiddleware(user.RoleParent)
)
