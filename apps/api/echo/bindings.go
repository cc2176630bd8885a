package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=-due_date,title`, keeping only the `allowed` fields.
func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	// AuthResponse is returned on successful signup or login; the token is also set as a cookie.
	AuthResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
)
