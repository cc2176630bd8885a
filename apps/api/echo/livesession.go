package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/livesession"
	"github.com/trezcool/darasa/core/user"
)

type sessionApi struct {
	svc      livesession.Service
	usrSvc   user.Service
	scope    *scope
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, scp *scope) {
	api := sessionApi{
		svc:      deps.SessionSvc,
		usrSvc:   deps.UserSvc,
		scope:    scp,
		validate: deps.Validate,
	}

	sg := g.Group("/live-sessions", jwt)
	sg.POST("", api.start, teacherOnly)
	sg.GET("/active", api.queryActive)
	sg.PUT("/:id/end", api.end, teacherOnly)
}

func (api *sessionApi) start(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data livesession.StartRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	session, err := api.svc.Start(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "starting live session")
	}
	return ctx.JSON(http.StatusCreated, session)
}

func (api *sessionApi) queryActive(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	classIDs, err := api.scope.classIDs(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	sessions, err := api.svc.Active(ctx.Request().Context(), classIDs...)
	if err != nil {
		return errors.Wrap(err, "querying live sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) end(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	session, err := api.svc.End(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "ending live session")
	}
	return ctx.JSON(http.StatusOK, session)
}
