package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/user"
)

type announcementApi struct {
	svc      announcement.Service
	usrSvc   user.Service
	scope    *scope
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, scp *scope) {
	api := announcementApi{
		svc:      deps.AnnouncementSvc,
		usrSvc:   deps.UserSvc,
		scope:    scp,
		validate: deps.Validate,
	}

	ag := g.Group("/announcements", jwt)
	ag.POST("", api.create, teacherOnly)
	ag.GET("", api.feed)
	ag.GET("/class/:id", api.queryForClass)
	ag.PUT("/:id/read", api.markRead)

	g.GET("/notifications", api.notifications, jwt)
}

func (api *announcementApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data announcement.NewAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.Announce(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "posting announcement")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// feed fans out at read time: announcements of the caller's classes plus their direct messages.
func (api *announcementApi) feed(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	classIDs, err := api.scope.classIDs(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	msgs, err := api.svc.Feed(ctx.Request().Context(), usr.ID, classIDs...)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *announcementApi) queryForClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	class, err := api.scope.visibleClass(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	msgs, err := api.svc.ListForClass(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *announcementApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	msg, err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking message read")
	}
	return ctx.JSON(http.StatusOK, msg)
}

// notifications returns the caller's unread direct messages, or all of them with `?all=true`.
func (api *announcementApi) notifications(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	all, _ := strconv.ParseBool(ctx.QueryParam("all"))
	msgs, err := api.svc.Notifications(ctx.Request().Context(), usr.ID, !all)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, msgs)
}
