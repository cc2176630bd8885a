package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

type classApi struct {
	svc      classroom.Service
	usrSvc   user.Service
	scope    *scope
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, scp *scope) {
	api := classApi{
		svc:      deps.ClassSvc,
		usrSvc:   deps.UserSvc,
		scope:    scp,
		validate: deps.Validate,
	}

	cg := g.Group("/classes", jwt)
	cg.POST("", api.create, teacherOnly)
	cg.GET("", api.query)
	cg.POST("/join", api.join, studentOnly)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, teacherOnly)
	cg.GET("/:id/students", api.roster, roleMiddleware(user.RoleTeacher, user.RoleStudent))
	cg.DELETE("/:id/students/:studentId", api.removeStudent, teacherOnly)
}

func (api *classApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data classroom.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *classApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	classes, err := api.scope.classes(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data classroom.JoinRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	class, enrollment, err := api.svc.Join(ctx.Request().Context(), usr, data.Code)
	if err != nil {
		return errors.Wrap(err, "joining class")
	}
	return ctx.JSON(http.StatusOK, JoinResponse{Class: class, Enrollment: enrollment})
}

func (api *classApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	class, err := api.scope.visibleClass(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *classApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	class, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}

	var data classroom.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(class, api.validate); err != nil {
		return err
	}

	if class, err = api.svc.Update(ctx.Request().Context(), usr, class, data); err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *classApi) roster(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	class, err := api.scope.visibleClass(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	students, err := api.svc.Roster(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) removeStudent(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	class, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	if err = api.svc.RemoveStudent(ctx.Request().Context(), usr, class, ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type JoinResponse struct {
	Class      classroom.Class      `json:"class"`
	Enrollment classroom.Enrollment `json:"enrollment"`
}
