package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/user"
)

const childIDParam = "child_id"

type courseworkApi struct {
	svc      coursework.Service
	usrSvc   user.Service
	scope    *scope
	validate *validator.Validate
}

func registerCourseworkAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, scp *scope) {
	api := courseworkApi{
		svc:      deps.CourseworkSvc,
		usrSvc:   deps.UserSvc,
		scope:    scp,
		validate: deps.Validate,
	}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.create, teacherOnly)
	ag.GET("", api.query)
	ag.GET("/class/:id", api.queryForClass)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/progress", api.markInProgress, studentOnly)
	ag.POST("/:id/submit", api.submit, studentOnly)
	ag.GET("/:id/submissions", api.querySubmissions, teacherOnly)

	sg := g.Group("/submissions", jwt)
	sg.GET("", api.queryStudentSubmissions, roleMiddleware(user.RoleStudent, user.RoleParent))
	sg.PUT("/:id/grade", api.grade, teacherOnly)
}

func (api *courseworkApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data coursework.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	assignment, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, assignment)
}

// query lists the teacher's assignments, or the ones of a student decorated with their submission status.
func (api *courseworkApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	ordering := bindOrdering(ctx, coursework.AssignmentOrderings...)

	if usr.IsTeacher() {
		assignments, err := api.svc.ListForTeacher(ctx.Request().Context(), usr.ID, ordering)
		if err != nil {
			return errors.Wrap(err, "querying assignments")
		}
		return ctx.JSON(http.StatusOK, assignments)
	}

	student, err := api.scope.child(ctx.Request().Context(), usr, ctx.QueryParam(childIDParam))
	if err != nil {
		return err
	}
	assignments, err := api.svc.ListForStudent(ctx.Request().Context(), student.ID, ordering)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *courseworkApi) queryForClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	class, err := api.scope.visibleClass(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	assignments, err := api.svc.ListForClass(ctx.Request().Context(), class.ID, bindOrdering(ctx, coursework.AssignmentOrderings...))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *courseworkApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	assignment, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment")
	}
	if _, err = api.scope.visibleClass(ctx.Request().Context(), usr, assignment.ClassID); err != nil {
		if core.IsNotFound(err) {
			return coursework.ErrNotFound
		}
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *courseworkApi) markInProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	sub, err := api.svc.MarkInProgress(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking assignment in progress")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *courseworkApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data coursework.SubmitRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *courseworkApi) querySubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *courseworkApi) queryStudentSubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	student, err := api.scope.child(ctx.Request().Context(), usr, ctx.QueryParam(childIDParam))
	if err != nil {
		return err
	}
	subs, err := api.svc.ListStudentSubmissions(ctx.Request().Context(), student.ID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *courseworkApi) grade(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data coursework.GradeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
