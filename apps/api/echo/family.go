package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/library"
	"github.com/trezcool/darasa/core/user"
)

type familyApi struct {
	svc           family.Service
	usrSvc        user.Service
	classSvc      classroom.Service
	courseworkSvc coursework.Service
	librarySvc    library.Service
	validate      *validator.Validate
}

func registerFamilyAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := familyApi{
		svc:           deps.FamilySvc,
		usrSvc:        deps.UserSvc,
		classSvc:      deps.ClassSvc,
		courseworkSvc: deps.CourseworkSvc,
		librarySvc:    deps.LibrarySvc,
		validate:      deps.Validate,
	}

	pg := g.Group("/parent", jwt, parentOnly)
	pg.POST("/link-child", api.linkChild)
	pg.GET("/children", api.queryChildren)
	pg.GET("/children/:id/overview", api.overview)
}

func (api *familyApi) linkChild(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data family.LinkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	child, err := api.svc.LinkChild(ctx.Request().Context(), usr, data.StudentCode)
	if err != nil {
		return errors.Wrap(err, "linking child")
	}
	return ctx.JSON(http.StatusOK, child)
}

func (api *familyApi) queryChildren(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	children, err := api.svc.Children(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	return ctx.JSON(http.StatusOK, children)
}

// overview loads everything a parent dashboard shows about one child, concurrently.
func (api *familyApi) overview(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	child, err := api.svc.Child(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding child")
	}

	out := ChildOverview{Child: child}
	eg, egCtx := errgroup.WithContext(ctx.Request().Context())
	eg.Go(func() (err error) {
		out.Classes, err = api.classSvc.ListForStudents(egCtx, child.ID)
		return errors.Wrap(err, "querying classes")
	})
	eg.Go(func() (err error) {
		out.Assignments, err = api.courseworkSvc.ListForStudent(egCtx, child.ID, nil)
		return errors.Wrap(err, "querying assignments")
	})
	eg.Go(func() (err error) {
		out.Submissions, err = api.courseworkSvc.ListStudentSubmissions(egCtx, child.ID)
		return errors.Wrap(err, "querying submissions")
	})
	eg.Go(func() (err error) {
		out.ReadingProgress, err = api.librarySvc.ListProgress(egCtx, child.ID)
		return errors.Wrap(err, "querying reading progress")
	})
	if err = eg.Wait(); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, out)
}

type ChildOverview struct {
	Child           user.User                      `json:"child"`
	Classes         []classroom.Class              `json:"classes"`
	Assignments     []coursework.StudentAssignment `json:"assignments"`
	Submissions     []coursework.Submission        `json:"submissions"`
	ReadingProgress []library.ReadingProgress      `json:"reading_progress"`
}
