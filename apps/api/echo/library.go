package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/library"
	"github.com/trezcool/darasa/core/user"
)

type libraryApi struct {
	svc      library.Service
	usrSvc   user.Service
	scope    *scope
	validate *validator.Validate
}

func registerLibraryAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, scp *scope) {
	api := libraryApi{
		svc:      deps.LibrarySvc,
		usrSvc:   deps.UserSvc,
		scope:    scp,
		validate: deps.Validate,
	}

	bg := g.Group("/books", jwt)
	bg.GET("/search", api.search)
	bg.POST("", api.createBook, teacherOnly)
	bg.GET("", api.queryBooks)
	bg.GET("/:id", api.retrieveBook)

	pg := g.Group("/reading-progress", jwt)
	pg.GET("", api.queryProgress)
	pg.POST("", api.addToLibrary)
	pg.PUT("/:id", api.updateProgress)
	pg.DELETE("/:id", api.removeFromLibrary)
}

// Books

func (api *libraryApi) search(ctx echo.Context) error {
	var data library.SearchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SearchRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	results, err := api.svc.SearchCatalog(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "searching catalog")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *libraryApi) createBook(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data library.NewBook
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	book, err := api.svc.CreateBook(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating book")
	}
	return ctx.JSON(http.StatusCreated, book)
}

func (api *libraryApi) queryBooks(ctx echo.Context) error {
	books, err := api.svc.ListBooks(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	return ctx.JSON(http.StatusOK, books)
}

func (api *libraryApi) retrieveBook(ctx echo.Context) error {
	book, err := api.svc.GetBook(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding book")
	}
	return ctx.JSON(http.StatusOK, book)
}

// Reading progress

// queryProgress lists the caller's library; parents read a child's with `?child_id=`.
func (api *libraryApi) queryProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	owner := usr
	if usr.IsParent() {
		if owner, err = api.scope.child(ctx.Request().Context(), usr, ctx.QueryParam(childIDParam)); err != nil {
			return err
		}
	}
	progress, err := api.svc.ListProgress(ctx.Request().Context(), owner.ID)
	if err != nil {
		return errors.Wrap(err, "querying reading progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *libraryApi) addToLibrary(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data library.AddToLibrary
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddToLibrary")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	progress, err := api.svc.AddToLibrary(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "adding book to library")
	}
	return ctx.JSON(http.StatusCreated, progress)
}

func (api *libraryApi) updateProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data library.UpdateProgress
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	progress, err := api.svc.UpdateProgress(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating reading progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *libraryApi) removeFromLibrary(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveFromLibrary(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing book from library")
	}
	return ctx.NoContent(http.StatusNoContent)
}
