package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/library"
	"github.com/trezcool/darasa/core/livesession"
	"github.com/trezcool/darasa/core/user"
)

const bodyLimit = "4M"

type (
	// Deps holds everything the API handlers need.
	Deps struct {
		Conf             *core.Config
		Logger           core.Logger
		Validate         *validator.Validate
		Translator       ut.Translator
		IdentityProvider IdentityProvider

		UserSvc         user.Service
		ClassSvc        classroom.Service
		CourseworkSvc   coursework.Service
		AnnouncementSvc announcement.Service
		LibrarySvc      library.Service
		FamilySvc       family.Service
		SessionSvc      livesession.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address  string
		shutdown chan os.Signal
		deps     *Deps
		app      *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API server. A shutdown error raised by a handler sends SIGTERM on `shutdown`.
func NewServer(address string, shutdown chan os.Signal, deps *Deps) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps, "deps"),
	).CheckAndPanic()
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "deps.Conf"),
		vala.IsNotNil(deps.Logger, "deps.Logger"),
		vala.IsNotNil(deps.Validate, "deps.Validate"),
		vala.IsNotNil(deps.Translator, "deps.Translator"),
		vala.IsNotNil(deps.IdentityProvider, "deps.IdentityProvider"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.ClassSvc, "deps.ClassSvc"),
		vala.IsNotNil(deps.CourseworkSvc, "deps.CourseworkSvc"),
		vala.IsNotNil(deps.AnnouncementSvc, "deps.AnnouncementSvc"),
		vala.IsNotNil(deps.LibrarySvc, "deps.LibrarySvc"),
		vala.IsNotNil(deps.FamilySvc, "deps.FamilySvc"),
		vala.IsNotNil(deps.SessionSvc, "deps.SessionSvc"),
	).CheckAndPanic()

	s := &server{
		address:  address,
		shutdown: shutdown,
		deps:     deps,
		app:      echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug && !conf.TestMode
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(cookieTokenMiddleware(conf.Server.CookieName))
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.app.Use(middleware.BodyLimit(bodyLimit))

	s.app.GET("/", home)
	s.app.Static(mediaURLPrefix, conf.Server.MediaDir)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	scp := &scope{
		classSvc:  s.deps.ClassSvc,
		familySvc: s.deps.FamilySvc,
	}

	registerUserAPI(g, jwt, s.deps)
	registerClassAPI(g, jwt, s.deps, scp)
	registerCourseworkAPI(g, jwt, s.deps, scp)
	registerAnnouncementAPI(g, jwt, s.deps, scp)
	registerLibraryAPI(g, jwt, s.deps, scp)
	registerFamilyAPI(g, jwt, s.deps)
	registerSessionAPI(g, jwt, s.deps, scp)
}

func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *server) Start() error {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
