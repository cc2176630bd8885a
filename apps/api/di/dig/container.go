package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/library"
	"github.com/trezcool/darasa/core/livesession"
	"github.com/trezcool/darasa/core/user"
	catalogsvc "github.com/trezcool/darasa/services/catalog"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	oauthsvc "github.com/trezcool/darasa/services/oauth"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

const setUpTimeout = 30 * time.Second

// DBLoggerParam is the logger dedicated to database events.
type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type depsParam struct {
	dig.In

	Conf             *core.Config
	Logger           core.Logger
	Validate         *validator.Validate
	Translator       ut.Translator
	IdentityProvider echoapi.IdentityProvider

	UserSvc         user.Service
	ClassSvc        classroom.Service
	CourseworkSvc   coursework.Service
	AnnouncementSvc announcement.Service
	LibrarySvc      library.Service
	FamilySvc       family.Service
	SessionSvc      livesession.Service
}

func newRollbarLogger(conf *core.Config) (*logsvc.RollbarLogger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}

func newLogger(rl *logsvc.RollbarLogger) core.Logger {
	return rl
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newCatalogCache falls back to no caching when redis is not configured or unreachable.
func newCatalogCache(conf *core.Config, logger core.Logger) catalogsvc.Cache {
	if conf.Redis.Addr == "" {
		return new(catalogsvc.NoopCache)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := catalogsvc.NewRedisClient(ctx, conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		logger.Warn(fmt.Sprintf("catalog cache disabled: %v", err), err)
		return new(catalogsvc.NoopCache)
	}
	return catalogsvc.NewRedisCache(rdb)
}

func newNotifier(svc announcement.Service) coursework.Notifier    { return svc }
func newAnnouncer(svc announcement.Service) livesession.Announcer { return svc }

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newShutdownChannel() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(conf *core.Config, shutdown chan os.Signal, p depsParam) echoapi.Server {
	return echoapi.NewServer(conf.Server.Address(), shutdown, &echoapi.Deps{
		Conf:             p.Conf,
		Logger:           p.Logger,
		Validate:         p.Validate,
		Translator:       p.Translator,
		IdentityProvider: p.IdentityProvider,
		UserSvc:          p.UserSvc,
		ClassSvc:         p.ClassSvc,
		CourseworkSvc:    p.CourseworkSvc,
		AnnouncementSvc:  p.AnnouncementSvc,
		LibrarySvc:       p.LibrarySvc,
		FamilySvc:        p.FamilySvc,
		SessionSvc:       p.SessionSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(core.NewConfig))
	must(c.Provide(newRollbarLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(newShutdownChannel))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewClassRepository))
	must(c.Provide(sqlxrepos.NewCourseworkRepository))
	must(c.Provide(sqlxrepos.NewAnnouncementRepository))
	must(c.Provide(sqlxrepos.NewLibraryRepository))
	must(c.Provide(sqlxrepos.NewFamilyRepository))
	must(c.Provide(sqlxrepos.NewSessionRepository))

	// third parties
	must(c.Provide(newEmailService))
	must(c.Provide(newCatalogCache))
	must(c.Provide(catalogsvc.NewOpenLibrary, dig.As(new(library.Catalog))))
	must(c.Provide(oauthsvc.NewGoogle, dig.As(new(echoapi.IdentityProvider))))

	// domain
	must(c.Provide(user.NewService))
	must(c.Provide(classroom.NewService))
	must(c.Provide(announcement.NewService))
	must(c.Provide(newNotifier))
	must(c.Provide(newAnnouncer))
	must(c.Provide(coursework.NewService))
	must(c.Provide(library.NewService))
	must(c.Provide(family.NewService))
	must(c.Provide(livesession.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
