package echoapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const (
	mediaURLPrefix   = "/media"
	avatarsDir       = "avatars"
	maxAvatarSize    = 2 << 20 // 2 MiB
	oauthStateCookie = "darasa_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// IdentityProvider signs users in through a third party (Google).
type IdentityProvider interface {
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (user.ExternalIdentity, error)
}

type userApi struct {
	conf       *core.Config
	svc        user.Service
	idp        IdentityProvider
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := userApi{
		conf:       deps.Conf,
		svc:        deps.UserSvc,
		idp:        deps.IdentityProvider,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.GET("/google", api.googleLogin)
	ag.GET("/google/callback", api.googleCallback)
	ag.GET("/roles", api.queryRoles)

	// authed endpoints
	ag.GET("/me", api.me, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	pg := g.Group("/profile", jwt)
	pg.GET("", api.me)
	pg.PUT("", api.update)
	pg.POST("/picture", api.uploadPicture)
	pg.GET("/student-code", api.studentCode, studentOnly)
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	if usr, err = startSession(ctx, usr, api.svc); err != nil {
		return err
	}
	return api.respondWithToken(ctx, http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	return api.respondWithToken(ctx, http.StatusOK, usr)
}

func (api *userApi) respondWithToken(ctx echo.Context, code int, usr user.User) error {
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	setTokenCookie(ctx, api.conf, token)
	return ctx.JSON(code, AuthResponse{Token: token, User: usr})
}

func (api *userApi) logout(ctx echo.Context) error {
	clearTokenCookie(ctx, api.conf)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out."})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	setTokenCookie(ctx, api.conf, token)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}

	if usr, err = api.svc.Update(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) uploadPicture(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var avatarURL string
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if avatarURL, err = api.saveAvatar(ctx, usr); err != nil {
			return err
		}
	} else {
		var data AvatarURLRequest
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to AvatarURLRequest")
		}
		if err = data.Validate(api.validate); err != nil {
			return err
		}
		avatarURL = data.URL
	}

	if usr, err = api.svc.SetAvatar(ctx.Request().Context(), usr, avatarURL); err != nil {
		return errors.Wrap(err, "setting avatar")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// saveAvatar stores the uploaded `picture` under the media dir and returns its URL.
func (api *userApi) saveAvatar(ctx echo.Context, usr user.User) (string, error) {
	invalid := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "picture", Error: msg})
	}

	fh, err := ctx.FormFile("picture")
	if err != nil {
		return "", invalid("this field is required")
	}
	if fh.Size > maxAvatarSize {
		return "", invalid("file too large (max 2 MiB)")
	}
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer func() { _ = src.Close() }()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.Wrap(err, "reading upload")
	}
	ext, ok := avatarExtensions[http.DetectContentType(head[:n])]
	if !ok {
		return "", invalid("unsupported image type")
	}

	suffix := make([]byte, 4)
	if _, err = rand.Read(suffix); err != nil {
		return "", errors.Wrap(err, "generating file name")
	}
	name := usr.ID + "-" + hex.EncodeToString(suffix) + ext
	dir := filepath.Join(api.conf.Server.MediaDir, avatarsDir)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating avatars dir")
	}

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating avatar file")
	}
	defer func() { _ = dst.Close() }()

	if _, err = dst.Write(head[:n]); err != nil {
		return "", errors.Wrap(err, "writing avatar")
	}
	if _, err = io.Copy(dst, io.LimitReader(src, maxAvatarSize)); err != nil {
		return "", errors.Wrap(err, "writing avatar")
	}
	return mediaURLPrefix + "/" + avatarsDir + "/" + name, nil
}

func (api *userApi) studentCode(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if usr, err = api.svc.EnsureStudentCode(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "ensuring student code")
	}
	return ctx.JSON(http.StatusOK, StudentCodeResponse{StudentCode: usr.StudentCode})
}

// OAuth

type oauthState struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

func (api *userApi) googleLogin(ctx echo.Context) error {
	if !api.idp.Enabled() {
		return errOAuthDisabled
	}

	role := core.CleanString(ctx.QueryParam("role"), true /* lower */)
	if role != user.RoleTeacher && role != user.RoleParent {
		role = user.RoleStudent
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "generating oauth nonce")
	}

	now := time.Now()
	state, err := GenerateToken(api.conf, &oauthState{
		StandardClaims: jwt.StandardClaims{
			Id:        hex.EncodeToString(nonce),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(oauthStateTTL).Unix(),
		},
		Role: role,
	})
	if err != nil {
		return errors.Wrap(err, "generating oauth state")
	}

	ctx.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    hex.EncodeToString(nonce),
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ctx.Redirect(http.StatusFound, api.idp.AuthCodeURL(state))
}

// parseState verifies the signed state echoed by the provider against the nonce cookie.
func (api *userApi) parseState(ctx echo.Context) (oauthState, error) {
	var state oauthState
	_, err := jwt.ParseWithClaims(ctx.QueryParam("state"), &state, func(*jwt.Token) (interface{}, error) {
		return []byte(api.conf.SecretKey), nil
	})
	if err != nil {
		return oauthState{}, errors.Wrap(err, "parsing oauth state")
	}
	cookie, err := ctx.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state.Id {
		return oauthState{}, errors.New("oauth state mismatch")
	}
	return state, nil
}

func (api *userApi) googleCallback(ctx echo.Context) error {
	if !api.idp.Enabled() {
		return errOAuthDisabled
	}
	state, err := api.parseState(ctx)
	if err != nil {
		api.logger.Warn(err.Error(), err)
		return errOAuthFailed
	}
	ctx.SetCookie(&http.Cookie{Name: oauthStateCookie, Path: "/", MaxAge: -1, HttpOnly: true})

	identity, err := api.idp.Exchange(ctx.Request().Context(), ctx.QueryParam("code"))
	if err != nil {
		api.logger.Warn(err.Error(), err)
		return errOAuthFailed
	}
	usr, err := api.svc.LoginWithIdentity(ctx.Request().Context(), identity, state.Role)
	if err != nil {
		return errors.Wrap(err, "signing in with google")
	}
	if usr, err = startSession(ctx, usr, api.svc); err != nil {
		return err
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	setTokenCookie(ctx, api.conf, token)
	return ctx.Redirect(http.StatusFound, strings.TrimRight(api.conf.FrontendBaseURL, "/")+"/dashboard")
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	AvatarURLRequest struct {
		URL string `json:"url" validate:"required,url,max=1000"`
	}

	StudentCodeResponse struct {
		StudentCode string `json:"student_code"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (ar *AvatarURLRequest) Validate(validate *validator.Validate) error {
	ar.URL = core.CleanString(ar.URL)
	return validate.Struct(ar)
}
