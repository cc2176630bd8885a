package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("user not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrStudentCodeExists   = errors.New("a user with this student code already exists")
	ErrGoogleAccountExists = errors.New("a user is already linked to this google account")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if a user other than `excludedIDs` has `email`.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		StudentCodeExists(ctx context.Context, code string) (bool, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		// GetUser applies OR operation on available GetFilter fields.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		CheckUniqueness(email string, excludedIDs ...string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByStudentCode(ctx context.Context, code string) (User, error)
		Query(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetAvatar(ctx context.Context, usr User, avatarURL string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		EnsureStudentCode(ctx context.Context, usr User) (User, error)
		LoginWithIdentity(ctx context.Context, identity ExternalIdentity, role string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		tokenGen tokenGenerator
		codeLen  int
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return newService(repo, mailSvc, conf)
}

func newService(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
		codeLen: conf.CodeLength,
	}
}

func (svc *service) CheckUniqueness(email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) newStudentCode(ctx context.Context) (string, error) {
	return core.GenerateUniqueCode(ctx, svc.codeLen, svc.repo.StudentCodeExists)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	if usr.IsStudent() {
		code, err := svc.newStudentCode(ctx)
		if err != nil {
			return User{}, errors.Wrap(err, "generating student code")
		}
		usr.StudentCode = code
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByStudentCode(ctx context.Context, code string) (User, error) {
	code = core.CleanCode(code)
	if code == "" {
		return User{}, ErrNotFound
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{StudentCode: code})
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []User{}, nil
	}
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetAvatar(ctx context.Context, usr User, avatarURL string) (User, error) {
	usr.AvatarURL = avatarURL
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// EnsureStudentCode assigns a student code to students created without one.
func (svc *service) EnsureStudentCode(ctx context.Context, usr User) (User, error) {
	if !usr.IsStudent() || usr.StudentCode != "" {
		return usr, nil
	}
	code, err := svc.newStudentCode(ctx)
	if err != nil {
		return User{}, errors.Wrap(err, "generating student code")
	}
	usr.StudentCode = code
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// LoginWithIdentity finds the user matching a third party identity, by subject then by email,
// creating one with `role` when none exists.
func (svc *service) LoginWithIdentity(ctx context.Context, identity ExternalIdentity, role string) (User, error) {
	email := core.CleanString(identity.Email, true /* lower */)
	if identity.Subject == "" || email == "" {
		return User{}, core.NewValidationError(errors.New("incomplete identity"))
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{GoogleSub: identity.Subject, Email: email})
	switch {
	case err == nil:
		if usr.GoogleSub == "" {
			usr.GoogleSub = identity.Subject
		} else if usr.GoogleSub != identity.Subject {
			return User{}, core.NewValidationError(ErrGoogleAccountExists)
		}
		if usr.AvatarURL == "" {
			usr.AvatarURL = identity.AvatarURL
		}
		usr.UpdatedAt = time.Now().UTC()
		return svc.repo.UpdateUser(ctx, usr)
	case errors.Cause(err) != ErrNotFound:
		return User{}, errors.Wrap(err, "finding user by identity")
	}

	if !roleValid(role) {
		role = RoleStudent
	}
	name := core.CleanString(identity.Name)
	if name == "" {
		name = email
	}
	now := time.Now().UTC()
	usr = User{
		Name:      name,
		Email:     email,
		Role:      role,
		AvatarURL: identity.AvatarURL,
		GoogleSub: identity.Subject,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.IsStudent() {
		code, err := svc.newStudentCode(ctx)
		if err != nil {
			return User{}, errors.Wrap(err, "generating student code")
		}
		usr.StudentCode = code
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": usr.Name,
			"Path": fmt.Sprintf("/password-reset/%s/%s", EncodeUID(usr), svc.tokenGen.makeToken(usr)),
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidTokenErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: "invalid value"})

	uid, err := decodeUID(data.UID)
	if err != nil {
		return invalidTokenErr
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidTokenErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return invalidTokenErr
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

func roleValid(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
