package user_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	appfs "github.com/trezcool/darasa/fs"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

type fixture struct {
	repo    user.Repository
	mailSvc *emailsvc.ConsoleService
	svc     user.Service
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, logger)

	f := &fixture{
		repo:    inmemdb.NewUserRepository(inmemdb.NewDB()),
		mailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
	}
	f.svc = user.NewServiceMock(f.repo, f.mailSvc, conf)
	return f
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	student, err := f.svc.Create(ctx, user.NewUser{Name: "Kwame", Email: "kwame@skul.test", Password: "Str0ng!Vault", Role: user.RoleStudent})
	require.NoError(t, err)
	assert.Len(t, student.StudentCode, core.DefaultCodeLen)
	assert.True(t, student.IsActive)
	assert.NoError(t, student.CheckPassword("Str0ng!Vault"))

	teacher, err := f.svc.Create(ctx, user.NewUser{Name: "Ama", Email: "ama@skul.test", Password: "Str0ng!Vault", Role: user.RoleTeacher})
	require.NoError(t, err)
	assert.Empty(t, teacher.StudentCode)

	err = f.svc.CheckUniqueness("kwame@skul.test")
	var vErr *core.ValidationError
	if assert.True(t, errors.As(err, &vErr)) {
		assert.Equal(t, []core.FieldError{{Field: "email", Error: user.ErrEmailExists.Error()}}, vErr.Fields)
	}
	assert.NoError(t, f.svc.CheckUniqueness("kwame@skul.test", student.ID))

	got, err := f.svc.GetByStudentCode(ctx, " "+strings.ToLower(student.StudentCode))
	if assert.NoError(t, err) {
		assert.Equal(t, student.ID, got.ID)
	}
	_, err = f.svc.GetByStudentCode(ctx, "")
	assert.Equal(t, user.ErrNotFound, err)

	got, err = f.svc.GetByEmail(ctx, " AMA@skul.test ")
	if assert.NoError(t, err) {
		assert.Equal(t, teacher.ID, got.ID)
	}
}

func TestService_EnsureStudentCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.repo, "Ama", "ama@skul.test", "", user.RoleTeacher, true)
	got, err := f.svc.EnsureStudentCode(ctx, teacher)
	if assert.NoError(t, err) {
		assert.Empty(t, got.StudentCode)
	}

	student := testutil.CreateUser(t, f.repo, "Kwame", "kwame@skul.test", "", user.RoleStudent, true)
	student.StudentCode = ""
	student, err = f.repo.UpdateUser(ctx, student)
	require.NoError(t, err)

	got, err = f.svc.EnsureStudentCode(ctx, student)
	require.NoError(t, err)
	assert.Len(t, got.StudentCode, core.DefaultCodeLen)

	again, err := f.svc.EnsureStudentCode(ctx, got)
	if assert.NoError(t, err) {
		assert.Equal(t, got.StudentCode, again.StudentCode)
	}
}

func TestService_LoginWithIdentity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.repo, "Ama", "ama@skul.test", "", user.RoleTeacher, true)

	tests := []struct {
		name       string
		identity   user.ExternalIdentity
		role       string
		wantErr    bool
		wantID     string
		wantRole   string
		wantCode   bool
		wantAvatar string
	}{
		{
			name:     "incomplete identity",
			identity: user.ExternalIdentity{Provider: "google", Email: "ama@skul.test"},
			wantErr:  true,
		},
		{
			name:       "links existing user by email",
			identity:   user.ExternalIdentity{Provider: "google", Subject: "sub-ama", Email: "AMA@skul.test", AvatarURL: "https://img.test/ama.png"},
			role:       user.RoleParent,
			wantID:     teacher.ID,
			wantRole:   user.RoleTeacher,
			wantAvatar: "https://img.test/ama.png",
		},
		{
			name:       "finds linked user by subject",
			identity:   user.ExternalIdentity{Provider: "google", Subject: "sub-ama", Email: "ama@gmail.test"},
			wantID:     teacher.ID,
			wantRole:   user.RoleTeacher,
			wantAvatar: "https://img.test/ama.png",
		},
		{
			name:     "conflicting subject",
			identity: user.ExternalIdentity{Provider: "google", Subject: "sub-other", Email: "ama@skul.test"},
			wantErr:  true,
		},
		{
			name:     "new user defaults to student",
			identity: user.ExternalIdentity{Provider: "google", Subject: "sub-kwame", Email: "kwame@skul.test", Name: "Kwame"},
			role:     "admin",
			wantRole: user.RoleStudent,
			wantCode: true,
		},
		{
			name:     "new parent",
			identity: user.ExternalIdentity{Provider: "google", Subject: "sub-akosua", Email: "akosua@home.test"},
			role:     user.RoleParent,
			wantRole: user.RoleParent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := f.svc.LoginWithIdentity(ctx, tt.identity, tt.role)
			if tt.wantErr {
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr), "want *core.ValidationError, got %v", err)
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, usr.ID)
			}
			assert.Equal(t, tt.identity.Subject, usr.GoogleSub)
			assert.Equal(t, tt.wantRole, usr.Role)
			assert.Equal(t, tt.wantCode, usr.StudentCode != "")
			assert.Equal(t, tt.wantAvatar, usr.AvatarURL)
			assert.True(t, usr.IsActive)
		})
	}

	parent, err := f.svc.GetByEmail(ctx, "akosua@home.test")
	if assert.NoError(t, err) {
		assert.Equal(t, "akosua@home.test", parent.Name, "name falls back to the email")
	}
}

func TestService_PasswordReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, f.repo, "Kwame", "kwame@skul.test", "Old!Passw0rd", user.RoleStudent, true)
	testutil.CreateUser(t, f.repo, "Esi", "esi@skul.test", "Old!Passw0rd", user.RoleStudent, false)

	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "nobody@skul.test"))
	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "esi@skul.test"))
	assert.Empty(t, f.mailSvc.SentMessages())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "KWAME@skul.test"))
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "kwame@skul.test", sent[0].To[0].Address)

	data, _ := sent[0].TemplateData.(map[string]interface{})
	path, _ := data["Path"].(string)
	parts := strings.Split(strings.TrimPrefix(path, "/password-reset/"), "/")
	require.Len(t, parts, 2)
	uid, token := parts[0], parts[1]
	assert.Equal(t, user.EncodeUID(student), uid)

	isInvalidToken := func(err error) bool {
		var vErr *core.ValidationError
		return errors.As(err, &vErr) && len(vErr.Fields) == 1 && vErr.Fields[0].Field == "token"
	}
	assert.True(t, isInvalidToken(f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: "!!", Token: token, Password: "New!Passw0rd"})))
	assert.True(t, isInvalidToken(f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "bad-token", Password: "New!Passw0rd"})))

	require.NoError(t, f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "New!Passw0rd"}))
	usr, err := f.svc.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("New!Passw0rd"))

	// a token only works once
	assert.True(t, isInvalidToken(f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "Newer!Passw0rd"})))
}
