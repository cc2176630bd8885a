package family_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

type fixture struct {
	svc family.Service

	mum, dad, teacher, kwame, esi user.User
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf, logsvc.NewNopLogger()), conf)

	f := &fixture{svc: family.NewService(inmemdb.NewFamilyRepository(db), usrSvc)}
	f.mum = testutil.CreateUser(t, usrRepo, "Akosua", "akosua@home.test", "", user.RoleParent, true)
	f.dad = testutil.CreateUser(t, usrRepo, "Kojo", "kojo@home.test", "", user.RoleParent, true)
	f.teacher = testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", "", user.RoleTeacher, true)
	f.kwame = testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", "", user.RoleStudent, true)
	f.esi = testutil.CreateUser(t, usrRepo, "Esi", "esi@skul.test", "", user.RoleStudent, true)
	return f
}

func TestService_LinkChild(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		parent  user.User
		code    string
		wantErr error
	}{
		{name: "not a parent", parent: f.teacher, code: f.kwame.StudentCode, wantErr: core.ErrPermissionDenied},
		{name: "blank code", parent: f.mum, code: "  ", wantErr: family.ErrInvalidStudentCode},
		{name: "unknown code", parent: f.mum, code: "NOPE0000", wantErr: family.ErrInvalidStudentCode},
		{name: "linked", parent: f.mum, code: " " + strings.ToLower(f.kwame.StudentCode) + " "},
		{name: "linked twice", parent: f.mum, code: f.kwame.StudentCode},
		{name: "sibling", parent: f.mum, code: f.esi.StudentCode},
		{name: "other parent", parent: f.dad, code: f.kwame.StudentCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child, err := f.svc.LinkChild(ctx, tt.parent, tt.code)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			if assert.NoError(t, err) {
				assert.NotEmpty(t, child.ID)
				assert.Empty(t, child.StudentCode)
			}
		})
	}

	children, err := f.svc.Children(ctx, f.mum.ID)
	if assert.NoError(t, err) {
		assert.Len(t, children, 2)
	}
	ids, err := f.svc.ChildIDs(ctx, f.dad.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, []string{f.kwame.ID}, ids)
	}
	none, err := f.svc.Children(ctx, f.teacher.ID)
	if assert.NoError(t, err) {
		assert.Empty(t, none)
	}
}

func TestService_Child(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.LinkChild(ctx, f.mum, f.kwame.StudentCode)
	require.NoError(t, err)

	ok, err := f.svc.IsParentOf(ctx, f.mum.ID, f.kwame.ID)
	if assert.NoError(t, err) {
		assert.True(t, ok)
	}
	ok, err = f.svc.IsParentOf(ctx, f.dad.ID, f.kwame.ID)
	if assert.NoError(t, err) {
		assert.False(t, ok)
	}

	child, err := f.svc.Child(ctx, f.mum, f.kwame.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, f.kwame.ID, child.ID)
		assert.Empty(t, child.StudentCode)
	}

	_, err = f.svc.Child(ctx, f.mum, f.esi.ID)
	assert.Equal(t, family.ErrNotFound, err)
	_, err = f.svc.Child(ctx, f.dad, f.kwame.ID)
	assert.Equal(t, family.ErrNotFound, err)
	_, err = f.svc.Child(ctx, f.teacher, f.kwame.ID)
	assert.Equal(t, core.ErrPermissionDenied, err)
}
