package echoapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func Test_familyApi_linkChild(t *testing.T) {
	resetDB()
	parent := testutil.CreateUser(t, usrRepo, "Efua", "efua@skul.test", strongPwd, user.RoleParent, true)
	student := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", strongPwd, user.RoleStudent, true)
	token := getToken(t, parent)

	link := func(code string) []byte {
		return []byte(fmt.Sprintf(`{"student_code": %q}`, code))
	}

	runHTTPTests(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/api/parent/link-child", body: link(student.StudentCode), wantCode: http.StatusUnauthorized},
		{
			name: "parents only", method: http.MethodPost, path: "/api/parent/link-child", token: getToken(t, student),
			body: link(student.StudentCode), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "code required", method: http.MethodPost, path: "/api/parent/link-child", token: token,
			body: link(" "), wantCode: http.StatusBadRequest, wantData: []byte(`{"student_code": "student_code is a required field"}`),
		},
		{
			name: "unknown code", method: http.MethodPost, path: "/api/parent/link-child", token: token,
			body: link("ZZZZZZZZ"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Invalid student code"}),
		},
		{name: "no children yet", path: "/api/parent/children", token: token, wantData: marchallList(t)},
		{
			name: "link (code is case insensitive)", method: http.MethodPost, path: "/api/parent/link-child", token: token,
			body: link(" " + strings.ToLower(student.StudentCode) + " "), wantData: marchallObj(t, student.Public()),
		},
		{
			name: "linking twice is a no-op", method: http.MethodPost, path: "/api/parent/link-child", token: token,
			body: link(student.StudentCode), wantData: marchallObj(t, student.Public()),
		},
		{name: "children", path: "/api/parent/children", token: token, wantData: marchallList(t, student.Public())},
	})
}

func Test_familyApi_overview(t *testing.T) {
	resetDB()
	teacher := testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", strongPwd, user.RoleTeacher, true)
	parent := testutil.CreateUser(t, usrRepo, "Efua", "efua@skul.test", strongPwd, user.RoleParent, true)
	otherParent := testutil.CreateUser(t, usrRepo, "Kojo", "kojo@skul.test", strongPwd, user.RoleParent, true)
	child := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", strongPwd, user.RoleStudent, true)
	class := testutil.CreateClass(t, classRepo, teacher, "Reading 101", "READ2025")
	testutil.Enroll(t, classRepo, class, child)
	testutil.LinkChild(t, familyRepo, parent, child)

	rec := do(http.MethodPost, "/api/assignments", getToken(t, teacher),
		[]byte(fmt.Sprintf(`{"class_id": %q, "title": "Chapter 1", "due_date": "2099-03-01T23:59:00Z"}`, class.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(http.MethodPost, "/api/reading-progress", getToken(t, child), []byte(`{"book": {"title": "The Hobbit"}, "status": "wishlist"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	path := fmt.Sprintf("/api/parent/children/%s/overview", child.ID)
	runHTTPTests(t, []httpTest{
		{
			name: "not their child", path: path, token: getToken(t, otherParent),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "child not found"}),
		},
		{name: "teachers cannot", path: path, token: getToken(t, teacher), wantCode: http.StatusForbidden},
	})

	rec = do(http.MethodGet, path, getToken(t, parent))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var overview ChildOverview
	unmarshal(t, rec, &overview)

	assert.Equal(t, child.ID, overview.Child.ID)
	assert.Empty(t, overview.Child.StudentCode)
	if assert.Len(t, overview.Classes, 1) {
		assert.Equal(t, class.ID, overview.Classes[0].ID)
	}
	if assert.Len(t, overview.Assignments, 1) {
		assert.Equal(t, "Chapter 1", overview.Assignments[0].Title)
		assert.Equal(t, "not-started", overview.Assignments[0].Status)
	}
	assert.Empty(t, overview.Submissions)
	if assert.Len(t, overview.ReadingProgress, 1) {
		assert.Equal(t, "wishlist", overview.ReadingProgress[0].Status)
	}
}
