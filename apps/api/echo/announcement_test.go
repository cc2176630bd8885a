package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func Test_announcementApi(t *testing.T) {
	resetDB()

	teacher := testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", strongPwd, user.RoleTeacher, true)
	otherTeacher := testutil.CreateUser(t, usrRepo, "Kofi", "kofi@skul.test", strongPwd, user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", strongPwd, user.RoleStudent, true)
	outsider := testutil.CreateUser(t, usrRepo, "Yaw", "yaw@skul.test", strongPwd, user.RoleStudent, true)
	parent := testutil.CreateUser(t, usrRepo, "Efua", "efua@skul.test", strongPwd, user.RoleParent, true)
	class := testutil.CreateClass(t, classRepo, teacher, "Reading 101", "READ2025")
	testutil.Enroll(t, classRepo, class, student)
	testutil.LinkChild(t, familyRepo, parent, student)

	body := func(classID, title, content string) []byte {
		return marchallObj(t, announcement.NewAnnouncement{ClassID: classID, Title: title, Content: content})
	}

	runHTTPTests(t, []httpTest{
		{
			name: "teachers only", method: http.MethodPost, path: "/api/announcements", token: getToken(t, student),
			body: body(class.ID, "", "Hi"), wantCode: http.StatusForbidden,
		},
		{
			name: "not the class owner", method: http.MethodPost, path: "/api/announcements", token: getToken(t, otherTeacher),
			body: body(class.ID, "", "Hi"), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown class", method: http.MethodPost, path: "/api/announcements", token: getToken(t, teacher),
			body: body("lol", "", "Hi"), wantCode: http.StatusBadRequest, wantData: []byte(`{"class_id": "class not found"}`),
		},
		{
			name: "content required", method: http.MethodPost, path: "/api/announcements", token: getToken(t, teacher),
			body: body(class.ID, "Title", ""), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"content": "content is a required field"}`),
		},
	})

	rec := do(http.MethodPost, "/api/announcements", getToken(t, teacher), body(class.ID, "", "Bring your books tomorrow"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg announcement.Message
	unmarshal(t, rec, &msg)
	assert.Equal(t, announcement.TypeAnnouncement, msg.Type)
	assert.Equal(t, class.ID, msg.ClassID)
	assert.Empty(t, msg.Title)

	direct, err := msgRepo.CreateMessage(context.Background(), announcement.Message{
		SenderID:    teacher.ID,
		RecipientID: student.ID,
		Title:       "Assignment graded",
		Content:     "Well done",
		Type:        announcement.TypeNotification,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	runHTTPTests(t, []httpTest{
		{name: "teacher feed", path: "/api/announcements", token: getToken(t, teacher), wantData: marchallList(t, msg)},
		{name: "student feed", path: "/api/announcements", token: getToken(t, student), wantData: marchallList(t, direct, msg)},
		{name: "parent feed", path: "/api/announcements", token: getToken(t, parent), wantData: marchallList(t, msg)},
		{name: "outsider feed", path: "/api/announcements", token: getToken(t, outsider), wantData: marchallList(t)},
		{name: "class", path: "/api/announcements/class/" + class.ID, token: getToken(t, student), wantData: marchallList(t, msg)},
		{name: "class (outsider)", path: "/api/announcements/class/" + class.ID, token: getToken(t, outsider), wantCode: http.StatusNotFound},
		{name: "notifications", path: "/api/notifications", token: getToken(t, student), wantData: marchallList(t, direct)},
		{
			name: "class announcements are not per recipient", method: http.MethodPut,
			path: fmt.Sprintf("/api/announcements/%s/read", msg.ID), token: getToken(t, student),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "only direct messages can be marked as read"}),
		},
		{
			name: "someone else's message", method: http.MethodPut,
			path: fmt.Sprintf("/api/announcements/%s/read", direct.ID), token: getToken(t, outsider),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "announcement not found"}),
		},
	})

	t.Run("mark read", func(t *testing.T) {
		rec := do(http.MethodPut, "/api/announcements/"+direct.ID+"/read", getToken(t, student))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var read announcement.Message
		unmarshal(t, rec, &read)
		assert.True(t, read.Read)

		direct.Read = true
		runHTTPTests(t, []httpTest{
			{name: "unread only", path: "/api/notifications", token: getToken(t, student), wantData: marchallList(t)},
			{name: "all", path: "/api/notifications?all=true", token: getToken(t, student), wantData: marchallList(t, direct)},
		})
	})
}
