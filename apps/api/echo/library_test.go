package echoapi_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/library"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func Test_libraryApi_search(t *testing.T) {
	resetDB()
	student := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", strongPwd, user.RoleStudent, true)
	token := getToken(t, student)

	hobbit := library.CatalogResult{ExternalKey: "/works/OL262758W", Title: "The Hobbit", Author: "J.R.R. Tolkien", Pages: 310}
	lotr := library.CatalogResult{ExternalKey: "/works/OL27448W", Title: "The Lord of the Rings", Author: "J.R.R. Tolkien"}
	catalog.results = []library.CatalogResult{hobbit, lotr}
	catalog.queries = nil
	defer func() { catalog.results, catalog.err = nil, nil }()

	runHTTPTests(t, []httpTest{
		{name: "no token", path: "/api/books/search?q=tolkien", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "query required", path: "/api/books/search", token: token,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"q": "q is a required field"}`),
		},
		{name: "search", path: "/api/books/search?q=%20tolkien%20", token: token, wantData: marchallList(t, hobbit, lotr)},
		{name: "limit", path: "/api/books/search?q=tolkien&limit=1", token: token, wantData: marchallList(t, hobbit)},
	})
	assert.Equal(t, []string{"tolkien", "tolkien"}, catalog.queries)

	catalog.err = errors.New("dial tcp: i/o timeout")
	runHTTPTests(t, []httpTest{
		{
			name: "catalog down", path: "/api/books/search?q=tolkien", token: token,
			wantCode: http.StatusBadGateway, wantData: marchallObj(t, httpErr{Error: "book catalog unavailable"}),
		},
	})
}

func Test_libraryApi_books(t *testing.T) {
	resetDB()
	teacher := testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", strongPwd, user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", strongPwd, user.RoleStudent, true)

	nb := library.NewBook{Title: " Anansi and the Pot of Wisdom ", Author: "Traditional", Genre: "Folktale", Pages: 32}

	runHTTPTests(t, []httpTest{
		{
			name: "teachers only", method: http.MethodPost, path: "/api/books", token: getToken(t, student),
			body: marchallObj(t, nb), wantCode: http.StatusForbidden,
		},
		{
			name: "title required", method: http.MethodPost, path: "/api/books", token: getToken(t, teacher),
			body: []byte(`{"title": "  "}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"title": "title is a required field"}`),
		},
		{
			name: "invalid cover", method: http.MethodPost, path: "/api/books", token: getToken(t, teacher),
			body: []byte(`{"title": "Anansi", "cover_url": "not a url"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"cover_url": "cover_url must be a valid URL"}`),
		},
	})

	rec := do(http.MethodPost, "/api/books", getToken(t, teacher), marchallObj(t, nb))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book library.Book
	unmarshal(t, rec, &book)
	assert.Equal(t, "Anansi and the Pot of Wisdom", book.Title)
	assert.Equal(t, teacher.ID, book.CreatedBy)

	runHTTPTests(t, []httpTest{
		{name: "list", path: "/api/books", token: getToken(t, student), wantData: marchallList(t, book)},
		{name: "search by title", path: "/api/books?q=anansi", token: getToken(t, student), wantData: marchallList(t, book)},
		{name: "search by author", path: "/api/books?q=TRADITION", token: getToken(t, student), wantData: marchallList(t, book)},
		{name: "no match", path: "/api/books?q=hobbit", token: getToken(t, student), wantData: marchallList(t)},
		{name: "retrieve", path: "/api/books/" + book.ID, token: getToken(t, student), wantData: marchallObj(t, book)},
		{
			name: "not found", path: "/api/books/lol", token: getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "book not found"}),
		},
	})
}

func Test_libraryApi_readingProgress(t *testing.T) {
	resetDB()
	teacher := testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", strongPwd, user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", strongPwd, user.RoleStudent, true)
	other := testutil.CreateUser(t, usrRepo, "Esi", "esi@skul.test", strongPwd, user.RoleStudent, true)
	parent := testutil.CreateUser(t, usrRepo, "Efua", "efua@skul.test", strongPwd, user.RoleParent, true)
	testutil.LinkChild(t, familyRepo, parent, student)

	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	library.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { library.NowFunc = time.Now })

	token := getToken(t, student)
	hobbit := []byte(`{"book": {"title": "The Hobbit", "author": "J.R.R. Tolkien", "pages": 310, "external_key": "/works/OL262758W"}}`)

	runHTTPTests(t, []httpTest{
		{
			name: "book or book_id required", method: http.MethodPost, path: "/api/reading-progress", token: token,
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown book", method: http.MethodPost, path: "/api/reading-progress", token: token,
			body: []byte(`{"book_id": "lol"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"book_id": "book not found"}`),
		},
		{
			name: "invalid status", method: http.MethodPost, path: "/api/reading-progress", token: token,
			body: []byte(`{"book_id": "lol", "status": "abandoned"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"status": "status must be one of [wishlist reading completed]"}`),
		},
	})

	var progress library.ReadingProgress
	t.Run("add catalog book", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/reading-progress", token, hobbit)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &progress)
		assert.Equal(t, student.ID, progress.UserID)
		assert.Equal(t, library.StatusReading, progress.Status)
		assert.Zero(t, progress.Progress)
		assert.Nil(t, progress.CompletedAt)
		if assert.NotNil(t, progress.Book) {
			assert.Equal(t, "/works/OL262758W", progress.Book.ExternalKey)
		}
	})

	t.Run("adding twice returns the same entry", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/reading-progress", token, hobbit)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var again library.ReadingProgress
		unmarshal(t, rec, &again)
		assert.Equal(t, progress.ID, again.ID)
	})

	t.Run("catalog books are shared", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/reading-progress", getToken(t, other), hobbit)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var others library.ReadingProgress
		unmarshal(t, rec, &others)
		assert.Equal(t, progress.BookID, others.BookID)
		assert.NotEqual(t, progress.ID, others.ID)
	})

	runHTTPTests(t, []httpTest{
		{
			name: "progress out of range", method: http.MethodPut, path: "/api/reading-progress/" + progress.ID, token: token,
			body: []byte(`{"progress": 101}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "someone else's entry", method: http.MethodPut, path: "/api/reading-progress/" + progress.ID,
			token: getToken(t, other), body: []byte(`{"progress": 10}`), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "reading progress not found"}),
		},
	})

	t.Run("finish the book", func(t *testing.T) {
		rec := do(http.MethodPut, "/api/reading-progress/"+progress.ID, token, []byte(`{"progress": 40}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &progress)
		assert.Equal(t, 40, progress.Progress)
		assert.Equal(t, library.StatusReading, progress.Status)

		rec = do(http.MethodPut, "/api/reading-progress/"+progress.ID, token, []byte(`{"progress": 100}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &progress)
		assert.Equal(t, library.StatusCompleted, progress.Status)
		if assert.NotNil(t, progress.CompletedAt) {
			assert.True(t, now.Equal(*progress.CompletedAt))
		}
	})

	t.Run("list", func(t *testing.T) {
		for _, tc := range []struct {
			name  string
			token string
			path  string
		}{
			{name: "student", token: token, path: "/api/reading-progress"},
			{name: "parent", token: getToken(t, parent), path: "/api/reading-progress?child_id=" + student.ID},
		} {
			rec := do(http.MethodGet, tc.path, tc.token)
			require.Equal(t, http.StatusOK, rec.Code, tc.name)
			var list []library.ReadingProgress
			unmarshal(t, rec, &list)
			if assert.Len(t, list, 1, tc.name) {
				assert.Equal(t, progress.ID, list[0].ID)
				assert.Equal(t, 100, list[0].Progress)
			}
		}

		runHTTPTests(t, []httpTest{
			{
				name: "parent without child_id", path: "/api/reading-progress", token: getToken(t, parent),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"child_id": "this field is required"}`),
			},
			{
				name: "not the parent's child", path: "/api/reading-progress?child_id=" + other.ID, token: getToken(t, parent),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "child not found"}),
			},
			{name: "teacher", path: "/api/reading-progress", token: getToken(t, teacher), wantData: marchallList(t)},
		})
	})

	runHTTPTests(t, []httpTest{
		{name: "remove someone else's", method: http.MethodDelete, path: "/api/reading-progress/" + progress.ID, token: getToken(t, other), wantCode: http.StatusNotFound},
		{name: "remove", method: http.MethodDelete, path: "/api/reading-progress/" + progress.ID, token: token, wantCode: http.StatusNoContent},
		{name: "removed", path: "/api/reading-progress", token: token, wantData: marchallList(t)},
	})
}
