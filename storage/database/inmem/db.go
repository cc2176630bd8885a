// Package inmemdb implements the repositories on top of in-memory maps.
// It is used by tests and for running the API without a database.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/library"
	"github.com/trezcool/darasa/core/livesession"
	"github.com/trezcool/darasa/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	classes     map[string]*classroom.Class
	enrollments map[string]*classroom.Enrollment
	assignments map[string]*coursework.Assignment
	submissions map[string]*coursework.Submission
	books       map[string]*library.Book
	progress    map[string]*library.ReadingProgress
	messages    map[string]*announcement.Message
	links       map[string]*family.Link
	sessions    map[string]*livesession.Session
}

func NewDB() *DB {
	db := new(DB)
	db.Reset()
	return db
}

// Reset drops all the data.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.users = make(map[string]*user.User)
	db.classes = make(map[string]*classroom.Class)
	db.enrollments = make(map[string]*classroom.Enrollment)
	db.assignments = make(map[string]*coursework.Assignment)
	db.submissions = make(map[string]*coursework.Submission)
	db.books = make(map[string]*library.Book)
	db.progress = make(map[string]*library.ReadingProgress)
	db.messages = make(map[string]*announcement.Message)
	db.links = make(map[string]*family.Link)
	db.sessions = make(map[string]*livesession.Session)
}

func newID() string {
	return uuid.New().String()
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
