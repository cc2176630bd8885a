package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/classroom"
)

type classRepository struct {
	db *DB
}

func NewClassRepository(db *DB) classroom.Repository {
	return &classRepository{db: db}
}

// withCount must be called with the DB lock held.
func (repo *classRepository) withCount(class classroom.Class) classroom.Class {
	class.StudentCount = 0
	for _, e := range repo.db.enrollments {
		if e.ClassID == class.ID {
			class.StudentCount++
		}
	}
	return class
}

func (repo *classRepository) CodeExists(_ context.Context, code string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.classes {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (repo *classRepository) CreateClass(_ context.Context, class classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, c := range repo.db.classes {
		if c.Code == class.Code {
			return classroom.Class{}, classroom.ErrCodeTaken
		}
	}
	class.ID = newID()
	class.StudentCount = 0
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *classRepository) GetClass(_ context.Context, filter classroom.GetFilter) (classroom.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.classes {
		if (filter.ID != "" && c.ID == filter.ID) || (filter.Code != "" && c.Code == filter.Code) {
			return repo.withCount(*c), nil
		}
	}
	return classroom.Class{}, classroom.ErrNotFound
}

func (repo *classRepository) QueryClasses(_ context.Context, filter classroom.QueryFilter) ([]classroom.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrolled map[string]bool
	if filter.StudentIDs != nil {
		enrolled = make(map[string]bool)
		for _, e := range repo.db.enrollments {
			if containsString(filter.StudentIDs, e.StudentID) {
				enrolled[e.ClassID] = true
			}
		}
	}

	classes := make([]classroom.Class, 0)
	for _, c := range repo.db.classes {
		if filter.IDs != nil && !containsString(filter.IDs, c.ID) {
			continue
		}
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if enrolled != nil && !enrolled[c.ID] {
			continue
		}
		classes = append(classes, repo.withCount(*c))
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].CreatedAt.After(classes[j].CreatedAt) })
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, class classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.classes[class.ID]
	if !ok {
		return classroom.Class{}, classroom.ErrNotFound
	}
	orig.Name = class.Name
	orig.Description = class.Description
	orig.UpdatedAt = class.UpdatedAt
	return repo.withCount(*orig), nil
}

func (repo *classRepository) CreateEnrollment(_ context.Context, enrollment classroom.Enrollment) (classroom.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.enrollments {
		if e.ClassID == enrollment.ClassID && e.StudentID == enrollment.StudentID {
			return classroom.Enrollment{}, classroom.ErrAlreadyExists
		}
	}
	enrollment.ID = newID()
	repo.db.enrollments[enrollment.ID] = &enrollment
	return enrollment, nil
}

func (repo *classRepository) GetEnrollment(_ context.Context, classID, studentID string) (classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			return *e, nil
		}
	}
	return classroom.Enrollment{}, classroom.ErrNotEnrolled
}

func (repo *classRepository) QueryEnrollments(_ context.Context, filter classroom.EnrollmentFilter) ([]classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]classroom.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.ClassIDs != nil && !containsString(filter.ClassIDs, e.ClassID) {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.StudentIDs != nil && !containsString(filter.StudentIDs, e.StudentID) {
			continue
		}
		enrollments = append(enrollments, *e)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *classRepository) DeleteEnrollment(_ context.Context, classID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			delete(repo.db.enrollments, id)
			return nil
		}
	}
	return classroom.ErrNotEnrolled
}
