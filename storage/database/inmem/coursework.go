package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
)

type courseworkRepository struct {
	db *DB
}

func NewCourseworkRepository(db *DB) coursework.Repository {
	return &courseworkRepository{db: db}
}

func (repo *courseworkRepository) CreateAssignment(_ context.Context, a coursework.Assignment) (coursework.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = newID()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *courseworkRepository) GetAssignment(_ context.Context, id string) (coursework.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return coursework.Assignment{}, coursework.ErrNotFound
}

func (repo *courseworkRepository) QueryAssignments(_ context.Context, filter coursework.AssignmentFilter, ordering []core.DBOrdering) ([]coursework.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]coursework.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.ClassIDs != nil && !containsString(filter.ClassIDs, a.ClassID) {
			continue
		}
		if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
			continue
		}
		assignments = append(assignments, *a)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "due_date", Ascending: true}}
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := assignments[i], assignments[j]
			if !ord.Ascending {
				a, b = b, a
			}
			switch ord.Field {
			case "due_date":
				if !a.DueDate.Equal(b.DueDate) {
					return a.DueDate.Before(b.DueDate)
				}
			case "created_at":
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.Before(b.CreatedAt)
				}
			case "title":
				if a.Title != b.Title {
					return a.Title < b.Title
				}
			}
		}
		return false
	})
	return assignments, nil
}

func (repo *courseworkRepository) GetSubmission(_ context.Context, filter coursework.SubmissionFilter) (coursework.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if sub, ok := repo.db.submissions[filter.ID]; ok {
			return *sub, nil
		}
		return coursework.Submission{}, coursework.ErrSubmissionNotFound
	}
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == filter.AssignmentID && sub.StudentID == filter.StudentID {
			return *sub, nil
		}
	}
	return coursework.Submission{}, coursework.ErrSubmissionNotFound
}

func (repo *courseworkRepository) QuerySubmissions(_ context.Context, filter coursework.SubmissionFilter) ([]coursework.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]coursework.Submission, 0)
	for _, sub := range repo.db.submissions {
		if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.AssignmentIDs != nil && !containsString(filter.AssignmentIDs, sub.AssignmentID) {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		if filter.StudentIDs != nil && !containsString(filter.StudentIDs, sub.StudentID) {
			continue
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UpdatedAt.After(subs[j].UpdatedAt) })
	return subs, nil
}

func (repo *courseworkRepository) UpsertSubmission(_ context.Context, sub coursework.Submission) (coursework.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			if existing.Status == coursework.StatusGraded && sub.Status != coursework.StatusGraded {
				return coursework.Submission{}, coursework.ErrAlreadyGraded
			}
			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
			break
		}
	}
	if sub.ID == "" {
		sub.ID = newID()
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}
