package echoapi

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/user"
)

// scope resolves which classes a user may see:
// teachers their own, students the ones they are enrolled in, parents their children's.
type scope struct {
	classSvc  classroom.Service
	familySvc family.Service
}

func (s *scope) classes(ctx context.Context, usr user.User) ([]classroom.Class, error) {
	switch usr.Role {
	case user.RoleTeacher:
		return s.classSvc.ListForTeacher(ctx, usr.ID)
	case user.RoleStudent:
		return s.classSvc.ListForStudents(ctx, usr.ID)
	case user.RoleParent:
		childIDs, err := s.familySvc.ChildIDs(ctx, usr.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying children")
		}
		if len(childIDs) == 0 {
			return []classroom.Class{}, nil
		}
		return s.classSvc.ListForStudents(ctx, childIDs...)
	}
	return []classroom.Class{}, nil
}

func (s *scope) classIDs(ctx context.Context, usr user.User) ([]string, error) {
	classes, err := s.classes(ctx, usr)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// visibleClass returns the class having `id` if usr may see it, classroom.ErrNotFound otherwise.
func (s *scope) visibleClass(ctx context.Context, usr user.User, id string) (classroom.Class, error) {
	class, err := s.classSvc.Get(ctx, id)
	if err != nil {
		return classroom.Class{}, err
	}

	var visible bool
	switch usr.Role {
	case user.RoleTeacher:
		visible = class.TeacherID == usr.ID
	case user.RoleStudent:
		if visible, err = s.classSvc.IsEnrolled(ctx, class.ID, usr.ID); err != nil {
			return classroom.Class{}, errors.Wrap(err, "checking enrollment")
		}
	case user.RoleParent:
		childIDs, err := s.familySvc.ChildIDs(ctx, usr.ID)
		if err != nil {
			return classroom.Class{}, errors.Wrap(err, "querying children")
		}
		for _, childID := range childIDs {
			enrolled, err := s.classSvc.IsEnrolled(ctx, class.ID, childID)
			if err != nil {
				return classroom.Class{}, errors.Wrap(err, "checking enrollment")
			}
			if enrolled {
				visible = true
				break
			}
		}
	}
	if !visible {
		return classroom.Class{}, classroom.ErrNotFound
	}
	return class, nil
}

// child returns usr when they are a student, or the linked child `childID` when they are a parent.
func (s *scope) child(ctx context.Context, usr user.User, childID string) (user.User, error) {
	switch {
	case usr.IsStudent() && (childID == "" || childID == usr.ID):
		return usr, nil
	case usr.IsParent() && childID != "":
		return s.familySvc.Child(ctx, usr, childID)
	case usr.IsParent():
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "child_id", Error: "this field is required"})
	}
	return user.User{}, core.ErrPermissionDenied
}
