package family

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("child not found")
	ErrInvalidStudentCode = core.NewNotFoundError("Invalid student code")
	ErrAlreadyLinked      = errors.New("child already linked")
)

type (
	Repository interface {
		// CreateLink returns ErrAlreadyLinked if the parent is already linked to the child.
		CreateLink(ctx context.Context, link Link) (Link, error)
		QueryLinks(ctx context.Context, filter LinkFilter) ([]Link, error)
	}

	Service interface {
		// LinkChild links parent to the student having `code`. Linking twice is a no-op.
		LinkChild(ctx context.Context, parent user.User, code string) (user.User, error)
		Children(ctx context.Context, parentID string) ([]user.User, error)
		ChildIDs(ctx context.Context, parentID string) ([]string, error)
		IsParentOf(ctx context.Context, parentID, childID string) (bool, error)
		// Child returns the linked child of parent, or ErrNotFound.
		Child(ctx context.Context, parent user.User, childID string) (user.User, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrSvc, "usrSvc"),
	).CheckAndPanic()

	return &service{repo: repo, usrSvc: usrSvc}
}

func (svc *service) LinkChild(ctx context.Context, parent user.User, code string) (user.User, error) {
	if !parent.IsParent() {
		return user.User{}, core.ErrPermissionDenied
	}
	child, err := svc.usrSvc.GetByStudentCode(ctx, code)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, ErrInvalidStudentCode
		}
		return user.User{}, errors.Wrap(err, "finding student by code")
	}

	_, err = svc.repo.CreateLink(ctx, Link{ParentID: parent.ID, ChildID: child.ID, CreatedAt: time.Now().UTC()})
	if err != nil && errors.Cause(err) != ErrAlreadyLinked {
		return user.User{}, errors.Wrap(err, "linking child")
	}
	return child.Public(), nil
}

func (svc *service) ChildIDs(ctx context.Context, parentID string) ([]string, error) {
	links, err := svc.repo.QueryLinks(ctx, LinkFilter{ParentID: parentID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ChildID)
	}
	return ids, nil
}

func (svc *service) Children(ctx context.Context, parentID string) ([]user.User, error) {
	ids, err := svc.ChildIDs(ctx, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying links")
	}
	children, err := svc.usrSvc.Query(ctx, user.QueryFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	for i := range children {
		children[i] = children[i].Public()
	}
	return children, nil
}

func (svc *service) IsParentOf(ctx context.Context, parentID, childID string) (bool, error) {
	links, err := svc.repo.QueryLinks(ctx, LinkFilter{ParentID: parentID, ChildID: childID})
	if err != nil {
		return false, err
	}
	return len(links) > 0, nil
}

func (svc *service) Child(ctx context.Context, parent user.User, childID string) (user.User, error) {
	if !parent.IsParent() {
		return user.User{}, core.ErrPermissionDenied
	}
	ok, err := svc.IsParentOf(ctx, parent.ID, childID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "checking link")
	}
	if !ok {
		return user.User{}, ErrNotFound
	}
	child, err := svc.usrSvc.GetByID(ctx, childID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding child")
	}
	return child.Public(), nil
}
