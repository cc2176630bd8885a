// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/family"
	"github.com/trezcool/darasa/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if role == user.RoleStudent {
		code, err := core.GenerateCode(core.DefaultCodeLen)
		if err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
		usr.StudentCode = code
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo classroom.Repository, teacher user.User, name, code string, createdAt ...time.Time) classroom.Class {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	class, err := repo.CreateClass(context.Background(), classroom.Class{
		Name:      name,
		Code:      code,
		TeacherID: teacher.ID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func Enroll(t *testing.T, repo classroom.Repository, class classroom.Class, students ...user.User) {
	for _, student := range students {
		_, err := repo.CreateEnrollment(context.Background(), classroom.Enrollment{
			ClassID:    class.ID,
			StudentID:  student.ID,
			EnrolledAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
	}
}

func LinkChild(t *testing.T, repo family.Repository, parent, child user.User) {
	_, err := repo.CreateLink(context.Background(), family.Link{
		ParentID:  parent.ID,
		ChildID:   child.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("LinkChild() failed: %v", err)
	}
}
