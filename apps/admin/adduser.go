package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addUser updates or creates an active user.User. The password policy applies.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:     core.CleanString(name),
		Email:    core.CleanString(email, true /* lower */),
		Password: pwd,
		Role:     core.CleanString(role, true /* lower */),
	}
	if err := cli.validate.Struct(nu); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: nu.Email})
	switch {
	case err == nil:
		usr.Name = nu.Name
		usr.Role = nu.Role
	case errors.Cause(err) == user.ErrNotFound:
		usr = user.User{Name: nu.Name, Email: nu.Email, Role: nu.Role, CreatedAt: now}
	default:
		return errors.Wrap(err, "finding user")
	}

	if usr.IsStudent() && usr.StudentCode == "" {
		if usr.StudentCode, err = core.GenerateUniqueCode(ctx, cli.codeLen, cli.usrRepo.StudentCodeExists); err != nil {
			return errors.Wrap(err, "generating student code")
		}
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(nu.Password); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
