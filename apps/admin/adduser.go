package main

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/user"
)

func checkAddUserArgs(name, uname, email string) error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(core.CleanString(name), "name"),
		vala.StringNotEmpty(core.CleanString(uname), "username"),
		vala.StringNotEmpty(core.CleanString(email), "email"),
	).Check()
}

// addUser creates an active user after applying the same validations as the API.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           core.CleanStrings(roles),
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s created (%s)\n", usr.Username, usr.ID)
	return nil
}
