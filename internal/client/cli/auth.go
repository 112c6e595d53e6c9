package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keyauth/internal/common"
)

// Register creates an account. Username and email may be passed as arguments;
// anything missing is asked for. The password is always read without echo.
func (a *App) Register(ctx context.Context, args []string) error {
	userName, err := textOrPrompt(a.reader, args, 0, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := textOrPrompt(a.reader, args, 1, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Register(ctx, userName, email, string(password)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Registered. You can now login.")
	return nil
}

// Login authenticates and keeps the access token in the API client for the
// rest of the session.
func (a *App) Login(ctx context.Context, args []string) error {
	userName, err := textOrPrompt(a.reader, args, 0, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	resp, err := a.client.Login(ctx, userName, string(password))
	if err != nil {
		return err
	}

	a.userName = resp.Username
	a.admin = resp.IsAdmin
	fmt.Fprintf(a.out, "Logged in as %s\n", resp.Username)
	return nil
}

func (a *App) WhoAmI(ctx context.Context, _ []string) error {
	me, err := a.client.Me(ctx)
	if err != nil {
		return err
	}

	role := "user"
	if me.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s role=%s\n", me.Username, me.Email, me.ID, role)
	return nil
}

// Logout forgets the token locally. Tokens are stateless, so there is no
// server call.
func (a *App) Logout(_ context.Context, _ []string) error {
	a.client.Logout()
	a.userName = ""
	a.admin = false
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
