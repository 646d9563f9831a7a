package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
)

var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getLines      = GetLines
)

var errPasswordMismatch = errors.New("passwords do not match")

// Register creates an account on the server. The password is asked twice.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		fmt.Fprintln(a.out, "Passwords do not match.")
		return errPasswordMismatch
	}

	if err := a.auth.Register(ctx, userName, password); err != nil {
		fmt.Fprintln(a.out, "Registration failed:", err)
		return err
	}

	fmt.Fprintln(a.out, "Success! You can log in now.")
	return nil
}

// Login authenticates online. There is no offline login: local data stays
// usable without a session and only sync needs one.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, userName, password); err != nil {
		switch {
		case client.IsRetryable(err):
			fmt.Fprintln(a.out, "Server unavailable, you can keep working offline.")
			a.setMode(ctx, ModeOffline)
		case errors.Is(err, client.ErrUnauthorized):
			fmt.Fprintln(a.out, "Wrong username or password.")
		default:
			fmt.Fprintln(a.out, "Login unsuccessful:", err)
		}
		return err
	}

	a.userName = userName
	a.setMode(ctx, ModeOnline)
	fmt.Fprintln(a.out, "Login successful")

	if a.sync != nil {
		a.sync.RequestSync(ctx)
	}
	return nil
}

// Logout drops the session. Unsynced local changes are kept and will be
// uploaded after the next login.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
