package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/keyauth/internal/client/client"
	"github.com/dmitrijs2005/keyauth/internal/common"
)

// printlnFn and printFn are test seams for user-facing output. In tests,
// replace them with a stub.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

type command func(ctx context.Context, args []string) error

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	isAdmin() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	WhoAmI(ctx context.Context, args []string) error
	Activate(ctx context.Context, args []string) error
	Validate(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	HWID(ctx context.Context, args []string) error
	Generate(ctx context.Context, args []string) error
	Licenses(ctx context.Context, args []string) error
	Users(ctx context.Context, args []string) error
	Revoke(ctx context.Context, args []string) error
	Extend(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the KeyAuth CLI.
//
// It reads a line from reader, parses the first token as the command and
// passes the remaining tokens to the matching method on a. The loop exits on
// EOF or when the user types "exit" or "quit".
//
// Commands that need a session are refused locally while logged out. Admin
// commands are always sent; the server decides whether the caller may run
// them. Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	commands := map[string]command{
		"register": a.Register,
		"login":    a.Login,
		"whoami":   a.WhoAmI,
		"activate": a.Activate,
		"validate": a.Validate,
		"status":   a.Status,
		"hwid":     a.HWID,
		"generate": a.Generate,
		"licenses": a.Licenses,
		"users":    a.Users,
		"revoke":   a.Revoke,
		"extend":   a.Extend,
		"export":   a.Export,
		"logout":   a.Logout,
	}
	public := map[string]bool{"register": true, "login": true, "hwid": true}

	for {
		if s := statusFn(); s != "" {
			printFn(fmt.Sprintf("keyauth %s> ", s))
		} else {
			printFn("keyauth> ")
		}

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText(a))
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		run, ok := commands[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if !public[cmd] && !a.isLoggedIn() {
			printlnFn("Please login first")
			continue
		}
		if err := run(ctx, args); err != nil && !errors.Is(err, errUsage) {
			printlnFn(describeError(err))
		}
	}
}

func helpText(a execIface) string {
	switch {
	case a.isAdmin():
		return "Available commands: whoami, activate, validate, status, hwid, generate, licenses, users, revoke, extend, export, logout, exit"
	case a.isLoggedIn():
		return "Available commands: whoami, activate, validate, status, hwid, logout, exit"
	default:
		return "Available commands: register, login, hwid, exit"
	}
}

// describeError turns client errors into a single line for the user.
func describeError(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable, try again later"
	case errors.Is(err, client.ErrNotLoggedIn):
		return "Please login first"
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return "Error: " + apiErr.Message
	case errors.Is(err, common.ErrorForbidden):
		return "Error: permission denied"
	default:
		return "Error: " + err.Error()
	}
}
