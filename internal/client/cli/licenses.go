package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keyauth/internal/hwid"
)

var errUsage = errors.New("wrong arguments")

// machineID returns the hwid given on the command line, or probes this
// machine. A fallback fingerprint is announced since it is less stable.
func (a *App) machineID(ctx context.Context, args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	fp := a.probe(ctx)
	if fp.Source == hwid.SourceFallback {
		fmt.Fprintf(a.out, "Warning: no hardware UUID found, using fallback id %s\n", fp.Value)
	}
	return fp.Value
}

// Activate binds a license key to the current user and machine.
// Usage: activate <key> [hwid]
func (a *App) Activate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: activate <key> [hwid]")
		return errUsage
	}

	resp, err := a.client.Activate(ctx, args[0], a.machineID(ctx, args, 1))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (type %s, expires %s)\n", resp.Message, resp.Type, formatExpiry(resp.ExpiresAt))
	return nil
}

// Validate asks whether a key is usable on this machine.
// Usage: validate <key> [hwid]
func (a *App) Validate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: validate <key> [hwid]")
		return errUsage
	}

	resp, err := a.client.Validate(ctx, args[0], a.machineID(ctx, args, 1))
	if err != nil {
		return err
	}

	if resp.Valid {
		fmt.Fprintf(a.out, "Valid: type %s, expires %s\n", resp.Type, formatExpiry(resp.ExpiresAt))
		return nil
	}
	fmt.Fprintf(a.out, "Not valid (%s): %s\n", resp.Reason, resp.Message)
	return nil
}

func (a *App) Status(ctx context.Context, _ []string) error {
	resp, err := a.client.Status(ctx)
	if err != nil {
		return err
	}
	if len(resp.Licenses) == 0 {
		fmt.Fprintln(a.out, "No licenses")
		return nil
	}

	rows := make([][]string, 0, len(resp.Licenses))
	for _, l := range resp.Licenses {
		rows = append(rows, []string{l.Key, l.Type, l.Status, formatExpiry(l.ExpiresAt), yesNo(l.IsValid)})
	}
	printTable(a.out, []string{"key", "type", "status", "expires", "valid"}, rows)
	return nil
}

// HWID prints the fingerprint this machine would send.
func (a *App) HWID(ctx context.Context, _ []string) error {
	fp := a.probe(ctx)
	fmt.Fprintf(a.out, "%s (%s)\n", fp.Value, fp.Source)
	return nil
}
