package cli

import (
	"context"
	"fmt"
	"strconv"
)

// Generate creates a new license key.
// Usage: generate <trial|monthly|lifetime> [days]
func (a *App) Generate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: generate <trial|monthly|lifetime> [days]")
		return errUsage
	}

	var days *int
	if len(args) > 1 {
		d, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintln(a.out, "days must be a number")
			return errUsage
		}
		days = &d
	}

	resp, err := a.client.Generate(ctx, args[0], days)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Generated %s license %s (id %s, expires %s)\n",
		resp.Type, resp.Key, resp.ID, formatExpiry(resp.ExpiresAt))
	return nil
}

func (a *App) Licenses(ctx context.Context, _ []string) error {
	list, err := a.client.Licenses(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No licenses")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, l := range list {
		rows = append(rows, []string{
			l.ID, l.Key, l.Type, l.Status, formatOptional(l.UserID), formatOptional(l.HWID),
			formatExpiry(l.ExpiresAt), yesNo(l.IsValid),
		})
	}
	printTable(a.out, []string{"id", "key", "type", "status", "user", "hwid", "expires", "valid"}, rows)
	return nil
}

func (a *App) Users(ctx context.Context, _ []string) error {
	list, err := a.client.Users(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(list))
	for _, u := range list {
		rows = append(rows, []string{u.ID, u.Username, u.Email, yesNo(u.IsAdmin), strconv.Itoa(u.LicenseCount)})
	}
	printTable(a.out, []string{"id", "username", "email", "admin", "licenses"}, rows)
	return nil
}

// Revoke marks a license as revoked. Usage: revoke <license-id>
func (a *App) Revoke(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: revoke <license-id>")
		return errUsage
	}
	if err := a.client.Revoke(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "License revoked")
	return nil
}

// Extend pushes the expiry of a license forward. Usage: extend <license-id> <days>
func (a *App) Extend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(a.out, "Usage: extend <license-id> <days>")
		return errUsage
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(a.out, "days must be a number")
		return errUsage
	}

	resp, err := a.client.Extend(ctx, args[0], days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s, new expiry %s\n", resp.Message, formatExpiry(resp.NewExpiry))
	return nil
}

func (a *App) Export(ctx context.Context, _ []string) error {
	resp, err := a.client.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d licenses to %s\n", resp.Count, resp.ObjectKey)
	if resp.DownloadURL != "" {
		fmt.Fprintf(a.out, "Download: %s\n", resp.DownloadURL)
	}
	return nil
}
