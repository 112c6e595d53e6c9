package client

import (
	"context"

	"github.com/dmitrijs2005/keyauth/internal/api"
)

// Client is the API surface the CLI depends on.
type Client interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Logout()
	IsLoggedIn() bool
	Me(ctx context.Context) (*api.MeResponse, error)

	Activate(ctx context.Context, key, hwid string) (*api.ActivateResponse, error)
	Validate(ctx context.Context, key, hwid string) (*api.ValidateResponse, error)
	Status(ctx context.Context) (*api.StatusResponse, error)

	Users(ctx context.Context) ([]api.UserInfo, error)
	Generate(ctx context.Context, licenseType string, durationDays *int) (*api.GenerateResponse, error)
	Licenses(ctx context.Context) ([]api.LicenseInfo, error)
	Revoke(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, days int) (*api.ExtendResponse, error)
	Export(ctx context.Context) (*api.ExportResponse, error)
}
