// Package api holds the JSON shapes exchanged between the KeyAuth HTTP server
// and its clients, and the route paths they share.
package api

import "time"

const TokenTypeBearer = "bearer"

// Route paths. Admin paths that take an id end with a slash and expect the id
// appended.
const (
	PathRoot           = "/"
	PathRegister       = "/api/auth/register"
	PathLogin          = "/api/auth/login"
	PathMe             = "/api/auth/me"
	PathActivate       = "/api/license/activate"
	PathValidate       = "/api/license/validate"
	PathStatus         = "/api/license/status"
	PathUsers          = "/api/admin/users"
	PathGenerateKey    = "/api/admin/generate-key"
	PathLicenses       = "/api/admin/licenses"
	PathRevokeLicense  = "/api/admin/revoke-license/"
	PathExtendLicense  = "/api/admin/extend-license/"
	PathExportLicenses = "/api/admin/export-licenses"
	PathMetrics        = "/metrics"
)

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"is_admin"`
}

type MeResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// LicenseRequest is the body of both activate and validate.
type LicenseRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	HWID       string `json:"hwid,omitempty" validate:"max=256"`
}

type ActivateResponse struct {
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ValidateResponse carries Type and ExpiresAt when Valid, Reason otherwise.
type ValidateResponse struct {
	Valid     bool       `json:"valid"`
	Type      string     `json:"type,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Message   string     `json:"message"`
}

type LicenseSummary struct {
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsValid   bool       `json:"is_valid"`
}

type StatusResponse struct {
	Licenses []LicenseSummary `json:"licenses"`
}

type UserInfo struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	LicenseCount int       `json:"license_count"`
}

type GenerateRequest struct {
	LicenseType  string `json:"license_type" validate:"required"`
	DurationDays *int   `json:"duration_days,omitempty" validate:"omitempty,min=0"`
}

type GenerateResponse struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type LicenseInfo struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	HWID      *string    `json:"hwid"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	UserID    *string    `json:"user_id"`
	IsValid   bool       `json:"is_valid"`
}

type ExtendRequest struct {
	Days int `json:"days" validate:"required,min=1"`
}

type ExtendResponse struct {
	Message   string     `json:"message"`
	NewExpiry *time.Time `json:"new_expiry"`
}

type ExportResponse struct {
	ObjectKey   string `json:"object_key"`
	DownloadURL string `json:"download_url"`
	Count       int    `json:"count"`
}
