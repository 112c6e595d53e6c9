package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
)

type LicenseType string

const (
	LicenseTrial    LicenseType = "trial"
	LicenseMonthly  LicenseType = "monthly"
	LicenseLifetime LicenseType = "lifetime"
)

// ParseLicenseType accepts the three known types, case-insensitively.
func ParseLicenseType(s string) (LicenseType, error) {
	switch t := LicenseType(strings.ToLower(strings.TrimSpace(s))); t {
	case LicenseTrial, LicenseMonthly, LicenseLifetime:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown license type %q", common.ErrorValidation, s)
}

// DefaultDays is the validity applied at generation when no duration is given.
// Lifetime licenses have none.
func (t LicenseType) DefaultDays() int {
	switch t {
	case LicenseMonthly:
		return 30
	case LicenseTrial:
		return 7
	}
	return 0
}

type LicenseStatus string

const (
	StatusActive  LicenseStatus = "active"
	StatusRevoked LicenseStatus = "revoked"
	StatusExpired LicenseStatus = "expired"
)

func ParseLicenseStatus(s string) (LicenseStatus, error) {
	switch st := LicenseStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusRevoked, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown license status %q", common.ErrorValidation, s)
}

// License is an entitlement record. An empty HWID or UserID means the field
// is not bound yet; once set, neither ever changes.
type License struct {
	ID        string
	Key       string
	Type      LicenseType
	Status    LicenseStatus
	HWID      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// IsExpired reports whether the license has run out at now. Lifetime licenses
// never expire; any other license without an expiry counts as expired.
func (l *License) IsExpired(now time.Time) bool {
	if l.Type == LicenseLifetime {
		return false
	}
	if l.ExpiresAt == nil {
		return true
	}
	return now.After(*l.ExpiresAt)
}

// IsValid reports whether the license grants use at now. A candidate hwid is
// only compared when the license already has one bound.
func (l *License) IsValid(hwid string, now time.Time) bool {
	if l.Status != StatusActive || l.IsExpired(now) {
		return false
	}
	if hwid != "" && l.HWID != "" && hwid != l.HWID {
		return false
	}
	return true
}

// Revoke moves an active license to Revoked and reports whether anything
// changed. Revoked and Expired are terminal, so calling it on them is a no-op.
func (l *License) Revoke() bool {
	if l.Status != StatusActive {
		return false
	}
	l.Status = StatusRevoked
	return true
}

// Expire records a lazily discovered expiry. Only active licenses move.
func (l *License) Expire() bool {
	if l.Status != StatusActive {
		return false
	}
	l.Status = StatusExpired
	return true
}

// Extend pushes the expiry to max(expires_at, now) + days. A missing expiry
// counts from now. Lifetime licenses cannot be extended and are left untouched.
func (l *License) Extend(days int, now time.Time) error {
	if l.Type == LicenseLifetime {
		return fmt.Errorf("%w: lifetime license cannot be extended", common.ErrorInvalidOperation)
	}
	if days <= 0 {
		return fmt.Errorf("%w: days must be positive", common.ErrorValidation)
	}

	base := now
	if l.ExpiresAt != nil && l.ExpiresAt.After(now) {
		base = *l.ExpiresAt
	}
	next := base.AddDate(0, 0, days)
	l.ExpiresAt = &next
	return nil
}

// Bind attaches the owner and, when given, the hardware id. Binding the
// values already present is a no-op; a different value is a conflict and
// leaves the license unchanged.
func (l *License) Bind(userID, hwid string) error {
	if l.UserID != "" && l.UserID != userID {
		return fmt.Errorf("%w: license is bound to another user", common.ErrorConflict)
	}
	if hwid != "" && l.HWID != "" && l.HWID != hwid {
		return fmt.Errorf("%w: license is bound to another device", common.ErrorConflict)
	}
	l.UserID = userID
	if l.HWID == "" {
		l.HWID = hwid
	}
	return nil
}
