package models

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestParseLicenseType(t *testing.T) {
	for in, want := range map[string]LicenseType{
		"trial": LicenseTrial, "Monthly": LicenseMonthly, " LIFETIME ": LicenseLifetime,
	} {
		got, err := ParseLicenseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseLicenseType("weekly")
	assert.True(t, errors.Is(err, common.ErrorValidation))
}

func TestParseLicenseStatus(t *testing.T) {
	got, err := ParseLicenseStatus("Revoked")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, got)

	_, err = ParseLicenseStatus("suspended")
	assert.True(t, errors.Is(err, common.ErrorValidation))
}

func TestDefaultDays(t *testing.T) {
	assert.Equal(t, 30, LicenseMonthly.DefaultDays())
	assert.Equal(t, 7, LicenseTrial.DefaultDays())
	assert.Equal(t, 0, LicenseLifetime.DefaultDays())
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name    string
		license License
		want    bool
	}{
		{"lifetime without expiry", License{Type: LicenseLifetime}, false},
		{"lifetime with past expiry", License{Type: LicenseLifetime, ExpiresAt: at(-1000 * time.Hour)}, false},
		{"monthly without expiry", License{Type: LicenseMonthly}, true},
		{"trial without expiry", License{Type: LicenseTrial}, true},
		{"future expiry", License{Type: LicenseMonthly, ExpiresAt: at(time.Hour)}, false},
		{"past expiry", License{Type: LicenseTrial, ExpiresAt: at(-time.Second)}, true},
		{"expiry exactly now", License{Type: LicenseTrial, ExpiresAt: at(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.license.IsExpired(now))
		})
	}
}

func TestIsExpired_LifetimeNeverExpires(t *testing.T) {
	l := License{Type: LicenseLifetime, ExpiresAt: at(-time.Hour)}
	for _, d := range []time.Duration{-1e6 * time.Hour, 0, 1e6 * time.Hour} {
		assert.False(t, l.IsExpired(now.Add(d)))
	}
}

func TestIsValid(t *testing.T) {
	active := License{Type: LicenseMonthly, Status: StatusActive, ExpiresAt: at(time.Hour)}
	bound := active
	bound.HWID = "H1"

	tests := []struct {
		name    string
		license License
		hwid    string
		want    bool
	}{
		{"active unbound", active, "", true},
		{"active unbound with candidate", active, "H9", true},
		{"bound, no candidate", bound, "", true},
		{"bound, same candidate", bound, "H1", true},
		{"bound, different candidate", bound, "H2", false},
		{"bound, case differs", bound, "h1", false},
		{"revoked", License{Type: LicenseLifetime, Status: StatusRevoked}, "", false},
		{"expired status", License{Type: LicenseLifetime, Status: StatusExpired}, "", false},
		{"active but past expiry", License{Type: LicenseTrial, Status: StatusActive, ExpiresAt: at(-time.Hour)}, "", false},
		{"active lifetime", License{Type: LicenseLifetime, Status: StatusActive}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.license.IsValid(tt.hwid, now))
		})
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	l := License{Type: LicenseMonthly, Status: StatusActive, ExpiresAt: at(time.Hour)}

	assert.True(t, l.Revoke())
	first := l

	assert.False(t, l.Revoke())
	assert.Equal(t, first, l)
	assert.Equal(t, StatusRevoked, l.Status)
}

func TestRevoke_ExpiredStaysExpired(t *testing.T) {
	l := License{Type: LicenseTrial, Status: StatusExpired}
	assert.False(t, l.Revoke())
	assert.Equal(t, StatusExpired, l.Status)
}

func TestExpire(t *testing.T) {
	l := License{Status: StatusActive}
	assert.True(t, l.Expire())
	assert.Equal(t, StatusExpired, l.Status)

	r := License{Status: StatusRevoked}
	assert.False(t, r.Expire())
	assert.Equal(t, StatusRevoked, r.Status)
}

func TestExtend_LifetimeRejectedWithoutMutation(t *testing.T) {
	for _, exp := range []*time.Time{nil, at(-time.Hour), at(time.Hour)} {
		l := License{Type: LicenseLifetime, Status: StatusActive, ExpiresAt: exp}
		before := l

		err := l.Extend(10, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrorInvalidOperation))
		assert.Equal(t, before, l)
	}
}

func TestExtend_FromPastExpiryCountsFromNow(t *testing.T) {
	l := License{Type: LicenseMonthly, Status: StatusActive, ExpiresAt: at(-10 * 24 * time.Hour)}

	require.NoError(t, l.Extend(5, now))
	assert.Equal(t, now.Add(5*24*time.Hour), *l.ExpiresAt)
}

func TestExtend_FromFutureExpiryCompounds(t *testing.T) {
	l := License{Type: LicenseTrial, Status: StatusActive, ExpiresAt: at(2 * 24 * time.Hour)}

	require.NoError(t, l.Extend(5, now))
	assert.Equal(t, now.Add(7*24*time.Hour), *l.ExpiresAt)
}

func TestExtend_MissingExpiryCountsFromNow(t *testing.T) {
	l := License{Type: LicenseTrial, Status: StatusActive}

	require.NoError(t, l.Extend(3, now))
	assert.Equal(t, now.Add(3*24*time.Hour), *l.ExpiresAt)
}

func TestExtend_NonPositiveDays(t *testing.T) {
	l := License{Type: LicenseMonthly, ExpiresAt: at(time.Hour)}
	err := l.Extend(0, now)
	assert.True(t, errors.Is(err, common.ErrorValidation))
	assert.Equal(t, now.Add(time.Hour), *l.ExpiresAt)
}

func TestBind(t *testing.T) {
	l := License{Type: LicenseTrial, Status: StatusActive}

	require.NoError(t, l.Bind("user-a", "H1"))
	assert.Equal(t, "user-a", l.UserID)
	assert.Equal(t, "H1", l.HWID)

	// same values again: no-op success
	require.NoError(t, l.Bind("user-a", "H1"))
	// no hwid supplied keeps the bound one
	require.NoError(t, l.Bind("user-a", ""))
	assert.Equal(t, "H1", l.HWID)

	err := l.Bind("user-a", "H2")
	assert.True(t, errors.Is(err, common.ErrorConflict))
	assert.Equal(t, "H1", l.HWID)

	err = l.Bind("user-b", "H1")
	assert.True(t, errors.Is(err, common.ErrorConflict))
	assert.Equal(t, "user-a", l.UserID)
}

func TestBind_OwnerWithoutHWID(t *testing.T) {
	l := License{Type: LicenseLifetime, Status: StatusActive}
	require.NoError(t, l.Bind("user-a", ""))
	assert.Equal(t, "user-a", l.UserID)
	assert.Empty(t, l.HWID)

	require.NoError(t, l.Bind("user-a", "H7"))
	assert.Equal(t, "H7", l.HWID)
}
