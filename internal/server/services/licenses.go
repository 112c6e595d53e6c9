package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/dmitrijs2005/keyauth/internal/dbx"
	"github.com/dmitrijs2005/keyauth/internal/logging"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Validation failure reasons reported by LicenseService.Validate.
const (
	ReasonExpired = "expired"
	ReasonInvalid = "invalid"
)

// maxKeyAttempts bounds key regeneration after unique-constraint collisions.
const maxKeyAttempts = 5

// LicenseView is a license together with its validity at the time it was read.
type LicenseView struct {
	*models.License
	Valid bool
}

// ValidationResult is the outcome of Validate. Reason is set only when Valid
// is false.
type ValidationResult struct {
	License *models.License
	Valid   bool
	Reason  string
}

// OperationObserver is told the outcome of every license operation.
type OperationObserver interface {
	ObserveOperation(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}

// LicenseService is the entitlement engine. Every mutating operation runs its
// read-decide-write sequence in one transaction holding the license row lock.
type LicenseService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	observer    OperationObserver
	now         func() time.Time
	newKey      func() string
}

func NewLicenseService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, observer OperationObserver) *LicenseService {
	if logger == nil {
		logger = logging.Nop{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &LicenseService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "licenses"),
		observer:    observer,
		now:         func() time.Time { return time.Now().UTC() },
		newKey:      func() string { return uuid.NewString() },
	}
}

func (s *LicenseService) observe(op string, err error) {
	s.observer.ObserveOperation(op, Outcome(err))
}

// Outcome classifies err into a short metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrorConflict):
		return "conflict"
	case errors.Is(err, common.ErrorUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrorInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, common.ErrorExpired):
		return "expired"
	case errors.Is(err, common.ErrorValidation):
		return "invalid_input"
	}
	return "error"
}

// Generate creates an active license of the given type. durationDays of zero
// selects the type default; Lifetime licenses ignore it and never get an
// expiry. Key collisions are retried with a fresh key.
func (s *LicenseService) Generate(ctx context.Context, caller *models.User, typ models.LicenseType, durationDays int) (l *models.License, err error) {
	defer func() { s.observe("generate", err) }()

	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, err := models.ParseLicenseType(string(typ)); err != nil {
		return nil, err
	}
	if durationDays < 0 {
		return nil, fmt.Errorf("%w: duration_days must not be negative", common.ErrorValidation)
	}

	var expiresAt *time.Time
	if typ != models.LicenseLifetime {
		if durationDays == 0 {
			durationDays = typ.DefaultDays()
		}
		t := s.now().AddDate(0, 0, durationDays)
		expiresAt = &t
	}

	repo := s.repomanager.Licenses(s.db)
	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		candidate := &models.License{
			Key:       s.newKey(),
			Type:      typ,
			Status:    models.StatusActive,
			ExpiresAt: expiresAt,
		}

		l, err = repo.Create(ctx, candidate)
		if err == nil {
			s.logger.Info(ctx, "license generated", "license_id", l.ID, "type", string(l.Type))
			return l, nil
		}
		if !errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("error creating license: %w", err)
		}
		s.logger.Warn(ctx, "license key collision, regenerating", "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: no unique license key after %d attempts", common.ErrorInternal, maxKeyAttempts)
}

type activation struct {
	license *models.License
	expired bool
}

// Activate binds the license to caller and, when given, to hwid. A license
// found past its expiry is marked Expired and that change is committed before
// common.ErrorExpired is returned.
func (s *LicenseService) Activate(ctx context.Context, caller *models.User, key, hwid string) (l *models.License, err error) {
	defer func() { s.observe("activate", err) }()

	if caller == nil {
		return nil, common.ErrorUnauthorized
	}

	res, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (activation, error) {
		repo := s.repomanager.Licenses(tx)

		l, err := repo.GetByKeyForUpdate(ctx, key)
		if err != nil {
			return activation{}, err
		}

		if l.UserID != "" && l.UserID != caller.ID {
			return activation{}, fmt.Errorf("%w: license key is already activated by another user", common.ErrorConflict)
		}
		if l.Status != models.StatusActive {
			return activation{}, fmt.Errorf("%w: license key is not active", common.ErrorInvalidOperation)
		}
		if l.IsExpired(s.now()) {
			l.Expire()
			if err := repo.UpdateStatus(ctx, l.ID, l.Status); err != nil {
				return activation{}, err
			}
			return activation{license: l, expired: true}, nil
		}

		if err := l.Bind(caller.ID, hwid); err != nil {
			return activation{}, err
		}
		if err := repo.Bind(ctx, l.ID, l.UserID, hwid); err != nil {
			return activation{}, err
		}

		return activation{license: l}, nil
	})
	if err != nil {
		return nil, err
	}

	if res.expired {
		s.logger.Info(ctx, "license expired on activation", "license_id", res.license.ID)
		return nil, fmt.Errorf("%w: license key has expired", common.ErrorExpired)
	}

	s.logger.Info(ctx, "license activated", "license_id", res.license.ID, "user_id", caller.ID)
	return res.license, nil
}

// Validate checks a license owned by caller. Ownership and hardware mismatches
// are errors; an expired or otherwise unusable license is a normal result with
// Valid false. Nothing is written.
func (s *LicenseService) Validate(ctx context.Context, caller *models.User, key, hwid string) (res *ValidationResult, err error) {
	defer func() { s.observe("validate", err) }()

	if caller == nil {
		return nil, common.ErrorUnauthorized
	}

	l, err := s.repomanager.Licenses(s.db).GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if l.UserID != caller.ID {
		return nil, fmt.Errorf("%w: license key does not belong to this user", common.ErrorForbidden)
	}
	if hwid != "" && l.HWID != "" && l.HWID != hwid {
		return nil, fmt.Errorf("%w: hardware ID mismatch", common.ErrorForbidden)
	}

	now := s.now()
	if l.IsValid(hwid, now) {
		return &ValidationResult{License: l, Valid: true}, nil
	}

	reason := ReasonInvalid
	if l.IsExpired(now) {
		reason = ReasonExpired
	}
	return &ValidationResult{License: l, Valid: false, Reason: reason}, nil
}

// Status lists the licenses owned by caller.
func (s *LicenseService) Status(ctx context.Context, caller *models.User) (views []*LicenseView, err error) {
	defer func() { s.observe("status", err) }()

	if caller == nil {
		return nil, common.ErrorUnauthorized
	}

	list, err := s.repomanager.Licenses(s.db).ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return s.views(list), nil
}

// List returns every license. Admin only.
func (s *LicenseService) List(ctx context.Context, caller *models.User) (views []*LicenseView, err error) {
	defer func() { s.observe("list", err) }()

	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	list, err := s.repomanager.Licenses(s.db).List(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(list), nil
}

func (s *LicenseService) views(list []*models.License) []*LicenseView {
	now := s.now()
	out := make([]*LicenseView, 0, len(list))
	for _, l := range list {
		out = append(out, &LicenseView{License: l, Valid: l.IsValid("", now)})
	}
	return out
}

// Revoke marks the license Revoked. Revoking a license that is no longer
// Active succeeds without changing it. Admin only.
func (s *LicenseService) Revoke(ctx context.Context, caller *models.User, id string) (err error) {
	defer func() { s.observe("revoke", err) }()

	if err := requireAdmin(caller); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Licenses(tx)

		l, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !l.Revoke() {
			return nil
		}
		if err := repo.UpdateStatus(ctx, l.ID, l.Status); err != nil {
			return err
		}
		s.logger.Info(ctx, "license revoked", "license_id", l.ID)
		return nil
	})
}

// Extend pushes the expiry of a time-limited license days past the later of
// now and its current expiry. Admin only.
func (s *LicenseService) Extend(ctx context.Context, caller *models.User, id string, days int) (l *models.License, err error) {
	defer func() { s.observe("extend", err) }()

	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.License, error) {
		repo := s.repomanager.Licenses(tx)

		l, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := l.Extend(days, s.now()); err != nil {
			return nil, err
		}
		if err := repo.UpdateExpiry(ctx, l.ID, l.ExpiresAt); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "license extended", "license_id", l.ID, "expires_at", *l.ExpiresAt)
		return l, nil
	})
}
