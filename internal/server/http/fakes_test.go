package http

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/dmitrijs2005/keyauth/internal/dbx"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

// memStore backs both fake repositories so license counts can be computed.
type memStore struct {
	mu       sync.Mutex
	users    []*models.User
	licenses []*models.License
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.users {
		if e.UserName == u.UserName || e.Email == u.Email {
			return nil, common.ErrorConflict
		}
	}
	cp := *u
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	r.s.users = append(r.s.users, &cp)
	out := cp
	return &out, nil
}

func (r memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.UserName == login })
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r memUsers) List(_ context.Context) ([]*models.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.UserSummary, 0, len(r.s.users))
	for _, u := range r.s.users {
		n := 0
		for _, l := range r.s.licenses {
			if l.UserID == u.ID {
				n++
			}
		}
		out = append(out, &models.UserSummary{User: *u, LicenseCount: n})
	}
	return out, nil
}

func (r memUsers) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID == id {
			u.IsAdmin = isAdmin
			return nil
		}
	}
	return common.ErrorNotFound
}

type memLicenses struct{ s *memStore }

func (r memLicenses) Create(_ context.Context, l *models.License) (*models.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *l
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	r.s.licenses = append(r.s.licenses, &cp)
	out := cp
	return &out, nil
}

func (r memLicenses) find(match func(*models.License) bool) (*models.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.licenses {
		if match(l) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memLicenses) GetByKey(_ context.Context, key string) (*models.License, error) {
	return r.find(func(l *models.License) bool { return l.Key == key })
}

func (r memLicenses) GetByKeyForUpdate(ctx context.Context, key string) (*models.License, error) {
	return r.GetByKey(ctx, key)
}

func (r memLicenses) GetByIDForUpdate(_ context.Context, id string) (*models.License, error) {
	return r.find(func(l *models.License) bool { return l.ID == id })
}

func (r memLicenses) filter(match func(*models.License) bool) []*models.License {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.License, 0)
	for _, l := range r.s.licenses {
		if match(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}

func (r memLicenses) ListByUser(_ context.Context, userID string) ([]*models.License, error) {
	return r.filter(func(l *models.License) bool { return l.UserID == userID }), nil
}

func (r memLicenses) List(_ context.Context) ([]*models.License, error) {
	return r.filter(func(*models.License) bool { return true }), nil
}

func (r memLicenses) update(id string, fn func(*models.License) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.licenses {
		if l.ID == id {
			return fn(l)
		}
	}
	return common.ErrorNotFound
}

func (r memLicenses) Bind(_ context.Context, id, userID, hwid string) error {
	return r.update(id, func(l *models.License) error {
		return l.Bind(userID, hwid)
	})
}

func (r memLicenses) UpdateStatus(_ context.Context, id string, status models.LicenseStatus) error {
	return r.update(id, func(l *models.License) error {
		l.Status = status
		return nil
	})
}

func (r memLicenses) UpdateExpiry(_ context.Context, id string, expiresAt *time.Time) error {
	return r.update(id, func(l *models.License) error {
		l.ExpiresAt = expiresAt
		return nil
	})
}

type memManager struct{ s *memStore }

func (m memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.s} }
func (m memManager) Licenses(dbx.DBTX) licenses.Repository        { return memLicenses{m.s} }
