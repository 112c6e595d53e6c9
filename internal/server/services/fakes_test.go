package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/dmitrijs2005/keyauth/internal/dbx"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu      sync.Mutex
	byName  map[string]*models.User
	listErr error
	getErr  error
}

func newFakeUsersRepo(seed ...*models.User) *fakeUsersRepo {
	r := &fakeUsersRepo{byName: map[string]*models.User{}}
	for _, u := range seed {
		cp := *u
		r.byName[u.UserName] = &cp
	}
	return r
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byName {
		if existing.UserName == u.UserName || existing.Email == u.Email {
			return nil, common.ErrorConflict
		}
	}
	cp := *u
	cp.ID = uuid.NewString()
	cp.CreatedAt = testNow
	f.byName[cp.UserName] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) List(_ context.Context) ([]*models.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.UserSummary, 0, len(f.byName))
	for _, u := range f.byName {
		out = append(out, &models.UserSummary{User: *u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

func (f *fakeUsersRepo) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == id {
			u.IsAdmin = isAdmin
			return nil
		}
	}
	return common.ErrorNotFound
}

// --- licenses ---

// fakeLicensesRepo keeps rows in memory. Bind applies the same conditional
// update as the SQL statement so racing binders see ErrorConflict.
type fakeLicensesRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.License
	createErr []error
	keys      []string
	updateErr error
}

func newFakeLicensesRepo() *fakeLicensesRepo {
	return &fakeLicensesRepo{rows: map[string]*models.License{}}
}

func (f *fakeLicensesRepo) put(l models.License) *models.License {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = testNow
	}
	f.rows[l.ID] = &l
	cp := l
	return &cp
}

func (f *fakeLicensesRepo) get(id string) *models.License {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.rows[id]
	return &cp
}

func (f *fakeLicensesRepo) Create(_ context.Context, l *models.License) (*models.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, l.Key)
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return nil, err
		}
	}
	cp := *l
	cp.ID = uuid.NewString()
	cp.CreatedAt = testNow
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeLicensesRepo) GetByKey(_ context.Context, key string) (*models.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.Key == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeLicensesRepo) GetByKeyForUpdate(ctx context.Context, key string) (*models.License, error) {
	return f.GetByKey(ctx, key)
}

func (f *fakeLicensesRepo) GetByIDForUpdate(_ context.Context, id string) (*models.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLicensesRepo) ListByUser(_ context.Context, userID string) ([]*models.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.License, 0)
	for _, l := range f.sorted() {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLicensesRepo) List(_ context.Context) ([]*models.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(), nil
}

func (f *fakeLicensesRepo) sorted() []*models.License {
	out := make([]*models.License, 0, len(f.rows))
	for _, l := range f.rows {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (f *fakeLicensesRepo) Bind(_ context.Context, id, userID, hwid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok {
		return common.ErrorConflict
	}
	if l.UserID != "" && l.UserID != userID {
		return common.ErrorConflict
	}
	if hwid != "" && l.HWID != "" && l.HWID != hwid {
		return common.ErrorConflict
	}
	l.UserID = userID
	if l.HWID == "" {
		l.HWID = hwid
	}
	return nil
}

func (f *fakeLicensesRepo) UpdateStatus(_ context.Context, id string, status models.LicenseStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	l, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	l.Status = status
	return nil
}

func (f *fakeLicensesRepo) UpdateExpiry(_ context.Context, id string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	l, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	l.ExpiresAt = expiresAt
	return nil
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	l *fakeLicensesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), l: newFakeLicensesRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Licenses(dbx.DBTX) licenses.Repository        { return m.l }

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (o *recordingObserver) ObserveOperation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, op+":"+outcome)
}
