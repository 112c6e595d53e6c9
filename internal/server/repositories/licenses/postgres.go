// Package licenses persists license records in PostgreSQL.
package licenses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/dmitrijs2005/keyauth/internal/dbx"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/pgerr"
)

const selectColumns = `SELECT id, license_key, type, status, hwid, user_id, created_at, expires_at FROM licenses`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*models.License, error) {
	var (
		l            models.License
		typ, status  string
		hwid, userID sql.NullString
		expiresAt    sql.NullTime
	)
	if err := row.Scan(&l.ID, &l.Key, &typ, &status, &hwid, &userID, &l.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}

	var err error
	if l.Type, err = models.ParseLicenseType(typ); err != nil {
		return nil, err
	}
	if l.Status, err = models.ParseLicenseStatus(status); err != nil {
		return nil, err
	}
	l.HWID = hwid.String
	l.UserID = userID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}
	return &l, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new active license. A key collision is reported as
// common.ErrorConflict so the caller can retry with a fresh key.
func (r *PostgresRepository) Create(ctx context.Context, l *models.License) (*models.License, error) {
	query :=
		`INSERT INTO licenses (license_key, type, status, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, l.Key, string(l.Type), string(l.Status), nullableTime(l.ExpiresAt)).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		if _, ok := pgerr.UniqueConstraint(err); ok {
			return nil, fmt.Errorf("%w: license key already exists", common.ErrorConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return l, nil
}

func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*models.License, error) {
	return r.getOne(ctx, selectColumns+` WHERE license_key = $1`, key)
}

func (r *PostgresRepository) GetByKeyForUpdate(ctx context.Context, key string) (*models.License, error) {
	return r.getOne(ctx, selectColumns+` WHERE license_key = $1 FOR UPDATE`, key)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.License, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.License, error) {
	l, err := scanLicense(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.License, error) {
	return r.list(ctx, selectColumns+` WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.License, error) {
	return r.list(ctx, selectColumns+` ORDER BY created_at`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.License, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.License, 0)
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Bind sets the owner and hardware id where they are still empty. The
// statement only matches while the existing values are empty or equal to the
// new ones, so a concurrent binder that committed first turns this call into
// common.ErrorConflict instead of an overwrite.
func (r *PostgresRepository) Bind(ctx context.Context, id, userID, hwid string) error {
	query :=
		`UPDATE licenses
		 SET user_id = COALESCE(user_id, $2), hwid = COALESCE(hwid, $3)
		 WHERE id = $1
		   AND (user_id IS NULL OR user_id = $2)
		   AND ($3::text IS NULL OR hwid IS NULL OR hwid = $3)
		 `

	res, err := r.db.ExecContext(ctx, query, id, userID, nullable(hwid))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: license already bound", common.ErrorConflict)
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.LicenseStatus) error {
	return r.exec(ctx, `UPDATE licenses SET status = $2 WHERE id = $1`, id, string(status))
}

func (r *PostgresRepository) UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return r.exec(ctx, `UPDATE licenses SET expires_at = $2 WHERE id = $1`, id, nullableTime(expiresAt))
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
