package licenses

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/server/models"
)

// Repository stores licenses. The ForUpdate lookups lock the row until the
// surrounding transaction ends, so they are only meaningful on a *sql.Tx.
type Repository interface {
	Create(ctx context.Context, l *models.License) (*models.License, error)
	GetByKey(ctx context.Context, key string) (*models.License, error)
	GetByKeyForUpdate(ctx context.Context, key string) (*models.License, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.License, error)
	ListByUser(ctx context.Context, userID string) ([]*models.License, error)
	List(ctx context.Context) ([]*models.License, error)
	Bind(ctx context.Context, id, userID, hwid string) error
	UpdateStatus(ctx context.Context, id string, status models.LicenseStatus) error
	UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error
}
