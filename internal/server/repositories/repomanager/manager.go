package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/keyauth/internal/dbx"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services choose the scope of every unit of work.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Licenses(db dbx.DBTX) licenses.Repository
}
