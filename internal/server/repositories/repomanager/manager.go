package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fleetcheck/internal/dbx"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/records"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// constructors serve plain connections and transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
}
