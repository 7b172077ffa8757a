package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a connection or an open
// transaction, so services can compose repository calls inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Items(db dbx.DBTX) items.Repository
}
