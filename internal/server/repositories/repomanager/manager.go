// Package repomanager vends repositories bound to a dbx.DBTX, so a service
// can use several of them inside one transaction, and runs schema
// migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/accounts"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/addresses"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/cards"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Addresses(db dbx.DBTX) addresses.Repository
	Cards(db dbx.DBTX) cards.Repository
}
