package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// transaction handle to repositories through tx.
//
// Repositories detect a live transaction and lock the rows they read
// (SELECT ... FOR UPDATE), which is how per-order serialization of
// paid_amount updates is achieved. Repositories MUST accept a nil tx
// (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
