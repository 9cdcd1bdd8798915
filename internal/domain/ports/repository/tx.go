package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept nil for the
// non-transactional path; the Postgres implementation expects pgx.Tx.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a database transaction. If fn returns an
// error the transaction is rolled back, otherwise committed.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		sub, err := subs.FindByPaymentID(ctx, tx, id)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
