package sqldb

import (
	"context"
	"database/sql"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// TransactionContext implements relationaldb.TransactionContext
type TransactionContext struct {
	repositories

	tx *sql.Tx
}

func newTransactionContext(tx *sql.Tx, d dialect) *TransactionContext {
	return &TransactionContext{
		repositories: newRepositories(tx, d, true),
		tx:           tx,
	}
}

func (tc *TransactionContext) Commit(ctx context.Context) error {
	if tc.tx == nil {
		return relationaldb.NewTransactionError("commit", "transaction is closed", nil).WithCode("TRANSACTION_CLOSED")
	}

	err := tc.tx.Commit()
	tc.tx = nil

	if err != nil {
		return relationaldb.NewTransactionError("commit", "failed to commit transaction", err)
	}
	return nil
}

func (tc *TransactionContext) Rollback(ctx context.Context) error {
	if tc.tx == nil {
		return nil // Already rolled back or committed
	}

	err := tc.tx.Rollback()
	tc.tx = nil

	if err != nil {
		return relationaldb.NewTransactionError("rollback", "failed to rollback transaction", err)
	}
	return nil
}
