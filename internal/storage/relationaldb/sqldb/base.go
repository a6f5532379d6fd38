package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// base is embedded by every repository. inTx is set when the executor is
// a *sql.Tx; only then do reads take row locks.
type base struct {
	exec executor
	d    dialect
	inTx bool
}

func (b base) q(query string) string {
	return b.d.rebind(query)
}

func (b base) locking() bool {
	return b.inTx && b.d.rowLocks
}

// lockSuffix is appended to SELECTs whose result is about to be rewritten.
func (b base) lockSuffix() string {
	if b.locking() {
		return " FOR UPDATE"
	}
	return ""
}

// ensureRow inserts a default row so that a following SELECT ... FOR UPDATE
// has something to lock. It is a no-op without row locks.
func (b base) ensureRow(ctx context.Context, op, insert string, args ...interface{}) error {
	if !b.locking() {
		return nil
	}
	if _, err := b.exec.ExecContext(ctx, b.q(insert), args...); err != nil {
		return relationaldb.NewQueryError(op, "failed to ensure row", err)
	}
	return nil
}

func addr(a types.Address) string {
	return strings.ToLower(a.Hex())
}

func parseAddr(s string) types.Address {
	return common.HexToAddress(s)
}

func amountText(a *types.Amount) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}

func parseAmount(op, s string) (*types.Amount, error) {
	v, err := types.ParseAmount(s)
	if err != nil {
		return nil, relationaldb.NewDataError(op, "corrupt amount column", err).WithCode("INVALID_DATA_FORMAT")
	}
	return v, nil
}

func usd(op string, v int64) (types.USD, error) {
	if v < 0 {
		return 0, relationaldb.NewDataError(op, fmt.Sprintf("negative usd column %d", v), nil).WithCode("INVALID_DATA_FORMAT")
	}
	return types.USD(v), nil
}

func usdColumn(op string, u types.USD) (int64, error) {
	if !u.Storable() {
		return 0, relationaldb.NewDataError(op, fmt.Sprintf("usd value %s exceeds column range", u), nil).WithCode("INVALID_DATA_FORMAT")
	}
	return int64(u), nil
}
