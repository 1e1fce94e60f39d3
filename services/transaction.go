package services

import (
	"context"

	"github.com/upb/rcfms-admin/repositories"
)

// WithTransactionResult runs fn through txMgr.InTransaction and returns the
// value fn produced. fn receives the transaction's context so repository
// calls made with it join the transaction. The result is the zero value
// whenever the transaction did not commit.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
