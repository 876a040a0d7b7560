// Package tr связывает транзакции pgx с контекстом запроса.
package tr

import (
	"context"

	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

// Querier общий набор методов pgx.Tx и pgxpool.Pool, которым пользуются репозитории.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Manager открывает транзакцию, кладёт её в контекст и фиксирует или откатывает по результату fn.
type Manager struct {
	db   transaction.Transactional
	opts pgx.TxOptions
}

func NewManager(db transaction.Transactional) *Manager {
	return &Manager{db: db}
}

// Do выполняет fn в транзакции. Вложенный вызов переиспользует транзакцию из контекста.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "Manager.Do"

	if _, terr := TxFromCtx(ctx); terr == nil {
		return fn(ctx)
	}

	ctx, tx, err := transaction.NewTransaction(ctx, m.opts, m.db)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if p := recover(); p != nil {
			if tx.IsActive() {
				_ = tx.Rollback(ctx)
			}
			panic(p)
		}
		if err != nil && tx.IsActive() {
			_ = tx.Rollback(ctx)
		}
	}()

	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		err = e.ErrTransactionNotFound
		return e.Wrap(op, err)
	}

	if err = fn(WithTx(ctx, pgxTx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// WithTx возвращает контекст с транзакцией.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromCtx извлекает объект транзакции (pgx.Tx) из контекста
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok || tx == nil {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}

// Conn возвращает транзакцию из контекста, а без неё fallback (обычно пул).
func Conn(ctx context.Context, fallback Querier) Querier {
	if tx, err := TxFromCtx(ctx); err == nil {
		return tx
	}
	return fallback
}
