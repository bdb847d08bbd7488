package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/composite/internal/ir"
)

// HookExecutor runs entity lifecycle hooks. Delete calls it with the unit of
// work context, so every store call a hook makes joins the same transaction.
type HookExecutor interface {
	ExecuteHooks(ctx context.Context, hookType ir.HookType, entity *ir.Entity) error
}

// querier is the subset of *sql.DB and *sql.Tx the store uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type contextKey string

const (
	unitOfWorkKey  contextKey = "store.unit_of_work"
	flowTokenKey   contextKey = "store.flow_token"
	deleteDepthKey contextKey = "store.delete_depth"
)

// unitOfWork is one transaction plus the set of entities whose delete is in
// progress inside it.
type unitOfWork struct {
	store    *Store
	tx       *sql.Tx
	deleting map[ir.EntityRef]bool
}

// WithUnitOfWork runs fn inside a transaction. If ctx already carries a unit
// of work for this store, fn joins it and the outermost call commits.
// Any error returned by fn rolls the whole unit of work back.
func (s *Store) WithUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error {
	if u := s.unitOfWork(ctx); u != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	u := &unitOfWork{store: s, tx: tx, deleting: make(map[ir.EntityRef]bool)}
	if err := fn(context.WithValue(ctx, unitOfWorkKey, u)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

func (s *Store) unitOfWork(ctx context.Context) *unitOfWork {
	u, ok := ctx.Value(unitOfWorkKey).(*unitOfWork)
	if !ok || u.store != s {
		return nil
	}
	return u
}

// conn returns the active transaction, or the pool outside a unit of work.
func (s *Store) conn(ctx context.Context) querier {
	if u := s.unitOfWork(ctx); u != nil {
		return u.tx
	}
	return s.db
}

// ContextWithFlowToken tags every delete made with ctx, including cascaded
// ones, with a correlation token.
func ContextWithFlowToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, flowTokenKey, token)
}

// FlowTokenFrom returns the flow token carried by ctx, or "".
func FlowTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(flowTokenKey).(string)
	return token
}

// deleteDepth is 0 for a delete started by a caller and grows by one for
// every delete made from a delete hook.
func deleteDepth(ctx context.Context) int {
	depth, _ := ctx.Value(deleteDepthKey).(int)
	return depth
}
