package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrRollbackFailed marks a compensation step that could not be applied.
var ErrRollbackFailed = errors.New("rollback failed")

// Batch stages the ledger calls of one engine operation. Nothing reaches the
// ledger until Commit.
type Batch struct {
	ops []Op
}

func (b *Batch) Transfer(from, to, asset common.Address, amount uint64) {
	b.ops = append(b.ops, Op{Kind: OpTransfer, Asset: asset, From: from, To: to, Amount: amount})
}

func (b *Batch) Mint(asset, to common.Address, amount uint64) {
	b.ops = append(b.ops, Op{Kind: OpMint, Asset: asset, To: to, Amount: amount})
}

func (b *Batch) Burn(asset, from common.Address, amount uint64) {
	b.ops = append(b.ops, Op{Kind: OpBurn, Asset: asset, From: from, Amount: amount})
}

// Ops returns the staged operations in commit order.
func (b *Batch) Ops() []Op {
	return append([]Op(nil), b.ops...)
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Inverse returns a batch undoing b once b has been committed.
func (b *Batch) Inverse() *Batch {
	inv := &Batch{ops: make([]Op, 0, len(b.ops))}
	for i := len(b.ops) - 1; i >= 0; i-- {
		inv.ops = append(inv.ops, b.ops[i].Inverse())
	}
	return inv
}

// Commit applies the batch atomically. Ledgers implementing Committer do it
// natively; any other ledger is driven op by op and every applied op is
// compensated in reverse order when a later one fails.
func (b *Batch) Commit(ctx context.Context, l Ledger) error {
	if len(b.ops) == 0 {
		return nil
	}
	if c, ok := l.(Committer); ok {
		return c.Commit(ctx, b.ops)
	}

	j := &Journal{ledger: l}
	for i, op := range b.ops {
		if err := j.Apply(ctx, op); err != nil {
			cause := fmt.Errorf("%s step %d: %w", op.Kind, i, err)
			if rbErr := j.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				return errors.Join(cause, rbErr)
			}
			return cause
		}
	}
	return nil
}

// Journal records applied ops so they can be undone.
type Journal struct {
	ledger  Ledger
	applied []Op
}

// NewJournal returns a Journal driving l.
func NewJournal(l Ledger) *Journal {
	return &Journal{ledger: l}
}

// Apply runs op and records it on success.
func (j *Journal) Apply(ctx context.Context, op Op) error {
	if err := op.Apply(ctx, j.ledger); err != nil {
		return err
	}
	j.applied = append(j.applied, op)
	return nil
}

// Rollback undoes every recorded op, newest first. It keeps going after a
// failed step and reports all failures.
func (j *Journal) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(j.applied) - 1; i >= 0; i-- {
		undo := j.applied[i].Inverse()
		if err := undo.Apply(ctx, j.ledger); err != nil {
			errs = append(errs, fmt.Errorf("%w: undo %s step %d: %v", ErrRollbackFailed, j.applied[i].Kind, i, err))
		}
	}
	j.applied = nil
	return errors.Join(errs...)
}
