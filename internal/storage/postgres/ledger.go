package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"simpleamm/internal/ledger"
)

const checkViolation = "23514"

// Ledger keeps balances in ledger_balances and supplies in ledger_supplies.
// Every call runs in its own transaction; Commit runs a whole batch in one.
type Ledger struct {
	db *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error {
	return l.Commit(ctx, []ledger.Op{{Kind: ledger.OpTransfer, Asset: asset, From: from, To: to, Amount: amount}})
}

func (l *Ledger) Mint(ctx context.Context, asset, to common.Address, amount uint64) error {
	return l.Commit(ctx, []ledger.Op{{Kind: ledger.OpMint, Asset: asset, To: to, Amount: amount}})
}

func (l *Ledger) Burn(ctx context.Context, asset, from common.Address, amount uint64) error {
	return l.Commit(ctx, []ledger.Op{{Kind: ledger.OpBurn, Asset: asset, From: from, Amount: amount}})
}

func (l *Ledger) BalanceOf(ctx context.Context, owner, asset common.Address) (uint64, error) {
	return scanAmount(l.db.QueryRow(ctx,
		`SELECT amount::text FROM ledger_balances WHERE owner=$1 AND asset=$2`,
		owner.Hex(), asset.Hex(),
	))
}

func (l *Ledger) TotalSupply(ctx context.Context, asset common.Address) (uint64, error) {
	return scanAmount(l.db.QueryRow(ctx,
		`SELECT supply::text FROM ledger_supplies WHERE asset=$1`,
		asset.Hex(),
	))
}

// Commit applies ops in one transaction. Any failing op rolls back the lot.
// A batch aborted by a deadlock with another pool's batch is run again.
func (l *Ledger) Commit(ctx context.Context, ops []ledger.Op) error {
	return withRetry(ctx, commitRetries, commitBackoff, commitRetryable, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
			for i, op := range ops {
				if op.Amount == 0 {
					continue
				}
				if err := applyOp(ctx, tx, op); err != nil {
					return fmt.Errorf("%s step %d: %w", op.Kind, i, err)
				}
			}
			return nil
		})
	})
}

func applyOp(ctx context.Context, tx pgx.Tx, op ledger.Op) error {
	switch op.Kind {
	case ledger.OpTransfer:
		if op.From == op.To {
			return nil
		}
		if err := debit(ctx, tx, op.From, op.Asset, op.Amount); err != nil {
			return err
		}
		return credit(ctx, tx, op.To, op.Asset, op.Amount)
	case ledger.OpMint:
		if err := adjustSupply(ctx, tx, op.Asset, op.Amount, true); err != nil {
			return err
		}
		return credit(ctx, tx, op.To, op.Asset, op.Amount)
	case ledger.OpBurn:
		if err := debit(ctx, tx, op.From, op.Asset, op.Amount); err != nil {
			return err
		}
		return adjustSupply(ctx, tx, op.Asset, op.Amount, false)
	default:
		return fmt.Errorf("unknown ledger op %d", op.Kind)
	}
}

func debit(ctx context.Context, tx pgx.Tx, owner, asset common.Address, amount uint64) error {
	held, err := scanAmount(tx.QueryRow(ctx,
		`SELECT amount::text FROM ledger_balances WHERE owner=$1 AND asset=$2 FOR UPDATE`,
		owner.Hex(), asset.Hex(),
	))
	if err != nil {
		return err
	}
	if held < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ledger.ErrInsufficientBalance, owner.Hex(), held, asset.Hex(), amount)
	}
	_, err = tx.Exec(ctx,
		`UPDATE ledger_balances SET amount = amount - $3::numeric, updated_at = now() WHERE owner=$1 AND asset=$2`,
		owner.Hex(), asset.Hex(), numeric(amount),
	)
	return err
}

func credit(ctx context.Context, tx pgx.Tx, owner, asset common.Address, amount uint64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_balances (owner, asset, amount, updated_at)
		VALUES ($1, $2, $3::numeric, now())
		ON CONFLICT (owner, asset) DO UPDATE
		SET amount = ledger_balances.amount + EXCLUDED.amount, updated_at = now()
	`, owner.Hex(), asset.Hex(), numeric(amount))
	if isCheckViolation(err) {
		return fmt.Errorf("%w: %s of %s", ledger.ErrBalanceOverflow, owner.Hex(), asset.Hex())
	}
	return err
}

func adjustSupply(ctx context.Context, tx pgx.Tx, asset common.Address, amount uint64, increase bool) error {
	query := `
		INSERT INTO ledger_supplies (asset, supply, updated_at)
		VALUES ($1, $2::numeric, now())
		ON CONFLICT (asset) DO UPDATE
		SET supply = ledger_supplies.supply + EXCLUDED.supply, updated_at = now()
	`
	if !increase {
		query = `UPDATE ledger_supplies SET supply = supply - $2::numeric, updated_at = now() WHERE asset=$1`
	}
	_, err := tx.Exec(ctx, query, asset.Hex(), numeric(amount))
	if isCheckViolation(err) {
		if increase {
			return fmt.Errorf("%w: %s", ledger.ErrSupplyOverflow, asset.Hex())
		}
		return fmt.Errorf("%w: supply of %s", ledger.ErrInsufficientBalance, asset.Hex())
	}
	return err
}

func scanAmount(row pgx.Row) (uint64, error) {
	var text string
	if err := row.Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(text, 10, 64)
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolation
}
