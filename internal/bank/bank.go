// Package bank models the identity-and-balance system the mint engine
// settles against: native-coin balances plus ERC20-style token ledgers
// (balance, allowance, transferFrom). All mutations go through a state
// transaction so fund movement commits or rolls back together with the
// redemption that caused it.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jonson/721-lazy-mint-demo/internal/state"
)

var (
	ErrNegativeAmount        = errors.New("bank: negative amount")
	ErrInsufficientFunds     = errors.New("bank: insufficient funds")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
)

// Redis key templates
const (
	nativeKeyFmt    = "bank:native:%s"      // %s = holder
	tokenBalKeyFmt  = "bank:token:%s:%s"    // token, holder
	allowanceKeyFmt = "bank:allow:%s:%s:%s" // token, owner, spender
)

func nativeKey(addr common.Address) string {
	return fmt.Sprintf(nativeKeyFmt, addr.Hex())
}

func tokenKey(token, holder common.Address) string {
	return fmt.Sprintf(tokenBalKeyFmt, token.Hex(), holder.Hex())
}

func allowanceKey(token, owner, spender common.Address) string {
	return fmt.Sprintf(allowanceKeyFmt, token.Hex(), owner.Hex(), spender.Hex())
}

// ── Native coin ───────────────────────────────────────────────────────────────

func NativeBalance(ctx context.Context, txn *state.Txn, addr common.Address) (*big.Int, error) {
	return txn.GetBig(ctx, nativeKey(addr))
}

// NativeCredit mints native funds into an account (deposits, withdrawals
// landing, test faucets).
func NativeCredit(ctx context.Context, txn *state.Txn, addr common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, err := txn.GetBig(ctx, nativeKey(addr))
	if err != nil {
		return err
	}
	txn.SetBig(nativeKey(addr), new(big.Int).Add(bal, amount))
	return nil
}

// NativeDebit removes native funds from an account, failing if the
// balance does not cover the amount.
func NativeDebit(ctx context.Context, txn *state.Txn, addr common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, err := txn.GetBig(ctx, nativeKey(addr))
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	txn.SetBig(nativeKey(addr), new(big.Int).Sub(bal, amount))
	return nil
}

// ── ERC20-style tokens ────────────────────────────────────────────────────────

func TokenBalance(ctx context.Context, txn *state.Txn, token, holder common.Address) (*big.Int, error) {
	return txn.GetBig(ctx, tokenKey(token, holder))
}

func TokenCredit(ctx context.Context, txn *state.Txn, token, holder common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, err := txn.GetBig(ctx, tokenKey(token, holder))
	if err != nil {
		return err
	}
	txn.SetBig(tokenKey(token, holder), new(big.Int).Add(bal, amount))
	return nil
}

func Approve(ctx context.Context, txn *state.Txn, token, owner, spender common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	txn.SetBig(allowanceKey(token, owner, spender), amount)
	return nil
}

func Allowance(ctx context.Context, txn *state.Txn, token, owner, spender common.Address) (*big.Int, error) {
	return txn.GetBig(ctx, allowanceKey(token, owner, spender))
}

// TransferFrom moves tokens from `from` to `to` on `spender`'s authority,
// consuming allowance. Mirrors ERC20 semantics: both the balance and the
// allowance must cover the amount.
func TransferFrom(ctx context.Context, txn *state.Txn, token, spender, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	allowed, err := txn.GetBig(ctx, allowanceKey(token, from, spender))
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	bal, err := txn.GetBig(ctx, tokenKey(token, from))
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	txn.SetBig(allowanceKey(token, from, spender), new(big.Int).Sub(allowed, amount))
	txn.SetBig(tokenKey(token, from), new(big.Int).Sub(bal, amount))

	toBal, err := txn.GetBig(ctx, tokenKey(token, to))
	if err != nil {
		return err
	}
	txn.SetBig(tokenKey(token, to), new(big.Int).Add(toBal, amount))
	return nil
}
