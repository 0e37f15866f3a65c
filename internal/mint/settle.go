package mint

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jonson/721-lazy-mint-demo/internal/bank"
	"github.com/jonson/721-lazy-mint-demo/internal/state"
	"github.com/jonson/721-lazy-mint-demo/internal/voucher"
)

// settlement is the payment backend behind the shared state machine. The
// two variants differ only in how funds move: native payments accrue to
// the pull ledger, token payments are pushed from the buyer's allowance.
type settlement interface {
	settle(ctx context.Context, txn *state.Txn, v *voucher.Voucher, buyer common.Address, fee, remainder *big.Int) error
}

// nativeSettlement takes the value attached to the call and credits the
// recipients' withdrawable balances. Crediting a ledger instead of
// pushing keeps a non-receiving recipient from blocking the mint.
type nativeSettlement struct {
	value *big.Int
}

func (s *nativeSettlement) settle(ctx context.Context, txn *state.Txn, v *voucher.Voucher, buyer common.Address, fee, remainder *big.Int) error {
	if !v.IsNative() {
		return ErrCurrencyMismatch
	}
	if s.value == nil || s.value.Cmp(v.Price) != 0 {
		return ErrPriceMismatch
	}
	if err := bank.NativeDebit(ctx, txn, buyer, v.Price); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := creditPayment(ctx, txn, v.FeeRecipient, fee); err != nil {
		return err
	}
	return creditPayment(ctx, txn, v.RemainderRecipient, remainder)
}

func creditPayment(ctx context.Context, txn *state.Txn, recipient common.Address, amount *big.Int) error {
	key := fmt.Sprintf(paymentsKeyFmt, recipient.Hex())
	bal, err := txn.GetBig(ctx, key)
	if err != nil {
		return err
	}
	txn.SetBig(key, new(big.Int).Add(bal, amount))
	return nil
}

// tokenSettlement pulls the split directly from the buyer's allowance,
// fee and remainder each in their own transferFrom. A failed pull is the
// buyer's own allowance setup, so pushing directly is safe here.
type tokenSettlement struct {
	spender common.Address
}

func (s *tokenSettlement) settle(ctx context.Context, txn *state.Txn, v *voucher.Voucher, buyer common.Address, fee, remainder *big.Int) error {
	if v.IsNative() {
		return ErrCurrencyMismatch
	}
	if err := bank.TransferFrom(ctx, txn, v.Currency, s.spender, buyer, v.FeeRecipient, fee); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := bank.TransferFrom(ctx, txn, v.Currency, s.spender, buyer, v.RemainderRecipient, remainder); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}
