// Package mint is the voucher redemption engine: it authenticates an
// EIP-712 voucher, enforces at-most-once redemption, settles payment with
// a basis-point fee split, and issues the NFT — all as one transaction.
package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/jonson/721-lazy-mint-demo/internal/bank"
	"github.com/jonson/721-lazy-mint-demo/internal/nft"
	"github.com/jonson/721-lazy-mint-demo/internal/state"
	"github.com/jonson/721-lazy-mint-demo/internal/voucher"
)

// Redis key templates
const (
	redeemedKeyFmt = "mint:redeemed:%s" // %s = token id (decimal)
	paymentsKeyFmt = "mint:payments:%s" // %s = recipient address
)

// Engine owns the redemption and payment ledgers for one deployment.
// chainID and contractAddr pin the EIP-712 domain: vouchers signed for a
// different deployment never authenticate here.
type Engine struct {
	mu           sync.Mutex // redemptions run one at a time
	store        *state.Store
	domain       *voucher.Domain
	chainID      *big.Int
	contractAddr common.Address
	now          func() int64
	log          *zap.Logger
}

func NewEngine(store *state.Store, chainID *big.Int, contractAddr common.Address, log *zap.Logger) *Engine {
	return &Engine{
		store:        store,
		domain:       voucher.NewDomain(chainID, contractAddr),
		chainID:      chainID,
		contractAddr: contractAddr,
		now:          func() int64 { return time.Now().Unix() },
		log:          log,
	}
}

// ChainID returns the EIP-712 chain id the engine verifies against.
func (e *Engine) ChainID() *big.Int { return e.chainID }

// ContractAddress returns the verifying instance identity.
func (e *Engine) ContractAddress() common.Address { return e.contractAddr }

// Split divides price into the platform fee and the seller remainder.
// Fee is floor(price*feeBips/10000): the platform never gains from
// rounding and fee+remainder == price always holds.
func Split(price *big.Int, feeBips uint64) (fee, remainder *big.Int) {
	fee = new(big.Int).Mul(price, new(big.Int).SetUint64(feeBips))
	fee.Div(fee, big.NewInt(10000))
	remainder = new(big.Int).Sub(price, fee)
	return fee, remainder
}

// MintWithVoucherNative redeems a native-coin voucher. value is the
// payment attached to the call and must equal the voucher price exactly;
// proceeds accrue to the recipients' pull-payment balances.
func (e *Engine) MintWithVoucherNative(ctx context.Context, buyer common.Address, sv *voucher.Signed, value *big.Int) (*big.Int, error) {
	return e.redeem(ctx, buyer, sv, &nativeSettlement{value: value})
}

// MintWithVoucher redeems a token-priced voucher. The buyer must have
// approved at least the voucher price for this engine's address; fee and
// remainder are pushed to the recipients' token balances directly.
func (e *Engine) MintWithVoucher(ctx context.Context, buyer common.Address, sv *voucher.Signed) (*big.Int, error) {
	return e.redeem(ctx, buyer, sv, &tokenSettlement{spender: e.contractAddr})
}

// redeem drives the shared state machine:
// authenticate → reserve → settle → issue, staged on one transaction.
// Nothing is committed until the final step succeeds, so any failure
// rolls back every prior effect of this redemption.
func (e *Engine) redeem(ctx context.Context, buyer common.Address, sv *voucher.Signed, s settlement) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Reject malformed vouchers (nil amounts, out-of-range bips) before
	// anything dereferences their fields
	if err := validate(&sv.Voucher); err != nil {
		return nil, err
	}

	// Authenticate
	signer, err := e.domain.Recover(sv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != sv.Minter {
		return nil, ErrSignerMismatch
	}

	txn := e.store.Begin()

	// Reserve: expiry + at-most-once, checked before any funds move
	if sv.ExpiresAt != 0 && e.now() >= sv.ExpiresAt {
		return nil, ErrExpired
	}
	redeemedKey := fmt.Sprintf(redeemedKeyFmt, sv.TokenID.String())
	taken, err := txn.Exists(ctx, redeemedKey)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrAlreadyRedeemed
	}
	txn.Set(redeemedKey, "1")

	// Settle
	fee, remainder := Split(sv.Price, sv.FeeBips)
	if err := s.settle(ctx, txn, &sv.Voucher, buyer, fee, remainder); err != nil {
		return nil, err
	}

	// Issue (defense-in-depth next to the redemption ledger)
	if err := nft.Issue(ctx, txn, sv.TokenID, buyer, sv.CID); err != nil {
		if errors.Is(err, nft.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	e.log.Info("voucher redeemed",
		zap.String("token_id", sv.TokenID.String()),
		zap.String("buyer", buyer.Hex()),
		zap.String("price", sv.Price.String()),
		zap.String("fee", fee.String()),
	)
	return sv.TokenID, nil
}

func validate(v *voucher.Voucher) error {
	if v.TokenID == nil || v.TokenID.Sign() <= 0 {
		return fmt.Errorf("%w: token id must be positive", ErrInvalidVoucher)
	}
	if v.Price == nil || v.Price.Sign() < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidVoucher)
	}
	if v.FeeBips > 10000 {
		return fmt.Errorf("%w: fee bips above 10000", ErrInvalidVoucher)
	}
	return nil
}

// Withdraw moves the recipient's accrued pull-payment balance into their
// native account. Withdrawing a zero balance is a no-op.
func (e *Engine) Withdraw(ctx context.Context, recipient common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	txn := e.store.Begin()
	key := fmt.Sprintf(paymentsKeyFmt, recipient.Hex())
	amount, err := txn.GetBig(ctx, key)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}

	txn.SetBig(key, new(big.Int))
	if err := bank.NativeCredit(ctx, txn, recipient, amount); err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit withdrawal: %w", err)
	}

	e.log.Info("payments withdrawn",
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}

// ── Read-only queries ─────────────────────────────────────────────────────────

// Redeemed reports whether a token id has been redeemed.
func (e *Engine) Redeemed(ctx context.Context, tokenID *big.Int) (bool, error) {
	_, ok, err := e.store.Get(ctx, fmt.Sprintf(redeemedKeyFmt, tokenID.String()))
	return ok, err
}

// Payments returns the recipient's accrued, withdrawable balance.
func (e *Engine) Payments(ctx context.Context, recipient common.Address) (*big.Int, error) {
	return e.store.GetBig(ctx, fmt.Sprintf(paymentsKeyFmt, recipient.Hex()))
}

// OwnerOf returns the owner of a minted token id.
func (e *Engine) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, bool, error) {
	return nft.OwnerOf(ctx, e.store.Begin(), tokenID)
}

// TokenURI returns the content URI of a minted token id.
func (e *Engine) TokenURI(ctx context.Context, tokenID *big.Int) (string, bool, error) {
	return nft.TokenURI(ctx, e.store.Begin(), tokenID)
}

// BalanceOf returns how many tokens an address owns.
func (e *Engine) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return nft.BalanceOf(ctx, e.store.Begin(), owner)
}

// NativeBalance returns an address's native-coin balance.
func (e *Engine) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return bank.NativeBalance(ctx, e.store.Begin(), addr)
}
