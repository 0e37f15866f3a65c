// Package nft is the minimal ownership registry behind the mint engine:
// token id → owner and token id → content address, both write-once.
package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jonson/721-lazy-mint-demo/internal/state"
)

// ErrAlreadyExists means the token id is already bound to an owner.
var ErrAlreadyExists = errors.New("nft: token already exists")

// Redis key templates
const (
	ownerKeyFmt = "nft:owner:%s" // %s = token id (decimal)
	cidKeyFmt   = "nft:cid:%s"
	countKeyFmt = "nft:count:%s" // %s = owner address
)

// Issue binds tokenID to owner and its content address. The binding is
// permanent: a second Issue for the same id fails and the cid is never
// re-pointed.
func Issue(ctx context.Context, txn *state.Txn, tokenID *big.Int, owner common.Address, cid string) error {
	ownerKey := fmt.Sprintf(ownerKeyFmt, tokenID.String())
	exists, err := txn.Exists(ctx, ownerKey)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}

	txn.Set(ownerKey, owner.Hex())
	txn.Set(fmt.Sprintf(cidKeyFmt, tokenID.String()), cid)

	count, err := txn.GetBig(ctx, fmt.Sprintf(countKeyFmt, owner.Hex()))
	if err != nil {
		return err
	}
	txn.SetBig(fmt.Sprintf(countKeyFmt, owner.Hex()), new(big.Int).Add(count, big.NewInt(1)))
	return nil
}

// OwnerOf returns the owner of tokenID; ok is false for unminted ids.
func OwnerOf(ctx context.Context, txn *state.Txn, tokenID *big.Int) (common.Address, bool, error) {
	val, ok, err := txn.Get(ctx, fmt.Sprintf(ownerKeyFmt, tokenID.String()))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.HexToAddress(val), true, nil
}

// TokenURI returns the ipfs URI for a minted token id.
func TokenURI(ctx context.Context, txn *state.Txn, tokenID *big.Int) (string, bool, error) {
	cid, ok, err := txn.Get(ctx, fmt.Sprintf(cidKeyFmt, tokenID.String()))
	if err != nil || !ok {
		return "", false, err
	}
	return "ipfs://" + cid, true, nil
}

// BalanceOf returns how many tokens the address owns.
func BalanceOf(ctx context.Context, txn *state.Txn, owner common.Address) (*big.Int, error) {
	return txn.GetBig(ctx, fmt.Sprintf(countKeyFmt, owner.Hex()))
}
