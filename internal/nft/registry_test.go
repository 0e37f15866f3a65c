package nft

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/jonson/721-lazy-mint-demo/internal/state"
)

var buyer = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

func newTxn(t *testing.T) (*state.Txn, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return state.New(rdb).Begin(), context.Background()
}

func TestIssue_BindsOwnerAndCID(t *testing.T) {
	txn, ctx := newTxn(t)

	if err := Issue(ctx, txn, big.NewInt(1), buyer, "QmTest"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	owner, ok, err := OwnerOf(ctx, txn, big.NewInt(1))
	if err != nil || !ok {
		t.Fatalf("OwnerOf: ok=%v err=%v", ok, err)
	}
	if owner != buyer {
		t.Fatalf("owner = %s, want %s", owner.Hex(), buyer.Hex())
	}

	uri, ok, err := TokenURI(ctx, txn, big.NewInt(1))
	if err != nil || !ok {
		t.Fatalf("TokenURI: ok=%v err=%v", ok, err)
	}
	if uri != "ipfs://QmTest" {
		t.Fatalf("uri = %q, want ipfs://QmTest", uri)
	}

	bal, err := BalanceOf(ctx, txn, buyer)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("balance = %s, want 1", bal)
	}
}

func TestIssue_Twice(t *testing.T) {
	txn, ctx := newTxn(t)

	if err := Issue(ctx, txn, big.NewInt(7), buyer, "QmOne"); err != nil {
		t.Fatal(err)
	}
	err := Issue(ctx, txn, big.NewInt(7), buyer, "QmTwo")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestOwnerOf_Unminted(t *testing.T) {
	txn, ctx := newTxn(t)

	_, ok, err := OwnerOf(ctx, txn, big.NewInt(404))
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if ok {
		t.Fatal("unminted id should not have an owner")
	}
}
