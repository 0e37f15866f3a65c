package state

import (
	"context"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), rdb
}

// ── Txn reads ─────────────────────────────────────────────────────────────────

func TestTxn_ReadThrough(t *testing.T) {
	st, rdb := newTestStore(t)
	ctx := context.Background()
	rdb.Set(ctx, "k", "committed", 0)

	txn := st.Begin()
	val, ok, err := txn.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || val != "committed" {
		t.Fatalf("got (%q, %v), want (committed, true)", val, ok)
	}
}

func TestTxn_StagedWriteShadowsRedis(t *testing.T) {
	st, rdb := newTestStore(t)
	ctx := context.Background()
	rdb.Set(ctx, "k", "old", 0)

	txn := st.Begin()
	txn.Set("k", "staged")
	val, _, err := txn.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "staged" {
		t.Fatalf("got %q, want staged", val)
	}

	// Redis still holds the old value until commit
	if got, _ := rdb.Get(ctx, "k").Result(); got != "old" {
		t.Fatalf("redis value changed before commit: %q", got)
	}
}

func TestTxn_GetBig_AbsentIsZero(t *testing.T) {
	st, _ := newTestStore(t)
	txn := st.Begin()
	n, err := txn.GetBig(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetBig: %v", err)
	}
	if n.Sign() != 0 {
		t.Fatalf("absent key read as %s, want 0", n)
	}
}

// ── Commit / abandon ──────────────────────────────────────────────────────────

func TestTxn_CommitFlushesAll(t *testing.T) {
	st, rdb := newTestStore(t)
	ctx := context.Background()

	txn := st.Begin()
	txn.Set("a", "1")
	txn.SetBig("b", big.NewInt(975))
	txn.Set("a", "2") // last write wins
	if err := txn.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got, _ := rdb.Get(ctx, "a").Result(); got != "2" {
		t.Fatalf("a = %q, want 2", got)
	}
	if got, _ := rdb.Get(ctx, "b").Result(); got != "975" {
		t.Fatalf("b = %q, want 975", got)
	}
}

func TestTxn_AbandonLeavesNoTrace(t *testing.T) {
	st, rdb := newTestStore(t)
	ctx := context.Background()

	txn := st.Begin()
	txn.Set("ghost", "boo")
	// never committed

	if n, _ := rdb.Exists(ctx, "ghost").Result(); n != 0 {
		t.Fatal("abandoned txn leaked a write")
	}
}

func TestTxn_DoubleCommit(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	txn := st.Begin()
	txn.Set("k", "v")
	if err := txn.Commit(ctx); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := txn.Commit(ctx); err == nil {
		t.Fatal("second Commit should fail")
	}
}
