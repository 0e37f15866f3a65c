package voucher

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Voucher is a minter-signed authorization to lazily create one NFT.
// It is produced off the redemption path and consumed at most once; the
// engine never stores it, only the derived "redeemed" fact.
type Voucher struct {
	TokenID  *big.Int       `json:"token_id"`
	Price    *big.Int       `json:"price"`
	Currency common.Address `json:"currency"` // zero address = native coin
	CID      string         `json:"cid"`

	Minter    common.Address `json:"minter"`
	ExpiresAt int64          `json:"expires_at"` // unix seconds, 0 = never

	FeeBips            uint64         `json:"fee_bips"` // platform cut, 0..10000
	FeeRecipient       common.Address `json:"fee_recipient"`
	RemainderRecipient common.Address `json:"remainder_recipient"`
}

// Signed is a voucher plus the minter's 65-byte EIP-712 signature.
type Signed struct {
	Voucher
	Signature []byte `json:"signature"`
}

// IsNative reports whether the voucher is priced in the native coin
// rather than an ERC20-style token.
func (v *Voucher) IsNative() bool {
	return v.Currency == (common.Address{})
}

// Redis key templates
const (
	ListingKeyFmt = "vouchers:listed:%s" // %s = minter address (checksummed)
)
