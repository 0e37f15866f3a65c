// Package issuer is the off-path side of lazy minting: the minter signs
// vouchers here and publishes them for buyers to redeem later. Nothing in
// this package touches the redemption ledgers.
package issuer

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"

	"github.com/jonson/721-lazy-mint-demo/internal/voucher"
)

// Signer signs vouchers with the minter key and publishes them to the
// minter's listing in Redis.
type Signer struct {
	privKey *ecdsa.PrivateKey
	domain  *voucher.Domain
	rdb     *redis.Client
}

func NewSigner(privKey *ecdsa.PrivateKey, chainID *big.Int, contractAddr common.Address, rdb *redis.Client) *Signer {
	return &Signer{
		privKey: privKey,
		domain:  voucher.NewDomain(chainID, contractAddr),
		rdb:     rdb,
	}
}

// Address returns the minter identity derived from the signing key.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.privKey.PublicKey)
}

// SignVoucher stamps the voucher with the signer's own address and signs
// it for this deployment's domain.
func (s *Signer) SignVoucher(v *voucher.Voucher) (*voucher.Signed, error) {
	v.Minter = s.Address()
	sv, err := s.domain.Sign(v, s.privKey)
	if err != nil {
		return nil, fmt.Errorf("sign voucher: %w", err)
	}
	return sv, nil
}

// Publish appends a signed voucher to the minter's listing so storefront
// clients can hand it to a buyer.
func (s *Signer) Publish(ctx context.Context, sv *voucher.Signed) error {
	raw, err := json.Marshal(sv)
	if err != nil {
		return fmt.Errorf("marshal voucher: %w", err)
	}
	key := fmt.Sprintf(voucher.ListingKeyFmt, s.Address().Hex())
	return s.rdb.RPush(ctx, key, string(raw)).Err()
}

// Listings returns every voucher this minter has published, oldest first.
func (s *Signer) Listings(ctx context.Context) ([]voucher.Signed, error) {
	key := fmt.Sprintf(voucher.ListingKeyFmt, s.Address().Hex())
	items, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	out := make([]voucher.Signed, 0, len(items))
	for _, raw := range items {
		var sv voucher.Signed
		if err := json.Unmarshal([]byte(raw), &sv); err != nil {
			return nil, fmt.Errorf("unmarshal listing: %w", err)
		}
		out = append(out, sv)
	}
	return out, nil
}
