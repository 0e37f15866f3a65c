package voucher

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrMalformedSignature covers wrong-length, out-of-range, or
// non-canonical (high-s) signatures.
var ErrMalformedSignature = errors.New("malformed signature")

var (
	voucherTypeHash = crypto.Keccak256Hash([]byte(
		"NFTVoucher(uint256 tokenId,uint256 price,address currency,string cid," +
			"address minter,uint256 expiresAt,uint256 primaryRecipientBips," +
			"address primaryRecipient,address remainderRecipient)",
	))
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	domainNameHash    = crypto.Keccak256Hash([]byte("Voucher"))
	domainVersionHash = crypto.Keccak256Hash([]byte("1"))
)

// Domain binds signatures to one deployment (chain + verifying
// instance). The separator is computed once at construction and is
// immutable afterwards.
type Domain struct {
	chainID   *big.Int
	verifying common.Address
	separator [32]byte
}

func NewDomain(chainID *big.Int, verifyingAddr common.Address) *Domain {
	// ABI-encode: (bytes32, bytes32, bytes32, uint256, address)
	// Each element occupies a 32-byte slot; addresses are right-aligned.
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], domainNameHash[:])
	copy(encoded[64:96], domainVersionHash[:])
	chainID.FillBytes(encoded[96:128])
	copy(encoded[140:160], verifyingAddr.Bytes())

	return &Domain{
		chainID:   chainID,
		verifying: verifyingAddr,
		separator: crypto.Keccak256Hash(encoded),
	}
}

// Separator returns the EIP-712 domain separator.
func (d *Domain) Separator() [32]byte { return d.separator }

// Hash returns the EIP-712 digest the minter signs:
// keccak256(0x1901 || domainSeparator || structHash).
// Encoding is deterministic over the declared fields; the dynamic-length
// CID enters as its keccak hash so every field occupies a fixed slot.
// Nil TokenID/Price encode as zero.
func (d *Domain) Hash(v *Voucher) [32]byte {
	encoded := make([]byte, 10*32)
	copy(encoded[0:32], voucherTypeHash[:])
	fillBig(v.TokenID, encoded[32:64])
	fillBig(v.Price, encoded[64:96])
	copy(encoded[108:128], v.Currency.Bytes()) // padded address
	cidHash := crypto.Keccak256Hash([]byte(v.CID))
	copy(encoded[128:160], cidHash[:])
	copy(encoded[172:192], v.Minter.Bytes())
	new(big.Int).SetInt64(v.ExpiresAt).FillBytes(encoded[192:224])
	new(big.Int).SetUint64(v.FeeBips).FillBytes(encoded[224:256])
	copy(encoded[268:288], v.FeeRecipient.Bytes())
	copy(encoded[300:320], v.RemainderRecipient.Bytes())

	structHash := crypto.Keccak256Hash(encoded)

	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], d.separator[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

func fillBig(v *big.Int, slot []byte) {
	if v != nil {
		v.FillBytes(slot)
	}
}

// Sign signs the voucher with the minter's key and returns the signed form.
func (d *Domain) Sign(v *Voucher, privKey *ecdsa.PrivateKey) (*Signed, error) {
	digest := d.Hash(v)
	sig, err := crypto.Sign(digest[:], privKey)
	if err != nil {
		return nil, err
	}
	// Convert V from 0/1 to 27/28 for ecrecover compatibility
	sig[64] += 27
	return &Signed{Voucher: *v, Signature: sig}, nil
}

// Recover returns the address that signed the voucher. It rejects
// non-canonical signatures (high-s, bad recovery id) so a single
// authorization cannot be replayed as a superficially distinct one.
// Stateless: the caller compares the result against Minter.
func (d *Domain) Recover(sv *Signed) (common.Address, error) {
	if len(sv.Signature) != 65 {
		return common.Address{}, ErrMalformedSignature
	}
	sig := make([]byte, 65)
	copy(sig, sv.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, ErrMalformedSignature
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return common.Address{}, ErrMalformedSignature
	}

	digest := d.Hash(&sv.Voucher)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, ErrMalformedSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}
