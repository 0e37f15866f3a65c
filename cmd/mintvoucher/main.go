// mintvoucher signs a lazy-mint voucher with the minter key and prints it
// as JSON, ready for a buyer to submit to the redemption API.
//
// Usage:
//
//	MINTER_SIGNING_KEY=<hex> mintvoucher -chain-id 1337 -contract 0x... \
//	  -token-id 1 -price 1000 -cid Qm... -fee-bips 250 \
//	  -fee-recipient 0x... -remainder-recipient 0x...
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jonson/721-lazy-mint-demo/internal/voucher"
)

func main() {
	var (
		chainID      = flag.Int64("chain-id", 0, "EIP-712 chain id")
		contract     = flag.String("contract", "", "verifying contract address")
		tokenID      = flag.Int64("token-id", 0, "token id to authorize")
		price        = flag.String("price", "0", "price in smallest currency unit")
		currency     = flag.String("currency", "", "token address, empty for native coin")
		cid          = flag.String("cid", "", "content CID")
		expiresAt    = flag.Int64("expires-at", 0, "unix expiry, 0 = never")
		feeBips      = flag.Uint64("fee-bips", 0, "platform cut in basis points")
		feeRecipient = flag.String("fee-recipient", "", "platform fee recipient")
		remainder    = flag.String("remainder-recipient", "", "seller proceeds recipient")
	)
	flag.Parse()

	keyHex := os.Getenv("MINTER_SIGNING_KEY")
	if keyHex == "" {
		fail("MINTER_SIGNING_KEY not set")
	}
	if *chainID == 0 || *contract == "" || *tokenID <= 0 || *cid == "" {
		fail("chain-id, contract, token-id and cid are required")
	}

	privKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		fail("parse minter key: %v", err)
	}

	priceWei, ok := new(big.Int).SetString(*price, 10)
	if !ok || priceWei.Sign() < 0 {
		fail("invalid price %q", *price)
	}

	v := &voucher.Voucher{
		TokenID:            big.NewInt(*tokenID),
		Price:              priceWei,
		Currency:           common.HexToAddress(*currency),
		CID:                *cid,
		Minter:             crypto.PubkeyToAddress(privKey.PublicKey),
		ExpiresAt:          *expiresAt,
		FeeBips:            *feeBips,
		FeeRecipient:       common.HexToAddress(*feeRecipient),
		RemainderRecipient: common.HexToAddress(*remainder),
	}

	domain := voucher.NewDomain(big.NewInt(*chainID), common.HexToAddress(*contract))
	sv, err := domain.Sign(v, privKey)
	if err != nil {
		fail("sign voucher: %v", err)
	}

	out, err := json.MarshalIndent(sv, "", "  ")
	if err != nil {
		fail("marshal voucher: %v", err)
	}
	fmt.Println(string(out))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
