package mint

import "errors"

// Every redemption failure is terminal for that attempt and leaves no
// partial state; callers retry by submitting a fresh request (possibly
// with a new voucher).
var (
	ErrInvalidSignature = errors.New("mint: invalid signature")
	ErrSignerMismatch   = errors.New("mint: voucher not signed by its minter")
	ErrInvalidVoucher   = errors.New("mint: invalid voucher")
	ErrExpired          = errors.New("mint: voucher expired")
	ErrAlreadyRedeemed  = errors.New("mint: token id already redeemed")
	ErrPriceMismatch    = errors.New("mint: payment does not match voucher price")
	ErrCurrencyMismatch = errors.New("mint: wrong payment mode for voucher currency")
	ErrTransferFailed   = errors.New("mint: payment transfer failed")
	ErrAlreadyExists    = errors.New("mint: token id already exists")
)
