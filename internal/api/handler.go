// Package api exposes the redemption engine over HTTP. Mutating routes
// sit behind the wallet-signature middleware; the authenticated wallet is
// the buyer (for mints) or the recipient (for withdrawals).
package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jonson/721-lazy-mint-demo/internal/auth"
	"github.com/jonson/721-lazy-mint-demo/internal/issuer"
	"github.com/jonson/721-lazy-mint-demo/internal/mint"
	"github.com/jonson/721-lazy-mint-demo/internal/voucher"
)

type Handler struct {
	engine *mint.Engine
	signer *issuer.Signer // nil when this instance has no minter key
	log    *zap.Logger
}

func NewHandler(engine *mint.Engine, signer *issuer.Signer, log *zap.Logger) *Handler {
	return &Handler{engine: engine, signer: signer, log: log}
}

// bindPayload unmarshals the signed payload the auth middleware stashed.
// Taking the payload from the signed message, not the request body, keeps
// what the wallet signed and what the engine executes identical.
func bindPayload(c *gin.Context, out any) error {
	raw, ok := c.Get(auth.CtxPayload)
	if !ok {
		return errors.New("no signed payload")
	}
	payload, ok := raw.(json.RawMessage)
	if !ok {
		return errors.New("bad payload type")
	}
	return json.Unmarshal(payload, out)
}

// Register mounts the mutating routes. The wallet-auth middleware must
// already be applied to the group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/mint/native", h.handleMintNative)
	rg.POST("/mint/token", h.handleMintToken)
	rg.POST("/withdraw", h.handleWithdraw)
	rg.POST("/vouchers", h.handleCreateVoucher)
}

// RegisterPublic mounts the read-only query surface.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/assets/:id", h.handleAsset)
	rg.GET("/payments/:addr", h.handlePayments)
	rg.GET("/balance/:addr", h.handleBalance)
	rg.GET("/vouchers", h.handleListings)
}

// ── Mint ──────────────────────────────────────────────────────────────────────

type mintRequest struct {
	Voucher voucher.Signed `json:"voucher"`
	Value   string         `json:"value,omitempty"` // native mode: attached payment, decimal
}

func (h *Handler) handleMintNative(c *gin.Context) {
	wallet := common.HexToAddress(c.GetString(auth.CtxWallet))

	var req mintRequest
	if err := bindPayload(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok || value.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value"})
		return
	}

	id, err := h.engine.MintWithVoucherNative(c.Request.Context(), wallet, &req.Voucher, value)
	if err != nil {
		h.rejectMint(c, wallet, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": id.String()})
}

func (h *Handler) handleMintToken(c *gin.Context) {
	wallet := common.HexToAddress(c.GetString(auth.CtxWallet))

	var req mintRequest
	if err := bindPayload(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	id, err := h.engine.MintWithVoucher(c.Request.Context(), wallet, &req.Voucher)
	if err != nil {
		h.rejectMint(c, wallet, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": id.String()})
}

func (h *Handler) rejectMint(c *gin.Context, wallet common.Address, err error) {
	h.log.Warn("redemption rejected",
		zap.String("buyer", wallet.Hex()),
		zap.Error(err),
	)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps the engine's error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mint.ErrAlreadyRedeemed), errors.Is(err, mint.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, mint.ErrTransferFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, mint.ErrExpired):
		return http.StatusGone
	case errors.Is(err, mint.ErrInvalidSignature),
		errors.Is(err, mint.ErrSignerMismatch),
		errors.Is(err, mint.ErrInvalidVoucher),
		errors.Is(err, mint.ErrPriceMismatch),
		errors.Is(err, mint.ErrCurrencyMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ── Withdraw ──────────────────────────────────────────────────────────────────

func (h *Handler) handleWithdraw(c *gin.Context) {
	wallet := common.HexToAddress(c.GetString(auth.CtxWallet))

	amount, err := h.engine.Withdraw(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount.String()})
}

// ── Voucher creation (minter only) ────────────────────────────────────────────

func (h *Handler) handleCreateVoucher(c *gin.Context) {
	if h.signer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no minter configured"})
		return
	}
	wallet := c.GetString(auth.CtxWallet)
	if !strings.EqualFold(wallet, h.signer.Address().Hex()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the minter"})
		return
	}

	var v voucher.Voucher
	if err := bindPayload(c, &v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sv, err := h.signer.SignVoucher(&v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signing failed"})
		return
	}
	if err := h.signer.Publish(c.Request.Context(), sv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, sv)
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (h *Handler) handleAsset(c *gin.Context) {
	id, ok := new(big.Int).SetString(c.Param("id"), 10)
	if !ok || id.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}
	ctx := c.Request.Context()

	redeemed, err := h.engine.Redeemed(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	owner, minted, err := h.engine.OwnerOf(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !minted {
		c.JSON(http.StatusOK, gin.H{"redeemed": redeemed, "minted": false})
		return
	}
	uri, _, err := h.engine.TokenURI(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"redeemed":  redeemed,
		"minted":    true,
		"owner":     owner.Hex(),
		"token_uri": uri,
	})
}

func (h *Handler) handlePayments(c *gin.Context) {
	addr := common.HexToAddress(c.Param("addr"))
	amount, err := h.engine.Payments(c.Request.Context(), addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr.Hex(), "amount": amount.String()})
}

func (h *Handler) handleBalance(c *gin.Context) {
	addr := common.HexToAddress(c.Param("addr"))
	bal, err := h.engine.NativeBalance(c.Request.Context(), addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr.Hex(), "balance": bal.String()})
}

func (h *Handler) handleListings(c *gin.Context) {
	if h.signer == nil {
		c.JSON(http.StatusOK, gin.H{"vouchers": []voucher.Signed{}})
		return
	}
	listed, err := h.signer.Listings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": listed})
}
