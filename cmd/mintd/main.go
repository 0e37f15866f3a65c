package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonson/721-lazy-mint-demo/internal/api"
	"github.com/jonson/721-lazy-mint-demo/internal/auth"
	"github.com/jonson/721-lazy-mint-demo/internal/config"
	"github.com/jonson/721-lazy-mint-demo/internal/issuer"
	"github.com/jonson/721-lazy-mint-demo/internal/mint"
	"github.com/jonson/721-lazy-mint-demo/internal/state"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Redemption engine ─────────────────────────────────────────────────────
	chainID := big.NewInt(cfg.Chain.ChainID)
	contractAddr := common.HexToAddress(cfg.Chain.ContractAddress)
	engine := mint.NewEngine(state.New(rdb), chainID, contractAddr, log)

	// ── Voucher signer (only when this instance holds the minter key) ────────
	var signer *issuer.Signer
	if cfg.Chain.MinterKey != "" {
		privKey, err := crypto.HexToECDSA(cfg.Chain.MinterKey)
		if err != nil {
			log.Fatal("parse minter key failed", zap.Error(err))
		}
		signer = issuer.NewSigner(privKey, chainID, contractAddr, rdb)
		log.Info("voucher signing enabled", zap.String("minter", signer.Address().Hex()))
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	handler := api.NewHandler(engine, signer, log)
	handler.Register(r.Group("/api", auth.Middleware(rdb)))
	handler.RegisterPublic(r.Group("/api"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Int64("chain_id", cfg.Chain.ChainID),
			zap.String("contract", contractAddr.Hex()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
