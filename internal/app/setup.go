package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
	"github.com/parlaymkt/auction-relayer/internal/nonce"
	"github.com/parlaymkt/auction-relayer/internal/relay"
	"github.com/parlaymkt/auction-relayer/internal/rpcguard"
	"github.com/parlaymkt/auction-relayer/internal/settlement"
	"github.com/parlaymkt/auction-relayer/internal/storage"
	"github.com/parlaymkt/auction-relayer/pkg/cache"
	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/healthprobe"
	"github.com/parlaymkt/auction-relayer/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	nonceCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	chainClient, oracle, err := setupOracle(cfg, logger, nonceCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup nonce oracle: %w", err)
	}

	preparer, err := setupPreparer(cfg, logger, oracle)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup settlement preparer: %w", err)
	}

	audit, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	store := auction.NewStore()
	cdc := setupCodec(cfg)
	hub := setupHub(cfg, logger, store, cdc, oracle, preparer, audit)

	httpServer := setupHTTPServer(cfg, logger, healthChecker, hub, store)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		chainClient:   chainClient,
		store:         store,
		hub:           hub,
		audit:         audit,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000, // 10x expected max tracked addresses
		MaxCost:     10000,  // Maximum 10000 cached nonces
		BufferItems: 64,     // Buffer size for Get operations
		Logger:      logger,
	})
}

// setupOracle dials the chain and builds the nonce oracle. With no RPC URL
// the relayer can only run in the unsigned degraded mode; both the oracle and
// the preparer stay nil and the relay skips chain validation and settlement.
func setupOracle(cfg *config.Config, logger *zap.Logger, nonceCache cache.Cache) (*ethclient.Client, *nonce.Oracle, error) {
	if cfg.ChainRPCURL == "" {
		if !cfg.AllowUnsigned {
			return nil, nil, fmt.Errorf("CHAIN_RPC_URL is required unless ALLOW_UNSIGNED is set")
		}

		logger.Warn("no-chain-rpc-configured",
			zap.String("note", "running unsigned-only; nonce validation and settlement disabled"))
		return nil, nil, nil
	}

	client, err := ethclient.Dial(cfg.ChainRPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	breaker, err := rpcguard.New(&rpcguard.Config{
		FailureThreshold: cfg.RPCBreakerThreshold,
		Cooldown:         cfg.RPCBreakerCooldown,
		Logger:           logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create rpc breaker: %w", err)
	}

	oracle, err := nonce.New(&nonce.Config{
		Caller:   client,
		Contract: common.HexToAddress(cfg.SettlementContract),
		Cache:    nonceCache,
		CacheTTL: cfg.NonceCacheTTL,
		Breaker:  breaker,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create oracle: %w", err)
	}

	return client, oracle, nil
}

func setupPreparer(cfg *config.Config, logger *zap.Logger, oracle *nonce.Oracle) (*settlement.Preparer, error) {
	if oracle == nil {
		return nil, nil
	}

	return settlement.New(&settlement.Config{
		Contract: common.HexToAddress(cfg.SettlementContract),
		Nonces:   oracle,
		Logger:   logger,
	})
}

func setupCodec(cfg *config.Config) *codec.Codec {
	return codec.New(codec.Config{
		Domain:            cfg.SIWEDomain,
		URI:               cfg.SIWEURI,
		ChainID:           cfg.ChainIDBig(),
		VerifyingContract: common.HexToAddress(cfg.SettlementContract),
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupHub(
	cfg *config.Config,
	logger *zap.Logger,
	store *auction.Store,
	cdc *codec.Codec,
	oracle *nonce.Oracle,
	preparer *settlement.Preparer,
	audit storage.Storage,
) *relay.Hub {
	return relay.New(relay.Config{
		PingInterval:   cfg.WSPingInterval,
		PongTimeout:    cfg.WSPongTimeout,
		WriteTimeout:   cfg.WSWriteTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
		SendBufferSize: cfg.WSSendBufferSize,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		AuctionTTL:     cfg.AuctionTTL,
		Retention:      cfg.AuctionRetention,
		SweepInterval:  cfg.SweepInterval,
		MinLegs:        cfg.AuctionMinLegs,
		AllowUnsigned:  cfg.AllowUnsigned,
		Logger:         logger,
	}, store, cdc, oracle, preparer, audit)
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	hub *relay.Hub,
	store *auction.Store,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		WSHandler:     hub.HandleWS,
		AuctionStore:  store,
	})
}
