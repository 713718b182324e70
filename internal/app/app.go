package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/relay"
	"github.com/parlaymkt/auction-relayer/internal/storage"
	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/healthprobe"
	"github.com/parlaymkt/auction-relayer/pkg/httpserver"
)

// App is the main application orchestrator: it wires the session store, the
// signature codec, the nonce oracle, the settlement preparer and the relay
// hub together and owns their lifecycle.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	chainClient   *ethclient.Client
	store         *auction.Store
	hub           *relay.Hub
	audit         storage.Storage
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
