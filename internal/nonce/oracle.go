package nonce

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/rpcguard"
	"github.com/parlaymkt/auction-relayer/pkg/cache"
)

// ErrLookup marks a transient RPC failure: retryable with backoff, the
// auction stays open.
var ErrLookup = errors.New("nonce lookup failed")

// noncesABI is the read surface of the settlement contract consulted for
// replay protection.
const noncesABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"nonces","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ContractCaller is the chain read dependency. ethclient.Client implements
// it in production; tests use a stub.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Oracle reads the authoritative per-address nonce counter from the
// settlement contract, fronted by a short-TTL cache. The cache is a
// fast-path rejection aid only; settlement re-checks always go to the chain.
type Oracle struct {
	caller   ContractCaller
	contract common.Address
	parsed   abi.ABI
	cache    cache.Cache
	ttl      time.Duration
	breaker  *rpcguard.Breaker
	logger   *zap.Logger
}

// Config holds oracle configuration.
type Config struct {
	Caller   ContractCaller
	Contract common.Address
	Cache    cache.Cache
	CacheTTL time.Duration
	Breaker  *rpcguard.Breaker
	Logger   *zap.Logger
}

// New creates a nonce oracle.
func New(cfg *Config) (*Oracle, error) {
	if cfg.Caller == nil {
		return nil, errors.New("caller cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	parsed, err := abi.JSON(strings.NewReader(noncesABI))
	if err != nil {
		return nil, fmt.Errorf("parse nonces ABI: %w", err)
	}

	return &Oracle{
		caller:   cfg.Caller,
		contract: cfg.Contract,
		parsed:   parsed,
		cache:    cfg.Cache,
		ttl:      cfg.CacheTTL,
		breaker:  cfg.Breaker,
		logger:   cfg.Logger,
	}, nil
}

// Current returns the address's nonce, serving from cache within the TTL.
func (o *Oracle) Current(ctx context.Context, address common.Address) (uint64, error) {
	key := "nonce:" + address.Hex()

	if o.cache != nil {
		if value, found := o.cache.Get(key); found {
			if nonce, ok := value.(uint64); ok {
				LookupsTotal.WithLabelValues("cache").Inc()
				return nonce, nil
			}
		}
	}

	return o.Fresh(ctx, address)
}

// Fresh bypasses the cache and reads the contract directly. Used before a
// winning bid is escalated to settlement, where a stale cached value is not
// acceptable.
func (o *Oracle) Fresh(ctx context.Context, address common.Address) (uint64, error) {
	if o.breaker != nil {
		if err := o.breaker.Allow(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLookup, err)
		}
	}

	nonce, err := o.read(ctx, address)
	if err != nil {
		if o.breaker != nil {
			o.breaker.Failure()
		}
		LookupFailuresTotal.Inc()

		o.logger.Warn("nonce-lookup-failed",
			zap.String("address", address.Hex()),
			zap.Error(err))

		return 0, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	if o.breaker != nil {
		o.breaker.Success()
	}
	LookupsTotal.WithLabelValues("chain").Inc()

	if o.cache != nil {
		o.cache.Set("nonce:"+address.Hex(), nonce, o.ttl)
	}

	return nonce, nil
}

func (o *Oracle) read(ctx context.Context, address common.Address) (uint64, error) {
	data, err := o.parsed.Pack("nonces", address)
	if err != nil {
		return 0, fmt.Errorf("pack ABI: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &o.contract,
		Data: data,
	}

	result, err := o.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result).Uint64(), nil
}
