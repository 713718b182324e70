package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parlaymkt/auction-relayer/internal/storage"
)

// MockContractCaller is an in-memory chain stub for the nonce oracle. It
// returns the configured nonce as a 32-byte big-endian word, the way
// eth_call returns a uint256.
type MockContractCaller struct {
	mu     sync.Mutex
	Nonce  uint64
	Err    error
	Calls  int
	LastTo common.Address
}

// CallContract returns the configured nonce or error.
func (m *MockContractCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if msg.To != nil {
		m.LastTo = *msg.To
	}

	if m.Err != nil {
		return nil, m.Err
	}

	return common.BigToHash(new(big.Int).SetUint64(m.Nonce)).Bytes(), nil
}

// SetNonce swaps the nonce the stub returns.
func (m *MockContractCaller) SetNonce(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nonce = n
}

// SetErr makes every subsequent call fail.
func (m *MockContractCaller) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// MockNonceSource stubs the settlement preparer's fresh-nonce dependency.
type MockNonceSource struct {
	Nonce uint64
	Err   error
	Calls int
}

// Fresh returns the configured nonce or error.
func (m *MockNonceSource) Fresh(_ context.Context, _ common.Address) (uint64, error) {
	m.Calls++
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Nonce, nil
}

// MockStorage is an in-memory audit sink for testing.
type MockStorage struct {
	mu       sync.Mutex
	Auctions []*storage.AuctionRecord
	Bids     []*storage.BidRecord
	Matches  []*storage.MatchRecord
	Err      error
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// StoreAuction records an auction in memory.
func (m *MockStorage) StoreAuction(_ context.Context, rec *storage.AuctionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Auctions = append(m.Auctions, rec)
	return nil
}

// StoreBid records a bid in memory.
func (m *MockStorage) StoreBid(_ context.Context, rec *storage.BidRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Bids = append(m.Bids, rec)
	return nil
}

// StoreMatch records a match in memory.
func (m *MockStorage) StoreMatch(_ context.Context, rec *storage.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Matches = append(m.Matches, rec)
	return nil
}

// Close is a no-op for mock storage.
func (m *MockStorage) Close() error {
	return nil
}

// MatchCount returns how many matches were recorded.
func (m *MockStorage) MatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Matches)
}
