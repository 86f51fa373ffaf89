package testing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aristath/vaultbench/internal/domain"
)

// CallFunc answers an eth_call against the fake chain
type CallFunc func(to string, data []byte, block uint64) ([]byte, error)

// FakeChain is a synthetic chain whose block timestamps are
// Genesis + number*BlockTime, strictly increasing by construction.
type FakeChain struct {
	mu sync.Mutex

	ID        uint64
	Genesis   uint64 // Timestamp of block 0
	BlockTime uint64 // Seconds between blocks
	Latest    uint64
	Call      CallFunc

	chainIDErr  error
	blockFails  map[uint64]int // Remaining forced failures per block
	callFails   map[uint64]int
	blockCalls  int
	headerReads map[uint64]int
}

// NewFakeChain creates a fake chain with the given genesis, block time and head
func NewFakeChain(genesis, blockTime, latest uint64) *FakeChain {
	return &FakeChain{
		ID:          8453,
		Genesis:     genesis,
		BlockTime:   blockTime,
		Latest:      latest,
		blockFails:  make(map[uint64]int),
		callFails:   make(map[uint64]int),
		headerReads: make(map[uint64]int),
	}
}

// TimestampOf returns the timestamp of block n
func (f *FakeChain) TimestampOf(n uint64) uint64 {
	return f.Genesis + n*f.BlockTime
}

// SetChainIDError makes ChainID fail with err
func (f *FakeChain) SetChainIDError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainIDErr = err
}

// FailBlock makes the next n header reads of block fail
func (f *FakeChain) FailBlock(block uint64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockFails[block] = n
}

// FailCall makes the next n contract calls at block fail
func (f *FakeChain) FailCall(block uint64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callFails[block] = n
}

// BlockCalls returns the number of BlockByNumber calls made
func (f *FakeChain) BlockCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls
}

// HeaderReads returns how many times block n was requested
func (f *FakeChain) HeaderReads(n uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headerReads[n]
}

// ChainID implements domain.ChainClient
func (f *FakeChain) ChainID(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chainIDErr != nil {
		return 0, f.chainIDErr
	}
	return f.ID, nil
}

// SetLatest moves the head to n
func (f *FakeChain) SetLatest(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Latest = n
}

// BlockNumber implements domain.ChainClient
func (f *FakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Latest, nil
}

// BlockByNumber implements domain.ChainClient
func (f *FakeChain) BlockByNumber(ctx context.Context, number uint64) (*domain.BlockHeader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blockCalls++
	f.headerReads[number]++

	if n := f.blockFails[number]; n > 0 {
		f.blockFails[number] = n - 1
		return nil, errors.New("fake chain: transient header failure")
	}
	if number > f.Latest {
		return nil, domain.ErrBlockNotFound
	}

	return &domain.BlockHeader{
		Number:    number,
		Timestamp: f.TimestampOf(number),
		Hash:      fmt.Sprintf("0x%064x", number),
	}, nil
}

// CallContract implements domain.ChainClient
func (f *FakeChain) CallContract(ctx context.Context, to string, data []byte, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	block := f.Latest
	if blockNumber != nil {
		block = blockNumber.Uint64()
	}
	if n := f.callFails[block]; n > 0 {
		f.callFails[block] = n - 1
		f.mu.Unlock()
		return nil, errors.New("fake chain: transient call failure")
	}
	call := f.Call
	f.mu.Unlock()

	if call == nil {
		return nil, errors.New("fake chain: no call handler")
	}
	return call(to, data, block)
}
