package domain

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrBlockNotFound is returned when the node has no block at the requested height
var ErrBlockNotFound = errors.New("block not found")

// ChainClient is the read-only view of an EVM node used by the resolvers and
// fetchers. A nil blockNumber means the latest block.
type ChainClient interface {
	ChainID(ctx context.Context) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*BlockHeader, error)
	CallContract(ctx context.Context, to string, data []byte, blockNumber *big.Int) ([]byte, error)
}

// RateSource provides lending market rate history and current market data
type RateSource interface {
	HistoricalRates(ctx context.Context, asset Asset, start, end time.Time) ([]RatePoint, error)
	CurrentMarketData(ctx context.Context, asset Asset) (*MarketData, error)
}
