// Package rpc wraps go-ethereum's ethclient with the read-only subset needed
// to resolve blocks and call view functions, backed by the client-data cache.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

var (
	// ErrBlockNotFound is returned when the node answers null for a block
	ErrBlockNotFound = domain.ErrBlockNotFound
	// ErrNotConnected is returned when the node cannot be reached at startup
	ErrNotConnected = errors.New("not connected to RPC node")
)

// DefaultConfirmations is how far behind the head a block must be before
// its header and call results are cached
const DefaultConfirmations = 300

// Error is a JSON-RPC error object returned by the node
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Config configures a Client
type Config struct {
	URL           string
	Timeout       time.Duration
	Confirmations uint64
}

var _ domain.ChainClient = (*Client)(nil)

// Client is an Ethereum JSON-RPC client.
type Client struct {
	url           string
	eth           *ethclient.Client
	log           zerolog.Logger
	cacheRepo     *clientdata.Repository
	confirmations uint64
	head          atomic.Uint64
}

// NewClient creates a new JSON-RPC client. Dialing HTTP does not contact
// the node; use Ping for that.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) (*Client, error) {
	rc, err := gethrpc.DialOptions(context.Background(), cfg.URL,
		gethrpc.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}

	return &Client{
		url:           cfg.URL,
		eth:           ethclient.NewClient(rc),
		log:           log.With().Str("component", "rpc").Logger(),
		cacheRepo:     cacheRepo,
		confirmations: cfg.Confirmations,
	}, nil
}

// URL returns the node endpoint
func (c *Client) URL() string {
	return c.url
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.eth.Close()
}

// Ping verifies the node is reachable by asking for its chain id.
func (c *Client) Ping(ctx context.Context) error {
	id, err := c.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotConnected, c.url, err)
	}
	c.log.Info().Uint64("chain_id", id).Str("url", c.url).Msg("Connected to RPC node")
	return nil
}

// ChainID returns the node's chain id (eth_chainId)
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, wrap("eth_chainId", err)
	}
	return id.Uint64(), nil
}

// BlockNumber returns the latest block number (eth_blockNumber)
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, wrap("eth_blockNumber", err)
	}
	c.observeHead(n)
	return n, nil
}

// BlockByNumber returns the header of block number.
// Headers are cached once they are Confirmations blocks behind the head.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*domain.BlockHeader, error) {
	key := strconv.FormatUint(number, 10)
	if h, ok := c.getHeaderFromCache(key); ok {
		return h, nil
	}

	c.log.Debug().Uint64("block", number).Msg("Fetching block header")
	raw, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	if err != nil {
		return nil, wrap("eth_getBlockByNumber", err)
	}

	h := &domain.BlockHeader{
		Number:    raw.Number.Uint64(),
		Timestamp: raw.Time,
		Hash:      raw.Hash().Hex(),
	}
	c.observeHead(h.Number)

	if c.final(ctx, number) {
		c.setCache(clientdata.TableBlockHeaders, key, h, clientdata.TTLBlockHeader)
	}
	return h, nil
}

// CallContract executes a read-only call (eth_call) against to at blockNumber.
// A nil blockNumber calls against the latest block and is never cached, nor
// are calls at blocks within Confirmations of the head.
func (c *Client) CallContract(ctx context.Context, to string, data []byte, blockNumber *big.Int) ([]byte, error) {
	addr := common.HexToAddress(to)
	key := ""
	if blockNumber != nil {
		key = callKey(addr, data, blockNumber)
		if ret, ok := c.getCallFromCache(key); ok {
			return ret, nil
		}
	}

	c.log.Debug().Str("to", addr.Hex()).Msg("Making eth_call")
	ret, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, blockNumber)
	if err != nil {
		return nil, wrap("eth_call", err)
	}

	if key != "" && blockNumber.IsUint64() && c.final(ctx, blockNumber.Uint64()) {
		c.setCache(clientdata.TableContractCalls, key, hexutil.Encode(ret), clientdata.TTLContractCall)
	}
	return ret, nil
}

// final reports whether number is at least Confirmations blocks behind the
// head, asking the node for the head when the last one seen is too low
func (c *Client) final(ctx context.Context, number uint64) bool {
	if c.cacheRepo == nil {
		return false
	}
	if number+c.confirmations <= c.head.Load() {
		return true
	}
	head, err := c.BlockNumber(ctx)
	if err != nil {
		c.log.Debug().Err(err).Uint64("block", number).Msg("Head unknown, not caching")
		return false
	}
	return number+c.confirmations <= head
}

// observeHead raises the last seen head to n
func (c *Client) observeHead(n uint64) {
	for {
		cur := c.head.Load()
		if n <= cur || c.head.CompareAndSwap(cur, n) {
			return
		}
	}
}

// wrap prefixes err with the JSON-RPC method, converting node error objects
// to *Error
func wrap(method string, err error) error {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, &Error{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()})
	}
	return fmt.Errorf("%s: %w", method, err)
}

func callKey(addr common.Address, data []byte, blockNumber *big.Int) string {
	return strings.ToLower(addr.Hex()) + ":" + hexutil.Encode(data) + ":" + blockNumber.String()
}

// getHeaderFromCache retrieves a cached block header.
func (c *Client) getHeaderFromCache(key string) (*domain.BlockHeader, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.GetIfFresh(clientdata.TableBlockHeaders, key)
	if err != nil {
		c.log.Warn().Err(err).Str("block", key).Msg("Failed to get from cache")
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var h domain.BlockHeader
	if err := json.Unmarshal(data, &h); err != nil {
		c.log.Warn().Err(err).Str("block", key).Msg("Failed to unmarshal cached data")
		return nil, false
	}

	return &h, true
}

// getCallFromCache retrieves a cached eth_call return value.
func (c *Client) getCallFromCache(key string) ([]byte, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.GetIfFresh(clientdata.TableContractCalls, key)
	if err != nil {
		c.log.Warn().Err(err).Str("call", key).Msg("Failed to get from cache")
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		c.log.Warn().Err(err).Str("call", key).Msg("Failed to unmarshal cached data")
		return nil, false
	}
	ret, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, false
	}

	return ret, true
}

// setCache stores a value in the persistent cache.
func (c *Client) setCache(table, key string, value interface{}, ttl time.Duration) {
	if err := c.cacheRepo.Store(table, key, value, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to cache RPC result")
	}
}
