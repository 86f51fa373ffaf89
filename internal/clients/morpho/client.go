// Package morpho provides a client for the Morpho Blue GraphQL API.
// It reads market state and the daily supply/borrow APY history of a market.
package morpho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://blue-api.morpho.org/graphql"

const marketQuery = `query Market($uniqueKey: String!, $chainId: Int!, $options: TimeseriesOptions) {
  marketByUniqueKey(uniqueKey: $uniqueKey, chainId: $chainId) {
    uniqueKey
    loanAsset { symbol address decimals }
    state { supplyAssetsUsd borrowAssetsUsd supplyApy borrowApy utilization }
    historicalState {
      supplyApy(options: $options) { x y }
      borrowApy(options: $options) { x y }
    }
  }
}`

// Point is one timeseries sample: x is a unix timestamp, y an annual APY as decimal
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Asset is a market's loan asset
type Asset struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// State is the current market state
type State struct {
	SupplyAssetsUSD float64 `json:"supplyAssetsUsd"`
	BorrowAssetsUSD float64 `json:"borrowAssetsUsd"`
	SupplyAPY       float64 `json:"supplyApy"`
	BorrowAPY       float64 `json:"borrowApy"`
	Utilization     float64 `json:"utilization"`
}

// HistoricalState holds the APY timeseries of a market
type HistoricalState struct {
	SupplyAPY []Point `json:"supplyApy"`
	BorrowAPY []Point `json:"borrowApy"`
}

// Market is the subset of a Morpho Blue market vaultbench reads
type Market struct {
	UniqueKey       string           `json:"uniqueKey"`
	LoanAsset       Asset            `json:"loanAsset"`
	State           *State           `json:"state"`
	HistoricalState *HistoricalState `json:"historicalState"`
}

type timeseriesOptions struct {
	StartTimestamp int64  `json:"startTimestamp"`
	EndTimestamp   int64  `json:"endTimestamp"`
	Interval       string `json:"interval"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data struct {
		Market *Market `json:"marketByUniqueKey"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Client is the Morpho API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	cacheRepo  *clientdata.Repository
}

// NewClient creates a new Morpho API client. An empty baseURL uses the public API.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, timeout time.Duration, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:       log.With().Str("component", "morpho").Logger(),
		cacheRepo: cacheRepo,
	}
}

// Market fetches market state and the daily APY history between start and end.
// History responses are cached; if the API fails, stale cached data is returned when available.
func (c *Client) Market(ctx context.Context, uniqueKey string, chainID uint64, start, end time.Time) (*Market, error) {
	key := fmt.Sprintf("%s:%d:%d:%d", strings.ToLower(uniqueKey), chainID, start.Unix(), end.Unix())
	if m, ok := c.getFromCache(key, false); ok {
		c.log.Debug().Str("market", uniqueKey).Msg("Morpho cache hit")
		return m, nil
	}

	m, err := c.doRequest(ctx, map[string]interface{}{
		"uniqueKey": uniqueKey,
		"chainId":   chainID,
		"options": timeseriesOptions{
			StartTimestamp: start.Unix(),
			EndTimestamp:   end.Unix(),
			Interval:       "DAY",
		},
	})
	if err != nil {
		if stale, ok := c.getFromCache(key, true); ok {
			c.log.Warn().
				Err(err).
				Str("market", uniqueKey).
				Msg("API failed, using stale cached data")
			return stale, nil
		}
		return nil, err
	}

	c.setCache(key, m)
	return m, nil
}

// doRequest performs the GraphQL request.
func (c *Client) doRequest(ctx context.Context, variables map[string]interface{}) (*Market, error) {
	body, err := json.Marshal(graphQLRequest{Query: marketQuery, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Interface("market", variables["uniqueKey"]).Msg("Making Morpho request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Morpho API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("Morpho API error: %s", strings.Join(msgs, "; "))
	}
	if gqlResp.Data.Market == nil {
		return nil, fmt.Errorf("Morpho API returned no market for %v", variables["uniqueKey"])
	}

	return gqlResp.Data.Market, nil
}

// getFromCache retrieves a cached market. stale ignores expiry.
func (c *Client) getFromCache(key string, stale bool) (*Market, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var data json.RawMessage
	var err error
	if stale {
		data, err = c.cacheRepo.Get(clientdata.TableMorphoRates, key)
	} else {
		data, err = c.cacheRepo.GetIfFresh(clientdata.TableMorphoRates, key)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to get from cache")
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var m Market
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached data")
		return nil, false
	}

	return &m, true
}

// setCache stores a market in the persistent cache.
func (c *Client) setCache(key string, m *Market) {
	if c.cacheRepo == nil {
		return
	}

	if err := c.cacheRepo.Store(clientdata.TableMorphoRates, key, m, clientdata.TTLMorphoRates); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache Morpho market")
	}
}
