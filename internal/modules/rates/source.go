package rates

import (
	"fmt"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/aristath/vaultbench/internal/clients/morpho"
	"github.com/aristath/vaultbench/internal/config"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/rs/zerolog"
)

// NewSource builds the rate source selected by configuration.
// cacheRepo is optional and only used by the Morpho source.
func NewSource(cfg *config.Config, cacheRepo *clientdata.Repository, log zerolog.Logger) (domain.RateSource, error) {
	switch cfg.Rates.Source {
	case config.RateSourceStatic:
		return NewStaticSource(cfg.Rates.StaticSupplyAPR, cfg.Rates.StaticBorrowAPR), nil
	case config.RateSourceMorpho:
		client := morpho.NewClient(cfg.Rates.MorphoAPIURL, cfg.RPCTimeout, cacheRepo, log)
		return NewMorphoSource(client, cfg.Rates.MorphoMarketID, cfg.ChainID, log), nil
	default:
		return nil, fmt.Errorf("unknown rate source %q", cfg.Rates.Source)
	}
}
