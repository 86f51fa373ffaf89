package testing

import (
	"time"

	"github.com/aristath/vaultbench/internal/domain"
)

// NewVaultFixtures returns a set of test vaults for use in tests
func NewVaultFixtures() []domain.Vault {
	return []domain.Vault{
		{Key: "Alpha", Address: "0x1111111111111111111111111111111111111111", Name: "Alpha USDC Vault"},
		{Key: "Beta", Address: "0x2222222222222222222222222222222222222222", Name: "Beta USDC Vault"},
	}
}

// NewUSDCFixture returns the USDC asset definition
func NewUSDCFixture() domain.Asset {
	return domain.Asset{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6}
}

// NewPricePointFixtures returns n daily price points starting at start,
// growing by rate per day from 1.0
func NewPricePointFixtures(start time.Time, n int, rate float64) []domain.PricePoint {
	points := make([]domain.PricePoint, 0, n)
	price := 1.0
	for i := 0; i < n; i++ {
		points = append(points, domain.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Block:     uint64(1000 + i*43200),
			Price:     price,
		})
		price *= 1 + rate
	}
	return points
}
