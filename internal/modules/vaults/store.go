package vaults

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/vaultbench/internal/domain"
	"github.com/google/uuid"
)

// DumpMetadata describes how a price dump was produced
type DumpMetadata struct {
	VaultAddress  string  `json:"vault_address"`
	VaultName     string  `json:"vault_name,omitempty"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	IntervalHours float64 `json:"interval_hours"`
	RunID         string  `json:"run_id"`
}

// Dump is the on-disk JSON form of a fetched price series
type Dump struct {
	Data     []domain.PricePoint `json:"data"`
	Metadata DumpMetadata        `json:"metadata"`
}

// NewDumpMetadata builds metadata for a fetch of vault over [start, end]
func NewDumpMetadata(vault domain.Vault, start, end time.Time, interval time.Duration) DumpMetadata {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return DumpMetadata{
		VaultAddress:  vault.Address,
		VaultName:     vault.Name,
		StartDate:     TruncateToDay(start).Format(time.RFC3339),
		EndDate:       TruncateToDay(end).Format(time.RFC3339),
		IntervalHours: interval.Hours(),
		RunID:         uuid.NewString(),
	}
}

// SaveDump writes points and metadata to path, creating parent directories
func SaveDump(path string, points []domain.PricePoint, meta DumpMetadata) error {
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	if points == nil {
		points = []domain.PricePoint{}
	}

	data, err := json.MarshalIndent(Dump{Data: points, Metadata: meta}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal price dump: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write price dump %s: %w", path, err)
	}
	return nil
}

// LoadDump reads a dump previously written by SaveDump
func LoadDump(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price dump %s: %w", path, err)
	}

	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to parse price dump %s: %w", path, err)
	}
	return &dump, nil
}
