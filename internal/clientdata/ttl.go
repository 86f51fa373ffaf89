package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Immutable once finalized
	TTLBlockHeader  = 365 * 24 * time.Hour // Block number -> timestamp never changes
	TTLContractCall = 365 * 24 * time.Hour // eth_call at a fixed historical block
	TTLBlockLookup  = 365 * 24 * time.Hour // Resolved timestamp -> block

	// API data that gets revised
	TTLMorphoRates = 24 * time.Hour // Daily historical rates, today's point moves
)
