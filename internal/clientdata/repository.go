// Package clientdata is the SQLite read-through cache for chain reads and
// lending-rate responses. Each table maps a key to a JSON value and an
// expires_at unix time.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache tables
const (
	TableBlockHeaders     = "block_headers"      // block number -> header
	TableBlockByTimestamp = "block_by_timestamp" // "policy:unix" -> block number
	TableContractCalls    = "contract_calls"     // "to:calldata:block" -> return data
	TableMorphoRates      = "morpho_rates"       // "market:start:end" -> daily rates
)

// AllTables lists every cache table, in cleanup order.
var AllTables = []string{
	TableBlockHeaders,
	TableBlockByTimestamp,
	TableContractCalls,
	TableMorphoRates,
}

// keyColumns maps each table to its primary key column. Table names are only
// ever interpolated into SQL after a lookup here.
var keyColumns = map[string]string{
	TableBlockHeaders:     "number",
	TableBlockByTimestamp: "lookup",
	TableContractCalls:    "call_key",
	TableMorphoRates:      "query",
}

// Repository reads and writes cache entries.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository wraps an open client_data connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func keyColumn(table string) (string, error) {
	col, ok := keyColumns[table]
	if !ok {
		return "", fmt.Errorf("invalid table name: %s", table)
	}
	return col, nil
}

// Store upserts value as JSON, expiring ttl from now.
func (r *Repository) Store(table, key string, value interface{}, ttl time.Duration) error {
	col, err := keyColumn(table)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry %s: %w", table, key, err)
	}

	stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)", table, col)
	if _, err := r.db.Exec(stmt, key, string(encoded), r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store %s entry %s: %w", table, key, err)
	}
	return nil
}

// GetIfFresh returns the entry for key while it has not expired.
// A missing or expired entry returns nil, nil.
func (r *Repository) GetIfFresh(table, key string) (json.RawMessage, error) {
	return r.get(table, key, true)
}

// Get returns the entry for key even when expired, for use as a fallback
// when the upstream call fails. A missing entry returns nil, nil.
func (r *Repository) Get(table, key string) (json.RawMessage, error) {
	return r.get(table, key, false)
}

func (r *Repository) get(table, key string, fresh bool) (json.RawMessage, error) {
	col, err := keyColumn(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data, expires_at FROM %s WHERE %s = ?", table, col)

	var (
		data      string
		expiresAt int64
	)
	err = r.db.QueryRow(query, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s entry %s: %w", table, key, err)
	}
	if fresh && expiresAt <= r.now().Unix() {
		return nil, nil
	}

	return json.RawMessage(data), nil
}

// DeleteExpired removes the expired entries of table and reports how many.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	if _, err := keyColumn(table); err != nil {
		return 0, err
	}

	result, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}
	return result.RowsAffected()
}

// DeleteAllExpired runs DeleteExpired over AllTables. On error the counts
// gathered so far are returned with it.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))
	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}
	return results, nil
}
