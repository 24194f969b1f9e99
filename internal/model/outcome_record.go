package model

import "encoding/json"

// OutcomeRecord is the storage form of a hook outcome produced during
// replay. Detail holds the outcome-specific fields keyed by Kind; big
// numbers inside it are decimal strings.
type OutcomeRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	PoolID      string          `json:"pool_id"`
	Kind        string          `json:"kind"`
	Detail      json.RawMessage `json:"detail"`
	RecordedAt  string          `json:"recorded_at"`
}
