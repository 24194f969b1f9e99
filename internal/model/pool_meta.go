package model

// PoolMeta captures a pool's immutable parameters, learned from its
// Initialize event. Currencies are addresses; currency0 below currency1.
type PoolMeta struct {
	PoolID         string `json:"pool_id"`
	Currency0      string `json:"currency0"`
	Currency1      string `json:"currency1"`
	Fee            uint32 `json:"fee"`
	TickSpacing    int32  `json:"tick_spacing"`
	Hooks          string `json:"hooks"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}
