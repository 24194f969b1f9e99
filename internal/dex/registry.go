package dex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"hookScope/internal/model"
)

// PoolRegistry maps pool ids to their immutable parameters, populated
// from Initialize events as they are decoded.
type PoolRegistry struct {
	mu   sync.RWMutex
	data map[common.Hash]model.PoolMeta
}

func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{data: make(map[common.Hash]model.PoolMeta)}
}

func (r *PoolRegistry) Get(id common.Hash) (model.PoolMeta, bool) {
	r.mu.RLock()
	meta, ok := r.data[id]
	r.mu.RUnlock()
	return meta, ok
}

func (r *PoolRegistry) Set(id common.Hash, meta model.PoolMeta) {
	r.mu.Lock()
	r.data[id] = meta
	r.mu.Unlock()
}

// Len returns the number of registered pools.
func (r *PoolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
