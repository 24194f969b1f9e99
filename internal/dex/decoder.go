package dex

import (
	"go.uber.org/zap"

	"hookScope/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders. Pool metadata
// comes entirely from Initialize events seen by the registry: the
// singleton manager design needs no per-pool RPC calls.
type DecodeContext struct {
	Pools  *PoolRegistry
	Logger *zap.Logger
}
