package storage

import "hookScope/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// OutcomeSink defines a sink for hook outcome records.
type OutcomeSink interface {
	PutOutcomeBatch(outcomes []model.OutcomeRecord) error
}

// PoolSink defines a sink for pool metadata discovered during replay.
type PoolSink interface {
	PutPoolBatch(chainID uint64, pools []model.PoolMeta) error
}
