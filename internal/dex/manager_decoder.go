package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"hookScope/internal/model"
)

// ManagerDecoder decodes Uniswap V4 PoolManager events. All pools share
// the singleton manager, so every log carries its pool id as topic1.
type ManagerDecoder struct {
	managerABI  abi.ABI
	topicToName map[string]string
}

// NewManagerDecoder builds a PoolManager event decoder.
func NewManagerDecoder() (*ManagerDecoder, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(managerABI.Events["Initialize"].ID.Hex()):      "Initialize",
		strings.ToLower(managerABI.Events["ModifyLiquidity"].ID.Hex()): "ModifyLiquidity",
		strings.ToLower(managerABI.Events["Swap"].ID.Hex()):            "Swap",
		strings.ToLower(managerABI.Events["Donate"].ID.Hex()):          "Donate",
	}

	return &ManagerDecoder{
		managerABI:  managerABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *ManagerDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent. Initialize events
// register the pool in the context's registry; later events of the same
// pool pick their metadata up from it.
func (d *ManagerDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	switch name {
	case "Initialize":
		decoded, meta, err := d.decodeInitialize(log)
		if err != nil {
			return nil, err
		}
		if ctx.Pools != nil {
			ctx.Pools.Set(common.HexToHash(meta.PoolID), meta)
		}
		return buildTypedEvent(log, name, decoded, meta), nil
	case "ModifyLiquidity":
		decoded, err := d.decodeModifyLiquidity(log)
		if err != nil {
			return nil, err
		}
		return buildTypedEvent(log, name, decoded, d.poolMeta(ctx, decoded.PoolID, log)), nil
	case "Swap":
		decoded, err := d.decodeSwap(log)
		if err != nil {
			return nil, err
		}
		return buildTypedEvent(log, name, decoded, d.poolMeta(ctx, decoded.PoolID, log)), nil
	case "Donate":
		decoded, err := d.decodeDonate(log)
		if err != nil {
			return nil, err
		}
		return buildTypedEvent(log, name, decoded, d.poolMeta(ctx, decoded.PoolID, log)), nil
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

// poolMeta resolves the pool's registered metadata. A pool first seen
// mid-history has no Initialize on record; the event still decodes, with
// metadata reduced to the id.
func (d *ManagerDecoder) poolMeta(ctx DecodeContext, poolID string, log model.LogRecord) model.PoolMeta {
	if ctx.Pools != nil {
		if meta, ok := ctx.Pools.Get(common.HexToHash(poolID)); ok {
			return meta
		}
	}
	if ctx.Logger != nil {
		ctx.Logger.Debug("pool metadata missing, no initialize seen",
			zap.String("pool_id", poolID),
			zap.Uint64("block", log.BlockNumber))
	}
	return model.PoolMeta{PoolID: poolID}
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         raw,
	}
}

func (d *ManagerDecoder) decodeInitialize(log model.LogRecord) (model.InitializeEventData, model.PoolMeta, error) {
	topics, err := parseTopics(log.Topics, 3)
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}

	values, err := unpackNonIndexed(d.managerABI.Events["Initialize"], log.Data)
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	if len(values) != 5 {
		return model.InitializeEventData{}, model.PoolMeta{}, fmt.Errorf("unexpected initialize values: %d", len(values))
	}

	fee, err := asBigInt(values[0])
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	tickSpacingBig, err := asBigInt(values[1])
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	tickSpacing, err := int24FromBig(tickSpacingBig)
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	hooks, err := asAddress(values[2])
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	sqrtPrice, err := asBigInt(values[3])
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	tickBig, err := asBigInt(values[4])
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.InitializeEventData{}, model.PoolMeta{}, err
	}

	data := model.InitializeEventData{
		PoolID:       topics[0].Hex(),
		Currency0:    topicAddress(topics[1]).Hex(),
		Currency1:    topicAddress(topics[2]).Hex(),
		Fee:          uint32(fee.Uint64()),
		TickSpacing:  tickSpacing,
		Hooks:        hooks.Hex(),
		SqrtPriceX96: sqrtPrice.String(),
		Tick:         tick,
	}
	meta := model.PoolMeta{
		PoolID:         data.PoolID,
		Currency0:      data.Currency0,
		Currency1:      data.Currency1,
		Fee:            data.Fee,
		TickSpacing:    data.TickSpacing,
		Hooks:          data.Hooks,
		FirstSeenBlock: log.BlockNumber,
	}
	return data, meta, nil
}

func (d *ManagerDecoder) decodeModifyLiquidity(log model.LogRecord) (model.ModifyLiquidityEventData, error) {
	topics, err := parseTopics(log.Topics, 2)
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}

	values, err := unpackNonIndexed(d.managerABI.Events["ModifyLiquidity"], log.Data)
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}
	if len(values) != 4 {
		return model.ModifyLiquidityEventData{}, fmt.Errorf("unexpected modify liquidity values: %d", len(values))
	}

	tickLowerBig, err := asBigInt(values[0])
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}
	tickLower, err := int24FromBig(tickLowerBig)
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}
	tickUpperBig, err := asBigInt(values[1])
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}
	tickUpper, err := int24FromBig(tickUpperBig)
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}
	liquidityDelta, err := asBigInt(values[2])
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}
	salt, err := asHash(values[3])
	if err != nil {
		return model.ModifyLiquidityEventData{}, err
	}

	return model.ModifyLiquidityEventData{
		PoolID:         topics[0].Hex(),
		Sender:         topicAddress(topics[1]).Hex(),
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		LiquidityDelta: liquidityDelta.String(),
		Salt:           salt.Hex(),
	}, nil
}

func (d *ManagerDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	topics, err := parseTopics(log.Topics, 2)
	if err != nil {
		return model.SwapEventData{}, err
	}

	values, err := unpackNonIndexed(d.managerABI.Events["Swap"], log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 6 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tickBig, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.SwapEventData{}, err
	}
	fee, err := asBigInt(values[5])
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		PoolID:       topics[0].Hex(),
		Sender:       topicAddress(topics[1]).Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
		Fee:          uint32(fee.Uint64()),
	}, nil
}

func (d *ManagerDecoder) decodeDonate(log model.LogRecord) (model.DonateEventData, error) {
	topics, err := parseTopics(log.Topics, 2)
	if err != nil {
		return model.DonateEventData{}, err
	}

	values, err := unpackNonIndexed(d.managerABI.Events["Donate"], log.Data)
	if err != nil {
		return model.DonateEventData{}, err
	}
	if len(values) != 2 {
		return model.DonateEventData{}, fmt.Errorf("unexpected donate values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.DonateEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.DonateEventData{}, err
	}

	return model.DonateEventData{
		PoolID:  topics[0].Hex(),
		Sender:  topicAddress(topics[1]).Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}

// parseTopics checks the log carries topic0 plus the expected indexed
// count and returns the indexed topics as hashes.
func parseTopics(topics []string, indexed int) ([]common.Hash, error) {
	if len(topics) != indexed+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexed+1, len(topics))
	}
	out := make([]common.Hash, 0, indexed)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

// topicAddress extracts an address from a left-padded indexed topic.
func topicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[12:])
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asHash(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Hash:
		return v, nil
	case [32]byte:
		return common.BytesToHash(v[:]), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported hash type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
