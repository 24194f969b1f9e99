package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"hookScope/internal/model"
)

var (
	testManager = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPoolID  = common.HexToHash("0x4444444444444444444444444444444444444444444444444444444444444444")
)

func TestManagerDecoderInitializeRegistersPool(t *testing.T) {
	managerABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewManagerDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pools := NewPoolRegistry()
	ctx := DecodeContext{Pools: pools, Logger: zap.NewNop()}

	currency0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	currency1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	hooks := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	data, err := managerABI.Events["Initialize"].Inputs.NonIndexed().Pack(
		big.NewInt(3000),
		big.NewInt(60),
		hooks,
		big.NewInt(123456789),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack initialize: %v", err)
	}

	logRecord := buildLogRecord(managerABI.Events["Initialize"].ID, data, []common.Hash{
		testPoolID,
		topicFromAddress(currency0),
		topicFromAddress(currency1),
	})

	event, err := decoder.Decode(logRecord, ctx)
	if err != nil {
		t.Fatalf("decode initialize: %v", err)
	}

	init, ok := event.Decoded.(model.InitializeEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if init.Fee != 3000 || init.TickSpacing != 60 || init.Tick != -15 {
		t.Fatalf("initialize fields mismatch: %+v", init)
	}
	if init.Currency0 != currency0.Hex() || init.Currency1 != currency1.Hex() {
		t.Fatalf("currency mismatch: %+v", init)
	}

	meta, ok := pools.Get(testPoolID)
	if !ok {
		t.Fatalf("pool not registered from initialize event")
	}
	if meta.Fee != 3000 || meta.Hooks != hooks.Hex() || meta.FirstSeenBlock != 12345 {
		t.Fatalf("registry meta mismatch: %+v", meta)
	}
}

func TestManagerDecoderSwapUsesRegistry(t *testing.T) {
	managerABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewManagerDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pools := NewPoolRegistry()
	pools.Set(testPoolID, model.PoolMeta{
		PoolID:      testPoolID.Hex(),
		Fee:         500,
		TickSpacing: 10,
	})
	ctx := DecodeContext{Pools: pools, Logger: zap.NewNop()}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := managerABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(987654321),
		big.NewInt(5555),
		big.NewInt(-15),
		big.NewInt(500),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	logRecord := buildLogRecord(managerABI.Events["Swap"].ID, data, []common.Hash{
		testPoolID,
		topicFromAddress(sender),
	})

	event, err := decoder.Decode(logRecord, ctx)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 || swap.Fee != 500 {
		t.Fatalf("tick/fee mismatch: %+v", swap)
	}
	if swap.PoolID != testPoolID.Hex() || swap.Sender != sender.Hex() {
		t.Fatalf("id/sender mismatch: %+v", swap)
	}
	if event.PoolMeta.Fee != 500 || event.PoolMeta.TickSpacing != 10 {
		t.Fatalf("pool meta mismatch: %+v", event.PoolMeta)
	}
}

func TestManagerDecoderModifyLiquidityAndDonate(t *testing.T) {
	managerABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewManagerDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := DecodeContext{Pools: NewPoolRegistry(), Logger: zap.NewNop()}

	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")
	var salt [32]byte
	salt[31] = 7

	modifyData, err := managerABI.Events["ModifyLiquidity"].Inputs.NonIndexed().Pack(
		big.NewInt(-120),
		big.NewInt(120),
		big.NewInt(-5000),
		salt,
	)
	if err != nil {
		t.Fatalf("pack modify liquidity: %v", err)
	}

	modifyLog := buildLogRecord(managerABI.Events["ModifyLiquidity"].ID, modifyData, []common.Hash{
		testPoolID,
		topicFromAddress(sender),
	})

	modifyEvent, err := decoder.Decode(modifyLog, ctx)
	if err != nil {
		t.Fatalf("decode modify liquidity: %v", err)
	}
	modify, ok := modifyEvent.Decoded.(model.ModifyLiquidityEventData)
	if !ok {
		t.Fatalf("modify type mismatch: %T", modifyEvent.Decoded)
	}
	if modify.TickLower != -120 || modify.TickUpper != 120 {
		t.Fatalf("modify tick mismatch: %+v", modify)
	}
	if modify.LiquidityDelta != "-5000" {
		t.Fatalf("modify delta mismatch: %+v", modify)
	}
	if modify.Salt != common.BytesToHash(salt[:]).Hex() {
		t.Fatalf("modify salt mismatch: %+v", modify)
	}
	// No Initialize seen for this pool: metadata degrades to the id.
	if modifyEvent.PoolMeta.PoolID != testPoolID.Hex() || modifyEvent.PoolMeta.Currency0 != "" {
		t.Fatalf("expected id-only meta, got %+v", modifyEvent.PoolMeta)
	}

	donateData, err := managerABI.Events["Donate"].Inputs.NonIndexed().Pack(
		big.NewInt(900),
		big.NewInt(1000),
	)
	if err != nil {
		t.Fatalf("pack donate: %v", err)
	}

	donateLog := buildLogRecord(managerABI.Events["Donate"].ID, donateData, []common.Hash{
		testPoolID,
		topicFromAddress(sender),
	})

	donateEvent, err := decoder.Decode(donateLog, ctx)
	if err != nil {
		t.Fatalf("decode donate: %v", err)
	}
	donate, ok := donateEvent.Decoded.(model.DonateEventData)
	if !ok {
		t.Fatalf("donate type mismatch: %T", donateEvent.Decoded)
	}
	if donate.Amount0 != "900" || donate.Amount1 != "1000" {
		t.Fatalf("donate amount mismatch: %+v", donate)
	}
}

func TestManagerDecoderRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewManagerDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if decoder.CanDecode("0x00") {
		t.Fatalf("unknown topic0 reported decodable")
	}
	if _, err := decoder.Decode(model.LogRecord{Topics: []string{"0x00"}}, DecodeContext{}); err == nil {
		t.Fatalf("expected decode error for unknown topic0")
	}
}

func buildLogRecord(topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     testManager.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
