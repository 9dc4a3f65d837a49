package guardian

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mbrant/tokensentinel/internal/idgen"
)

// Event signatures for the two approval shapes.
var (
	// Approval(address indexed owner, address indexed spender, uint256 value)
	approvalEventSig = common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")
	// ApprovalForAll(address indexed owner, address indexed operator, bool approved)
	approvalForAllEventSig = common.HexToHash("0x17307eab39ab6107e8899845ad3d59bd9653f200f220920489ca2b5937696c31")
)

// ApprovalEvent is one decoded approval log. For ERC-20 events Value is
// the granted allowance; for ApprovalForAll events Approved carries the
// grant/revoke flag and Value is nil.
type ApprovalEvent struct {
	Type        ApprovalType
	Token       common.Address
	Owner       common.Address
	Spender     common.Address
	Value       *big.Int
	Approved    bool
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   time.Time
}

// LogReader yields the approval events a wallet has emitted for one
// token contract, oldest first.
type LogReader interface {
	ApprovalEvents(ctx context.Context, token, owner common.Address) ([]ApprovalEvent, error)
}

// ethLogReader reads approval logs over JSON-RPC.
type ethLogReader struct {
	client *ethclient.Client

	mu      sync.Mutex
	headers map[uint64]time.Time
}

// DialLogReader connects a LogReader to a chain's RPC endpoint.
func DialLogReader(rpcURL string) (LogReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return &ethLogReader{
		client:  client,
		headers: make(map[uint64]time.Time),
	}, nil
}

func (r *ethLogReader) ApprovalEvents(ctx context.Context, token, owner common.Address) ([]ApprovalEvent, error) {
	ownerTopic := common.BytesToHash(owner.Bytes())
	query := ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics: [][]common.Hash{
			{approvalEventSig, approvalForAllEventSig},
			{ownerTopic},
		},
	}

	logs, err := r.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}

	events := make([]ApprovalEvent, 0, len(logs))
	for _, vLog := range logs {
		ev, ok := decodeApprovalLog(vLog)
		if !ok {
			continue
		}
		ts, err := r.blockTime(ctx, vLog.BlockNumber)
		if err == nil {
			ev.Timestamp = ts
		}
		events = append(events, ev)
	}
	return events, nil
}

// blockTime resolves a block's timestamp, memoizing headers so a scan
// hits the RPC once per distinct block.
func (r *ethLogReader) blockTime(ctx context.Context, number uint64) (time.Time, error) {
	r.mu.Lock()
	if ts, ok := r.headers[number]; ok {
		r.mu.Unlock()
		return ts, nil
	}
	r.mu.Unlock()

	header, err := r.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, err
	}
	ts := time.Unix(int64(header.Time), 0).UTC()

	r.mu.Lock()
	r.headers[number] = ts
	r.mu.Unlock()
	return ts, nil
}

// decodeApprovalLog parses one raw log into an ApprovalEvent.
func decodeApprovalLog(vLog types.Log) (ApprovalEvent, bool) {
	if len(vLog.Topics) < 3 {
		return ApprovalEvent{}, false
	}
	ev := ApprovalEvent{
		Token:       vLog.Address,
		Owner:       common.BytesToAddress(vLog.Topics[1].Bytes()),
		Spender:     common.BytesToAddress(vLog.Topics[2].Bytes()),
		TxHash:      vLog.TxHash,
		BlockNumber: vLog.BlockNumber,
	}
	switch vLog.Topics[0] {
	case approvalEventSig:
		ev.Type = ApprovalERC20
		ev.Value = new(big.Int).SetBytes(vLog.Data)
		ev.Approved = ev.Value.Sign() > 0
	case approvalForAllEventSig:
		ev.Type = ApprovalNFT
		ev.Approved = len(vLog.Data) > 0 && vLog.Data[len(vLog.Data)-1] == 1
	default:
		return ApprovalEvent{}, false
	}
	return ev, true
}

// tokenRef is one candidate token from the wallet's transfer history.
type tokenRef struct {
	address common.Address
	name    string
	symbol  string
}

// collectApprovals reduces a token's event log to its currently active
// approvals: the latest event per (spender, type) wins, and a zero-value
// or un-approved latest event means the approval was revoked.
func collectApprovals(events []ApprovalEvent, ref tokenRef) []TokenApproval {
	type key struct {
		spender common.Address
		typ     ApprovalType
	}
	latest := make(map[key]ApprovalEvent)
	for _, ev := range events {
		k := key{ev.Spender, ev.Type}
		if prev, ok := latest[k]; !ok || ev.BlockNumber >= prev.BlockNumber {
			latest[k] = ev
		}
	}

	var approvals []TokenApproval
	for _, ev := range latest {
		if !ev.Approved {
			continue
		}
		a := TokenApproval{
			ID:           idgen.WithPrefix("apr_"),
			Type:         ev.Type,
			TokenAddress: strings.ToLower(ref.address.Hex()),
			TokenName:    ref.name,
			TokenSymbol:  ref.symbol,
			Spender:      strings.ToLower(ev.Spender.Hex()),
			ApprovedAt:   ev.Timestamp,
			TxHash:       ev.TxHash.Hex(),
			BlockNumber:  ev.BlockNumber,
		}
		switch ev.Type {
		case ApprovalERC20:
			a.Amount = ev.Value.String()
			a.Unlimited = ev.Value.Cmp(math.MaxBig256) >= 0
		case ApprovalNFT:
			a.Amount = "all"
			a.Unlimited = true
		}
		approvals = append(approvals, a)
	}

	sort.Slice(approvals, func(i, j int) bool {
		if approvals[i].BlockNumber != approvals[j].BlockNumber {
			return approvals[i].BlockNumber > approvals[j].BlockNumber
		}
		return approvals[i].Spender < approvals[j].Spender
	})
	return approvals
}
