package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/infra/rpc"
)

// QueryMints returns Mint logs in [fromBlock, toBlock]. A nil beneficiary
// returns mints for every address.
func (a *EVMAdapter) QueryMints(
	ctx context.Context,
	fromBlock, toBlock uint64,
	beneficiary *common.Address,
) ([]domain.MintEvent, error) {
	topics := []any{MintTopic.Hex()}
	if beneficiary != nil {
		topics = append(topics, common.BytesToHash(beneficiary.Bytes()).Hex())
	}

	logs, err := a.getLogs(ctx, fromBlock, toBlock, topics)
	if err != nil {
		return nil, err
	}

	events := make([]domain.MintEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := decodeMint(lg)
		if err != nil {
			a.log.Warn("Skipping malformed mint log", "tx", lg.TxHash.Hex(), "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// QueryTransfers returns Transfer logs in [fromBlock, toBlock].
func (a *EVMAdapter) QueryTransfers(
	ctx context.Context,
	fromBlock, toBlock uint64,
) ([]domain.TransferNotification, error) {
	logs, err := a.getLogs(ctx, fromBlock, toBlock, []any{TransferTopic.Hex()})
	if err != nil {
		return nil, err
	}

	transfers := make([]domain.TransferNotification, 0, len(logs))
	for _, lg := range logs {
		tr, err := decodeTransfer(lg)
		if err != nil {
			a.log.Warn("Skipping malformed transfer log", "tx", lg.TxHash.Hex(), "error", err)
			continue
		}
		transfers = append(transfers, tr)
	}
	return transfers, nil
}

// getLogs splits the range into maxRange sized eth_getLogs requests.
func (a *EVMAdapter) getLogs(ctx context.Context, fromBlock, toBlock uint64, topics []any) ([]types.Log, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	var all []types.Log
	for start := fromBlock; start <= toBlock; {
		end := start + a.maxRange - 1
		if end > toBlock || end < start {
			end = toBlock
		}

		filter := map[string]any{
			"address":   a.token.Hex(),
			"fromBlock": hexutil.EncodeUint64(start),
			"toBlock":   hexutil.EncodeUint64(end),
			"topics":    topics,
		}
		result, err := a.client.Execute(ctx, rpc.NewHTTPOperation("eth_getLogs", []any{filter}))
		if err != nil {
			return nil, fmt.Errorf("eth_getLogs [%d,%d] failed: %w", start, end, err)
		}

		var logs []types.Log
		if err := decodeResult(result, &logs); err != nil {
			return nil, fmt.Errorf("decode logs: %w", err)
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			all = append(all, lg)
		}

		if end == toBlock {
			break
		}
		start = end + 1
	}
	return all, nil
}

func decodeMint(lg types.Log) (domain.MintEvent, error) {
	if len(lg.Topics) < 2 || lg.Topics[0] != MintTopic {
		return domain.MintEvent{}, fmt.Errorf("not a mint log")
	}
	values, err := tokenABI.Unpack("Mint", lg.Data)
	if err != nil {
		return domain.MintEvent{}, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return domain.MintEvent{}, fmt.Errorf("unexpected amount type %T", values[0])
	}
	return domain.MintEvent{
		Beneficiary: common.BytesToAddress(lg.Topics[1].Bytes()),
		Amount:      amount,
		TxHash:      lg.TxHash,
		BlockNumber: lg.BlockNumber,
	}, nil
}

func decodeTransfer(lg types.Log) (domain.TransferNotification, error) {
	if len(lg.Topics) < 3 || lg.Topics[0] != TransferTopic {
		return domain.TransferNotification{}, fmt.Errorf("not a transfer log")
	}
	values, err := tokenABI.Unpack("Transfer", lg.Data)
	if err != nil {
		return domain.TransferNotification{}, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return domain.TransferNotification{}, fmt.Errorf("unexpected value type %T", values[0])
	}
	return domain.TransferNotification{
		From:        common.BytesToAddress(lg.Topics[1].Bytes()),
		To:          common.BytesToAddress(lg.Topics[2].Bytes()),
		Amount:      amount,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, nil
}
