package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vietddude/breadwatch/internal/infra/rpc"
)

// ErrNoSigner is returned when no key is configured for the sending address.
var ErrNoSigner = errors.New("no signing key for sender")

// Signer holds the wallet key used for transfers.
type Signer struct {
	key  *ecdsa.PrivateKey
	from common.Address
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{key: key, from: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signer's address.
func (s *Signer) Address() common.Address {
	return s.from
}

// gasBufferPercent is added on top of eth_estimateGas.
const gasBufferPercent = 20

// Transfer signs transfer(to, amount) on the token and broadcasts it.
func (a *EVMAdapter) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) (common.Hash, error) {
	if a.signer == nil || a.signer.from != from {
		return common.Hash{}, fmt.Errorf("%w %s", ErrNoSigner, from.Hex())
	}

	data, err := tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack transfer: %w", err)
	}

	nonce, err := a.hexUint64(ctx, "eth_getTransactionCount", []any{from.Hex(), "pending"})
	if err != nil {
		return common.Hash{}, err
	}

	gasPriceHex, err := a.client.Execute(ctx, rpc.NewHTTPOperation("eth_gasPrice", nil))
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_gasPrice failed: %w", err)
	}
	gasPrice, err := hexutil.DecodeBig(getString(gasPriceHex))
	if err != nil {
		return common.Hash{}, fmt.Errorf("decode gas price: %w", err)
	}

	call := map[string]any{
		"from": from.Hex(),
		"to":   a.token.Hex(),
		"data": hexutil.Encode(data),
	}
	gas, err := a.hexUint64(ctx, "eth_estimateGas", []any{call})
	if err != nil {
		return common.Hash{}, err
	}
	gas += gas * gasBufferPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &a.token,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(a.chainID)), a.signer.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transfer: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode transfer: %w", err)
	}

	if _, err := a.client.Execute(ctx, rpc.NewHTTPOperation("eth_sendRawTransaction", []any{hexutil.Encode(raw)})); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendRawTransaction failed: %w", err)
	}

	a.log.Info("Transfer broadcast",
		"tx", signed.Hash().Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
		"nonce", nonce,
	)
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of txHash.
func (a *EVMAdapter) WaitMined(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(a.receiptPoll)
	defer ticker.Stop()

	for {
		result, err := a.client.Execute(ctx, rpc.NewHTTPOperation("eth_getTransactionReceipt", []any{txHash.Hex()}))
		if err != nil {
			a.log.Debug("Receipt lookup failed", "tx", txHash.Hex(), "error", err)
		} else if receipt, ok := result.(map[string]any); ok {
			status, err := parseHexString(getString(receipt["status"]))
			if err != nil {
				return fmt.Errorf("receipt status: %w", err)
			}
			if status != types.ReceiptStatusSuccessful {
				return ErrReverted
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *EVMAdapter) hexUint64(ctx context.Context, method string, params []any) (uint64, error) {
	result, err := a.client.Execute(ctx, rpc.NewHTTPOperation(method, params))
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w", method, err)
	}
	n, err := hexutil.DecodeUint64(getString(result))
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", method, err)
	}
	return n, nil
}
