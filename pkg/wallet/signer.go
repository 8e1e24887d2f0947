// Package wallet isolates key material and transaction signing. The rest of
// the engine only ever sees the Signer interface.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	coretypes "tipcourier/pkg/types"
)

// TxRequest describes a transaction to sign and broadcast.
type TxRequest struct {
	To        string
	Value     *big.Int
	Data      []byte
	GasLimit  uint64
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// Signer signs and submits transactions on behalf of the acting wallet.
type Signer interface {
	// Address returns the acting wallet address.
	Address() string
	// SendTransaction signs and broadcasts the request, returning the hash.
	SendTransaction(ctx context.Context, req TxRequest) (string, error)
	// SignTypedData produces an EIP-712 signature over the payload.
	SignTypedData(payload *coretypes.TypedDataPayload) ([]byte, error)
}

// LocalSigner signs with an in-process private key. Suitable for the CLI and
// tests; production deployments substitute a custodial implementation.
type LocalSigner struct {
	eth        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	logger     *zap.Logger
}

// NewLocalSigner parses the hex private key and binds the signer to a chain.
func NewLocalSigner(eth *ethclient.Client, privateKeyHex string, chainID int64, logger *zap.Logger) (*LocalSigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}
	return &LocalSigner{
		eth:        eth,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		chainID:    big.NewInt(chainID),
		logger:     logger,
	}, nil
}

// Address returns the signing wallet address.
func (s *LocalSigner) Address() string {
	return s.address.Hex()
}

// SendTransaction signs the request with the current pending nonce and
// broadcasts it.
func (s *LocalSigner) SendTransaction(ctx context.Context, req TxRequest) (string, error) {
	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("invalid destination address: %s", req.To)
	}

	nonce, err := s.eth.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	to := common.HexToAddress(req.To)
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		To:        &to,
		Value:     value,
		Gas:       req.GasLimit,
		GasFeeCap: req.GasFeeCap,
		GasTipCap: req.GasTipCap,
		Data:      req.Data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	hash := signedTx.Hash().Hex()
	s.logger.Debug("transaction broadcast",
		zap.String("hash", hash),
		zap.String("to", req.To),
		zap.Uint64("nonce", nonce))
	return hash, nil
}

// SignTypedData hashes the payload per EIP-712 and signs the digest.
func (s *LocalSigner) SignTypedData(payload *coretypes.TypedDataPayload) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode typed data: %w", err)
	}
	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return nil, fmt.Errorf("failed to decode typed data: %w", err)
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	// Shift recovery id to the 27/28 convention expected on-chain.
	sig[64] += 27
	return sig, nil
}
