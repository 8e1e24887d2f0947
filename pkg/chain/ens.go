package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ensRegistryAddress is the canonical ENS registry deployment.
const ensRegistryAddress = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

const ensRegistryABI = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

const ensResolverABI = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

// Namehash implements the ENS name hashing algorithm (EIP-137).
func Namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}

// ResolveName resolves an ENS name to an address via the on-chain registry.
// Returns an error when the name has no resolver or no address record.
func (c *Client) ResolveName(ctx context.Context, name string) (string, error) {
	node := Namehash(strings.ToLower(strings.TrimSpace(name)))

	registry, err := abi.JSON(strings.NewReader(ensRegistryABI))
	if err != nil {
		return "", fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	data, err := registry.Pack("resolver", node)
	if err != nil {
		return "", fmt.Errorf("failed to pack resolver data: %w", err)
	}
	registryAddr := common.HexToAddress(ensRegistryAddress)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &registryAddr, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to query ENS registry: %w", err)
	}
	resolverAddr := common.BytesToAddress(out)
	if resolverAddr == (common.Address{}) {
		return "", fmt.Errorf("no resolver set for %s", name)
	}

	resolver, err := abi.JSON(strings.NewReader(ensResolverABI))
	if err != nil {
		return "", fmt.Errorf("failed to parse resolver ABI: %w", err)
	}
	data, err = resolver.Pack("addr", node)
	if err != nil {
		return "", fmt.Errorf("failed to pack addr data: %w", err)
	}
	out, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &resolverAddr, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to query resolver: %w", err)
	}
	addr := common.BytesToAddress(out)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("no address record for %s", name)
	}
	return addr.Hex(), nil
}
