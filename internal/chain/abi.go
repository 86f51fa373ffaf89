// Package chain holds the ERC4626 contract ABI used to read vault share
// prices, and the address and integer conversions around it.
package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ERC4626 view methods read from vaults
const (
	MethodDecimals        = "decimals"
	MethodConvertToAssets = "convertToAssets"
	MethodTotalAssets     = "totalAssets"
	MethodTotalSupply     = "totalSupply"
	MethodAsset           = "asset"
)

const erc4626ABI = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"convertToAssets","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"assets","type":"uint256"}]},
	{"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"asset","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// VaultABI is the parsed subset of the ERC4626 interface vaultbench calls
var VaultABI = mustParseABI(erc4626ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid vault ABI: %v", err))
	}
	return parsed
}

// Pack builds calldata for method with the given arguments
func Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := VaultABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// UnpackUint256 decodes the single uint256 returned by method
func UnpackUint256(method string, ret []byte) (*uint256.Int, error) {
	v, err := unpackOne(method, ret)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want uint256", method, v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return nil, fmt.Errorf("%s returned %s, out of uint256 range", method, b)
	}
	return u, nil
}

// UnpackUint8 decodes the single uint8 returned by method, e.g. decimals()
func UnpackUint8(method string, ret []byte) (uint8, error) {
	v, err := unpackOne(method, ret)
	if err != nil {
		return 0, err
	}
	n, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("%s returned %T, want uint8", method, v)
	}
	return n, nil
}

// UnpackAddress decodes the single address returned by method, e.g. asset()
func UnpackAddress(method string, ret []byte) (common.Address, error) {
	v, err := unpackOne(method, ret)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T, want address", method, v)
	}
	return addr, nil
}

func unpackOne(method string, ret []byte) (interface{}, error) {
	out, err := VaultABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want 1", method, len(out))
	}
	return out[0], nil
}

// Pow10 returns 10^n as a uint256, the raw amount of one whole token
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// ChecksumAddress returns the EIP-55 mixed-case form of a 0x-prefixed
// hex address
func ChecksumAddress(addr string) (string, error) {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}
