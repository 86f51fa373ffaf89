package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultABI_Selectors(t *testing.T) {
	tests := []struct {
		method   string
		expected string
	}{
		{MethodDecimals, "313ce567"},
		{MethodTotalSupply, "18160ddd"},
		{MethodTotalAssets, "01e1d114"},
		{MethodConvertToAssets, "07a2d13a"},
		{MethodAsset, "38d52e0f"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.expected, hex.EncodeToString(VaultABI.Methods[tt.method].ID))
		})
	}
}

func TestPack_WithUint256Argument(t *testing.T) {
	data, err := Pack(MethodConvertToAssets, Pow10(18).ToBig())
	require.NoError(t, err)
	require.Len(t, data, 4+32)

	assert.Equal(t, "07a2d13a", hex.EncodeToString(data[:4]))
	assert.Equal(t,
		"0000000000000000000000000000000000000000000000000de0b6b3a7640000",
		hex.EncodeToString(data[4:]))
}

func TestPack_NoArguments(t *testing.T) {
	data, err := Pack(MethodDecimals)
	require.NoError(t, err)
	assert.Equal(t, "313ce567", hex.EncodeToString(data))

	_, err = Pack("withdraw")
	assert.Error(t, err)
}

func TestUnpackUint256(t *testing.T) {
	ret, err := VaultABI.Methods[MethodTotalAssets].Outputs.Pack(big.NewInt(1_050_000))
	require.NoError(t, err)

	v, err := UnpackUint256(MethodTotalAssets, ret)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_050_000), v.Uint64())

	_, err = UnpackUint256(MethodTotalAssets, []byte{0x01})
	assert.Error(t, err)
}

func TestUnpackUint8(t *testing.T) {
	ret, err := VaultABI.Methods[MethodDecimals].Outputs.Pack(uint8(18))
	require.NoError(t, err)

	v, err := UnpackUint8(MethodDecimals, ret)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), v)

	_, err = UnpackUint8(MethodTotalSupply, ret)
	assert.Error(t, err)
}

func TestUnpackAddress(t *testing.T) {
	ret, err := hex.DecodeString("000000000000000000000000833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	require.NoError(t, err)

	addr, err := UnpackAddress(MethodAsset, ret)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), addr)
}

func TestPow10(t *testing.T) {
	assert.Equal(t, uint64(1), Pow10(0).Uint64())
	assert.Equal(t, uint64(1_000_000), Pow10(6).Uint64())
	assert.Equal(t, "1000000000000000000", Pow10(18).ToBig().String())
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	for _, bad := range []string{
		"not-an-address",
		"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x...",
		"0xzz256Ae5FF1cf2719D4937adb3bbCCab2E00A2Ca",
	} {
		_, err = ChecksumAddress(bad)
		assert.Error(t, err, bad)
	}
}
