package bip39

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMnemonic(t *testing.T) {
	s := NewMnemonicService()

	m12, err := s.GenerateMnemonic(128)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m12), 12)
	assert.True(t, s.ValidateMnemonic(m12))

	m24, err := s.GenerateMnemonic(256)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m24), 24)
	assert.True(t, s.ValidateMnemonic(m24))

	_, err = s.GenerateMnemonic(100) // 非法熵长度
	assert.Error(t, err)
}

func TestValidateMnemonic(t *testing.T) {
	s := NewMnemonicService()
	assert.False(t, s.ValidateMnemonic("not a real mnemonic at all"))
}

func TestMnemonicToSeed(t *testing.T) {
	// BIP-39 官方测试向量 (Trezor)
	s := NewMnemonicService()
	mnemonic := "legal winner thank year wave sausage worth useful legal winner thank yellow"
	seed := s.MnemonicToSeed(mnemonic, "TREZOR")
	assert.Equal(t,
		"2e8905819b8723ba2919169568a6ee1bd2c06cb348c41aa1018700da39d09129710375977c51112c9883a8f7b7d4daf58e222dec6384cc077f43d5abf67a4e1d",
		hex.EncodeToString(seed))
}
