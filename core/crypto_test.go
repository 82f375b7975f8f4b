package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	msg := []byte("ghostchain")
	sig := Sign(kp.PrivateKey, msg)
	assert.True(t, Verify(kp.PublicKey, msg, sig))
	assert.False(t, Verify(kp.PublicKey, []byte("tampered"), sig))
}

func TestMnemonicKeypairRecovery(t *testing.T) {
	kp, mnemonic, err := NewMnemonicKeypair(128)
	require.NoError(t, err)

	recovered, err := KeypairFromMnemonic(mnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, recovered.PublicKey)
}

func TestKeypairFromMnemonicRejectsBadChecksum(t *testing.T) {
	_, err := KeypairFromMnemonic("not a valid mnemonic at all", "")
	assert.Error(t, err)
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	a1 := DeriveAddress(kp.PublicKey)
	a2 := DeriveAddress(kp.PublicKey)
	assert.Equal(t, a1, a2)
}
