package core

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressStringRoundTrip(t *testing.T) {
	var addr Address
	for i := range addr {
		addr[i] = byte(i)
	}
	s := addr.String()
	assert.Len(t, s, len(AddressPrefix)+40)
	assert.Equal(t, AddressPrefix, s[:len(AddressPrefix)])

	got, err := ParseAddress(s)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestParseAddressRejectsWrongPrefix(t *testing.T) {
	_, err := ParseAddress("eth00112233445566778899aabbccddeeff00112233")
	assert.Error(t, err)
}

func TestU128LEBytesRoundTrip(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(255),
		new(big.Int).Mul(big.NewInt(100_000), pow10(18)),
	}
	for _, v := range cases {
		b, err := u128LEBytes(v)
		require.NoError(t, err)
		got := u128FromLEBytes(b[:])
		assert.Equal(t, 0, v.Cmp(got), "want %s got %s", v, got)
	}
}

func TestU128LEBytesRejectsNegative(t *testing.T) {
	_, err := u128LEBytes(big.NewInt(-1))
	assert.Error(t, err)
}

func TestTokenKindTransferable(t *testing.T) {
	assert.True(t, Native.Transferable())
	assert.True(t, Utility.Transferable())
	assert.True(t, Stable.Transferable())
	assert.False(t, Soul.Transferable())
}

func TestBlockComputeHashDeterministic(t *testing.T) {
	b1 := &Block{Height: 1, PreviousHash: Hash{1}, Timestamp: 100}
	b2 := &Block{Height: 1, PreviousHash: Hash{1}, Timestamp: 100}
	h1, err := b1.computeHash()
	require.NoError(t, err)
	h2, err := b2.computeHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	b3 := &Block{Height: 1, PreviousHash: Hash{2}, Timestamp: 100}
	h3, err := b3.computeHash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestBlockHashSurvivesSerializeRoundTrip(t *testing.T) {
	orig := &Block{
		Height:       1,
		PreviousHash: Hash{9},
		Timestamp:    1234,
		Transactions: []*Transaction{{ID: "tx-1", Kind: TxTransfer, Nonce: 1}},
	}
	h1, err := orig.computeHash()
	require.NoError(t, err)
	orig.Hash = h1

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var roundTripped Block
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	h2, err := roundTripped.computeHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	data2, err := json.Marshal(&roundTripped)
	require.NoError(t, err)
	var roundTripped2 Block
	require.NoError(t, json.Unmarshal(data2, &roundTripped2))
	h3, err := roundTripped2.computeHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h3)
}

func TestTransactionSender(t *testing.T) {
	addr := Address{5}
	tx := &Transaction{Kind: TxStake, Stake: &StakeBody{Staker: addr, Amount: big.NewInt(1)}}
	got, ok := tx.Sender()
	require.True(t, ok)
	assert.Equal(t, addr, got)

	unknown := &Transaction{Kind: TxCreateAccount, CreateAccount: &CreateAccountBody{}}
	_, ok = unknown.Sender()
	assert.False(t, ok)
}
