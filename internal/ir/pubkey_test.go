package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	// The system program address is 32 zero bytes.
	zero := MustParsePubkey("11111111111111111111111111111111")
	assert.True(t, zero.IsZero())
	assert.Equal(t, "11111111111111111111111111111111", zero.String())

	var pk Pubkey
	for i := range pk {
		pk[i] = byte(i)
	}
	back, err := ParsePubkey(pk.String())
	require.NoError(t, err)
	assert.True(t, pk.Equal(back))
}

func TestParsePubkeyRejectsWrongLength(t *testing.T) {
	_, err := ParsePubkey("abc")
	assert.Error(t, err)

	_, err = ParsePubkey("0OIl") // not in the base58 alphabet
	assert.Error(t, err)
}

func TestPubkeyJSONText(t *testing.T) {
	var pk Pubkey
	pk[0] = 9

	data, err := json.Marshal(struct {
		Key Pubkey `json:"key"`
	}{pk})
	require.NoError(t, err)
	assert.Equal(t, `{"key":"`+pk.String()+`"}`, string(data))

	var back struct {
		Key Pubkey `json:"key"`
	}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, pk, back.Key)
}
