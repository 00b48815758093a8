package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"\U0001F600": IRInt(1), // surrogate pair D83D DE00
		"\uFFFF":     IRInt(2),
		"a":          IRInt(3),
	}
	// UTF-16 puts the surrogate pair before U+FFFF; UTF-8 would not.
	assert.Equal(t, []string{"a", "\U0001F600", "\uFFFF"}, obj.SortedKeys())
}

func TestIRObjectAccessors(t *testing.T) {
	var pk Pubkey
	pk[31] = 1

	obj := IRObject{
		"amount": IRInt(5),
		"mint":   IRString(pk.String()),
		"bad":    IRBool(true),
	}

	n, err := obj.Int("amount")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	got, err := obj.Pubkey("mint")
	require.NoError(t, err)
	assert.Equal(t, pk, got)

	_, err = obj.Int("missing")
	assert.ErrorContains(t, err, "missing argument")

	_, err = obj.String("bad")
	assert.ErrorContains(t, err, "want string")

	_, ok, err := obj.OptionalPubkey("source")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFromGoJSONNumbers(t *testing.T) {
	_, err := FromGo(map[string]any{"amount": json.Number("1.5")})
	assert.Error(t, err)

	_, err = FromGo(map[string]any{"amount": nil})
	assert.Error(t, err)

	_, err = FromGo(json.Number("1e3"))
	assert.ErrorContains(t, err, "floats are forbidden")

	v, err := FromGo(map[string]any{"amount": json.Number("9007199254740993")})
	require.NoError(t, err)
	assert.Equal(t, IRObject{"amount": IRInt(9007199254740993)}, v)
}

func TestFromGoYAMLNumbers(t *testing.T) {
	v, err := FromGo(map[string]any{"amount": float64(500), "nested": []any{1, "x"}})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"amount": IRInt(500),
		"nested": IRArray{IRInt(1), IRString("x")},
	}, v)

	_, err = FromGo(2.5)
	assert.Error(t, err)
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"b": IRArray{IRInt(1), IRBool(true)},
		"a": IRObject{"s": IRString("x")},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"s":"x"},"b":[1,true]}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, obj, back)
}
