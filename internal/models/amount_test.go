package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount(" 123456789012345678901234567890 ")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", a.String())

	for _, s := range []string{"", "-1", "1.5", "0x10", "abc"} {
		_, err := ParseAmount(s)
		assert.ErrorIs(t, err, ErrInvalidRequest, s)
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(1000)
	b := NewAmount(999)

	assert.Equal(t, "1999", a.Add(b).String())
	assert.Equal(t, "1", a.Sub(b).String())
	assert.Equal(t, "-1", b.Sub(a).String())
	assert.Equal(t, "19", b.MulDiv(2, 100).String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.True(t, Amount{}.IsZero())
	assert.Equal(t, "0", Amount{}.Add(Amount{}).String())

	// operands are not mutated
	assert.Equal(t, "1000", a.String())
}

func TestAmountJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		V Amount `json:"v"`
	}{NewAmount(42)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"42"}`, string(b))

	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"7","b":8}`), &v))
	assert.Equal(t, "7", v.A.String())
	assert.Equal(t, "8", v.B.String())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"-7"}`), &v))
}

func TestAmountScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("1000000000000000000000")))
	assert.Equal(t, "1000000000000000000000", a.String())

	require.NoError(t, a.Scan("15.000"))
	assert.Equal(t, "15", a.String())

	require.NoError(t, a.Scan(int64(3)))
	assert.Equal(t, "3", a.String())

	require.NoError(t, a.Scan(nil))
	assert.True(t, a.IsZero())

	assert.Error(t, a.Scan(1.5))
}
