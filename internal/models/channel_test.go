package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel(" Pool ")
	require.NoError(t, err)
	assert.Equal(t, ChannelPool, ch)

	_, err = ParseChannel("lottery")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestChannelAmountsJSON(t *testing.T) {
	m := ChannelAmounts{}
	m.Add(ChannelSwap, NewAmount(5))
	m.Add(ChannelSwap, NewAmount(6))

	v, err := m.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"swap":"11"}`, v.(string))

	var back ChannelAmounts
	require.NoError(t, back.Scan([]byte(`{"pool":"3","game":4}`)))
	assert.Equal(t, "3", back.Get(ChannelPool).String())
	assert.Equal(t, "4", back.Get(ChannelGame).String())
	assert.Equal(t, "0", back.Get(ChannelFarm).String())

	assert.Error(t, json.Unmarshal([]byte(`{"lottery":"1"}`), &back))
}

func TestCommissionPercents(t *testing.T) {
	p := DefaultCommissionPercents()
	assert.Equal(t, int64(2), p.For(ChannelPool))
	assert.Equal(t, int64(10), p.For(ChannelMarket))

	p[string(ChannelPool)] = 0
	assert.Equal(t, int64(10), p.For(ChannelPool))

	var scanned CommissionPercents
	require.NoError(t, scanned.Scan(`{"default":5,"farm":7}`))
	assert.Equal(t, int64(7), scanned.For(ChannelFarm))
	assert.Equal(t, int64(5), scanned.For(ChannelOther))
}

func TestReferralStatusAvailable(t *testing.T) {
	var s ReferralStatus
	assert.Equal(t, "0", s.Available(ChannelPool).String())

	s.EarnedTotal = ChannelAmounts{ChannelPool: NewAmount(100)}
	s.WithdrawnTotal = ChannelAmounts{ChannelPool: NewAmount(40)}
	assert.Equal(t, "60", s.Available(ChannelPool).String())
}
