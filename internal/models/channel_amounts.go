package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ChannelAmounts maps every channel to an amount. Missing channels read as 0.
type ChannelAmounts map[Channel]Amount

func (m ChannelAmounts) Get(ch Channel) Amount {
	if m == nil {
		return Amount{}
	}
	return m[ch]
}

func (m ChannelAmounts) Add(ch Channel, v Amount) {
	m[ch] = m.Get(ch).Add(v)
}

func (m ChannelAmounts) Value() (driver.Value, error) {
	return jsonValue(m)
}

func (m *ChannelAmounts) Scan(src any) error {
	return jsonScan(src, m)
}

func (m *ChannelAmounts) UnmarshalJSON(data []byte) error {
	raw := make(map[Channel]Amount)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for ch := range raw {
		if !ch.Valid() {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	*m = raw
	return nil
}

// Tally is the accumulated action value of an account in one channel,
// in the channel currency and in the quote currency.
type Tally struct {
	Channel Amount `json:"channel"`
	Quote   Amount `json:"quote"`
}

type ChannelTallies map[Channel]Tally

func (m ChannelTallies) Get(ch Channel) Tally {
	if m == nil {
		return Tally{}
	}
	return m[ch]
}

func (m ChannelTallies) Value() (driver.Value, error) {
	return jsonValue(m)
}

func (m *ChannelTallies) Scan(src any) error {
	return jsonScan(src, m)
}

type ChannelCounts map[Channel]int64

func (m ChannelCounts) Value() (driver.Value, error) {
	return jsonValue(m)
}

func (m *ChannelCounts) Scan(src any) error {
	return jsonScan(src, m)
}

// CommissionPercents holds per-channel percents and the "default" fallback.
type CommissionPercents map[string]int64

func DefaultCommissionPercents() CommissionPercents {
	p := CommissionPercents{DefaultPercentKey: 10}
	for _, ch := range AllChannels {
		p[string(ch)] = 0
	}
	p[string(ChannelPool)] = 2
	return p
}

// For returns the percent applied to ch, falling back to the default
// when the channel percent is unset or zero.
func (p CommissionPercents) For(ch Channel) int64 {
	if v := p[string(ch)]; v > 0 {
		return v
	}
	return p[DefaultPercentKey]
}

func (p CommissionPercents) Value() (driver.Value, error) {
	return jsonValue(p)
}

func (p *CommissionPercents) Scan(src any) error {
	return jsonScan(src, p)
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New(fmt.Sprintf("cannot scan %T into json column", src))
	}
}
