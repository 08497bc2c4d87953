package models

import (
	"fmt"
	"strings"
)

// Channel is a category of value-generating activity with its own
// earning and withdrawal tallies.
type Channel string

const (
	ChannelPool   Channel = "pool"
	ChannelFarm   Channel = "farm"
	ChannelSwap   Channel = "swap"
	ChannelMarket Channel = "market"
	ChannelGame   Channel = "game"
	ChannelOther  Channel = "other"
)

// DefaultPercentKey addresses the fallback commission percent.
const DefaultPercentKey = "default"

var AllChannels = []Channel{
	ChannelPool,
	ChannelFarm,
	ChannelSwap,
	ChannelMarket,
	ChannelGame,
	ChannelOther,
}

func (c Channel) Valid() bool {
	for _, ch := range AllChannels {
		if ch == c {
			return true
		}
	}
	return false
}

func (c Channel) String() string {
	return string(c)
}

func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.Valid() {
		return "", NewError(InvalidRequest, fmt.Sprintf("unknown channel %q", s))
	}
	return ch, nil
}
