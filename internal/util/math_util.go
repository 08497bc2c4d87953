package util

import (
	"refledger/internal/models"
)

const basisPoints = 10000

// ApplyMargin inflates a raw cost estimate by marginBps/10000, truncating:
// estimate * (10000 + marginBps) / 10000.
func ApplyMargin(estimate models.Amount, marginBps int64) models.Amount {
	return estimate.MulDiv(basisPoints+marginBps, basisPoints)
}

// Commission returns floor(value * percent / 100).
func Commission(value models.Amount, percent int64) models.Amount {
	if percent <= 0 {
		return models.Amount{}
	}
	return value.MulDiv(percent, 100)
}
