package mathutil

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// CoinPrecision is the number of decimal places of the coin's smallest unit.
const CoinPrecision = 8

func init() {
	decimal.DivisionPrecision = CoinPrecision
}

// ErrNoSamples is returned by TrimmedMean with an empty sample set.
var ErrNoSamples = errors.New("no samples")

// Round8 rounds to the coin's precision of 8 decimal places.
func Round8(x decimal.Decimal) decimal.Decimal {
	return x.Round(CoinPrecision)
}

// DivRound8 divides x by y and rounds the result to 8 decimal places.
func DivRound8(x, y decimal.Decimal) decimal.Decimal {
	return x.DivRound(y, CoinPrecision)
}

// Percent returns rate percent of x, rounded to 8 decimal places.
func Percent(x, rate decimal.Decimal) decimal.Decimal {
	return Round8(x.Mul(rate).Div(decimal.NewFromInt(100)))
}

// TrimmedMean sorts the samples, discards round(trimRatio*N) entries from
// each end and returns the arithmetic mean of the remainder. With small N the
// trim rounds to zero and no entries are discarded.
func TrimmedMean(samples []decimal.Decimal, trimRatio float64) (decimal.Decimal, error) {
	if len(samples) <= 0 {
		return decimal.Zero, ErrNoSamples
	}

	sorted := make([]decimal.Decimal, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	trim := int(math.Round(trimRatio * float64(len(sorted))))
	if trim*2 >= len(sorted) {
		trim = 0
	}
	kept := sorted[trim : len(sorted)-trim]

	sum := decimal.Zero
	for _, s := range kept {
		sum = sum.Add(s)
	}
	return sum.Div(decimal.NewFromInt(int64(len(kept)))), nil
}
