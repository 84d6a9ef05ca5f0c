package market

import (
	"math"
	"math/bits"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// addChecked adds two amounts, failing instead of wrapping.
func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return sum, nil
}

// exposureDelta widens a trade count to a signed exposure delta, failing
// instead of wrapping when the count exceeds the signed range.
func exposureDelta(count uint64) (int64, error) {
	if count > math.MaxInt64 {
		return 0, domain.ErrArithmeticOverflow
	}
	return int64(count), nil
}

// addExposure applies a buy of count tokens to an exposure entry.
func addExposure(cur int64, count uint64) (int64, error) {
	d, err := exposureDelta(count)
	if err != nil {
		return 0, err
	}
	if cur > math.MaxInt64-d {
		return 0, domain.ErrArithmeticOverflow
	}
	return cur + d, nil
}

// subExposure applies a sell of count tokens to an exposure entry.
func subExposure(cur int64, count uint64) (int64, error) {
	d, err := exposureDelta(count)
	if err != nil {
		return 0, err
	}
	if cur < math.MinInt64+d {
		return 0, domain.ErrArithmeticOverflow
	}
	return cur - d, nil
}
