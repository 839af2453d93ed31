package farm

import "math/big"

// precision is the fixed point scale P applied to AccRewardPerShare. With
// 1e18 the truncation in a single advance loses less than one reward unit
// per staked unit.
var precision = mustBigInt("1000000000000000000")

// Precision returns the accumulator scaling factor.
func Precision() *big.Int {
	return new(big.Int).Set(precision)
}

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// accumulatorDelta returns elapsed * rate * P / totalStaked, truncated.
func accumulatorDelta(elapsed uint64, rate, totalStaked *big.Int) *big.Int {
	if elapsed == 0 || rate == nil || rate.Sign() <= 0 || totalStaked == nil || totalStaked.Sign() <= 0 {
		return big.NewInt(0)
	}
	delta := emission(elapsed, rate)
	delta.Mul(delta, precision)
	return delta.Quo(delta, totalStaked)
}

// emission returns elapsed * rate.
func emission(elapsed uint64, rate *big.Int) *big.Int {
	if elapsed == 0 || rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(elapsed), rate)
}

// shareOf returns staked * acc / P, truncated.
func shareOf(staked, acc *big.Int) *big.Int {
	if staked == nil || staked.Sign() <= 0 || acc == nil || acc.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(staked, acc)
	return share.Quo(share, precision)
}
