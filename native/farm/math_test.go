package farm

import (
	"math/big"
	"testing"
)

func TestAccumulatorDelta(t *testing.T) {
	cases := []struct {
		name    string
		elapsed uint64
		rate    *big.Int
		staked  *big.Int
		want    *big.Int
	}{
		{name: "no elapsed time", elapsed: 0, rate: big.NewInt(5), staked: big.NewInt(10), want: big.NewInt(0)},
		{name: "no stake", elapsed: 10, rate: big.NewInt(5), staked: big.NewInt(0), want: big.NewInt(0)},
		{name: "nil rate", elapsed: 10, rate: nil, staked: big.NewInt(10), want: big.NewInt(0)},
		{name: "even split", elapsed: 2, rate: big.NewInt(5), staked: big.NewInt(10), want: Precision()},
		{name: "truncates", elapsed: 1, rate: big.NewInt(1), staked: big.NewInt(3), want: mustBigInt("333333333333333333")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := accumulatorDelta(tc.elapsed, tc.rate, tc.staked)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestShareOf(t *testing.T) {
	acc := mustBigInt("1500000000000000000")
	if got := shareOf(big.NewInt(10), acc); got.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("unexpected share %s", got)
	}
	if got := shareOf(big.NewInt(3), acc); got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected truncation to 4, got %s", got)
	}
	if got := shareOf(nil, acc); got.Sign() != 0 {
		t.Fatalf("expected zero for nil stake, got %s", got)
	}
}

func TestPrecisionReturnsCopy(t *testing.T) {
	p := Precision()
	p.SetInt64(1)
	if Precision().Cmp(big.NewInt(1)) == 0 {
		t.Fatalf("Precision leaked its backing value")
	}
}

func TestEmission(t *testing.T) {
	got := emission(3, big.NewInt(7))
	if got.Cmp(big.NewInt(21)) != 0 {
		t.Fatalf("unexpected emission %s", got)
	}
}
