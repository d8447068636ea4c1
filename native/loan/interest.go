package loan

import "math/big"

// RateScale is the denominator for loan rates, matching the auction bid
// units: a rate of 100 is 10.0% annually.
const RateScale = 1000

// secondsPerYear uses the 365.25-day year convention. Leap years get no
// special handling; the convention is fixed for the life of every loan.
const secondsPerYear = 31_557_600

// rateWad converts an integer rate in RateScale units to a wad fraction.
func rateWad(rate uint64) *big.Int {
	out := new(big.Int).SetUint64(rate)
	out.Mul(out, wad)
	return out.Quo(out, big.NewInt(RateScale))
}

// accrualFactor returns the continuous-compounding growth factor
// e^(rate·Δt) as a wad value for the elapsed seconds.
func accrualFactor(rate uint64, elapsed int64) *big.Int {
	if rate == 0 || elapsed <= 0 {
		return new(big.Int).Set(wad)
	}
	exponent := new(big.Int).Mul(rateWad(rate), big.NewInt(elapsed))
	exponent = divHalfUp(exponent, big.NewInt(secondsPerYear))
	return expWad(exponent)
}
