package loan

import "math/big"

// Fixed-point arithmetic on 18-decimal "wad" values. All interest math runs in
// wad space and converts back to wei amounts rounding in the protocol's
// favour, so accrued debt is never under-collected.

var (
	wad     = big.NewInt(1_000_000_000_000_000_000)
	halfWad = new(big.Int).Rsh(wad, 1)
)

// mulWadHalfUp multiplies two wad values rounding half up.
func mulWadHalfUp(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfWad)
	return product.Quo(product, wad)
}

// mulWadUp multiplies a wei amount by a wad factor rounding up.
func mulWadUp(amount, factor *big.Int) *big.Int {
	if amount == nil || factor == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, factor)
	return ceilQuo(product, wad)
}

// divHalfUp divides rounding half up. The divisor must be positive.
func divHalfUp(num, den *big.Int) *big.Int {
	if num == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Rsh(den, 1)
	out := new(big.Int).Add(num, half)
	return out.Quo(out, den)
}

func ceilQuo(num, den *big.Int) *big.Int {
	if num == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// expTaylorTerms bounds the Maclaurin series. After argument reduction the
// exponent is at most 0.5, where term 24 is far below one wei of precision.
const expTaylorTerms = 24

// expWad evaluates e^x for a non-negative wad exponent. The argument is
// halved until it is at most 0.5, the series is summed, and the result is
// squared back up. Realistic accrual exponents (rate at most 100% annually,
// accrual applied at every loan touch) keep the reduction shallow.
func expWad(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return new(big.Int).Set(wad)
	}
	reduced := new(big.Int).Set(x)
	squarings := 0
	for reduced.Cmp(halfWad) > 0 {
		reduced.Rsh(reduced, 1)
		squarings++
	}

	sum := new(big.Int).Set(wad)
	term := new(big.Int).Set(wad)
	for i := int64(1); i <= expTaylorTerms; i++ {
		term.Mul(term, reduced)
		term = divHalfUp(term, new(big.Int).Mul(wad, big.NewInt(i)))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	for i := 0; i < squarings; i++ {
		sum = mulWadHalfUp(sum, sum)
	}
	return sum
}

func minBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
