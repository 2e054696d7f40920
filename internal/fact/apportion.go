package fact

import "github.com/shopspring/decimal"

// Apportion splits total into n integer parts that sum exactly to total.
// Parts differ by at most one unit; the remainder goes to the earliest parts.
func Apportion(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	parts := make([]int64, n)
	q := total / int64(n)
	r := total - q*int64(n)
	step := int64(1)
	if r < 0 {
		step, r = -1, -r
	}
	for i := range parts {
		parts[i] = q
		if int64(i) < r {
			parts[i] += step
		}
	}
	return parts
}

// ApportionMoney splits an amount into n parts in its smallest unit: cents,
// or the finer unit of the source value when it carries sub-cent digits.
func ApportionMoney(total decimal.Decimal, n int) []decimal.Decimal {
	places := int32(2)
	if e := -total.Exponent(); e > places {
		places = e
	}
	units := Apportion(total.Shift(places).IntPart(), n)
	parts := make([]decimal.Decimal, len(units))
	for i, u := range units {
		parts[i] = decimal.New(u, -places)
	}
	return parts
}
