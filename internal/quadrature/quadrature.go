// Package quadrature implements the fixed-step midpoint rule used to
// evaluate bounded integrals over task sub-ranges.
package quadrature

import "math"

// Integrand is a pluggable real-valued function to integrate.
type Integrand func(x float64) float64

// LogReciprocal is the default integrand 1/ln(x). It is defined as 0 for
// x <= 1 and wherever ln(x) is within 1e-10 of zero; singular points
// contribute nothing rather than erroring.
func LogReciprocal(x float64) float64 {
	if x <= 1.0 {
		return 0.0
	}
	ln := math.Log(x)
	if math.Abs(ln) < 1e-10 {
		return 0.0
	}
	return 1.0 / ln
}

// Midpoint integrates fn over [lower, upper) by walking the interval in
// steps of size step, evaluating fn at each step's midpoint and accumulating
// midpoint value times step width. The final step is clipped to upper.
// A non-positive range or step yields 0.
func Midpoint(fn Integrand, lower, upper, step float64) float64 {
	if upper-lower <= 0 || step <= 0 {
		return 0.0
	}

	sum := 0.0
	x := lower
	for x < upper {
		next := math.Min(x+step, upper)
		mid := (x + next) / 2.0
		sum += fn(mid) * (next - x)
		x = next
	}
	return sum
}

// Range is one contiguous sub-range produced by SplitRange.
type Range struct {
	Lower float64
	Upper float64
}

// SplitRange divides [lower, upper) into n equal-width sub-ranges. The last
// sub-range absorbs any floating-point remainder so the union covers the
// original range exactly, with no gap or overlap. n < 1 or an empty range
// yields nil.
func SplitRange(lower, upper float64, n int) []Range {
	if n < 1 || upper-lower <= 0 {
		return nil
	}

	width := (upper - lower) / float64(n)
	ranges := make([]Range, n)
	current := lower
	for i := 0; i < n; i++ {
		next := current + width
		if i == n-1 {
			next = upper
		}
		ranges[i] = Range{Lower: current, Upper: next}
		current = next
	}
	return ranges
}
