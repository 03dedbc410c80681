package hmc7044

import "math/bits"

/*
RationalBestApproximation находит дробь bn/bd ≈ n/d при bn ≤ maxN и bd ≤ maxD.

Дробь строится по цепной дроби: каждый следующий член даёт очередную подходящую
дробь n2/d2 = n0 + a*n1 / d0 + a*d1. Как только подходящая дробь выходит за
пределы, берётся либо предыдущая подходящая дробь, либо наибольшая
промежуточная (semi-convergent) с последним членом t, если она ближе.

Пример: для PLL2 = 2949120 кГц и удвоенного VCXO = 245760 кГц ответ 12/1.
*/
func RationalBestApproximation(n, d, maxN, maxD uint64) (bn, bd uint64) {
	var n0, d1 uint64 = 0, 0
	var n1, d0 uint64 = 1, 1

	for d != 0 {
		dp := d
		a := n / d
		d = n % d
		n = dp

		n2 := n0 + a*n1
		d2 := d0 + a*d1
		if n2 > maxN || d2 > maxD {
			t := ^uint64(0)
			if d1 != 0 {
				t = (maxD - d0) / d1
			}
			if n1 != 0 {
				t = min(t, (maxN-n0)/n1)
			}
			// Промежуточная дробь ближе предыдущей подходящей, если 2t > a
			// (при 2t == a решает сравнение остатков).
			if d1 == 0 || 2*t > a || (2*t == a && d0*dp > d1*d) {
				n1 = n0 + t*n1
				d1 = d0 + t*d1
			}
			break
		}
		n0, n1 = n1, n2
		d0, d1 = d1, d2
	}
	return n1, d1
}

// GCD — наибольший общий делитель (алгоритм Евклида).
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Log2 возвращает floor(log2(x)); для x == 0 — 0.
func Log2(x uint64) uint32 {
	if x == 0 {
		return 0
	}
	return uint32(bits.Len64(x) - 1)
}

// DivRoundClosest — целочисленное деление с округлением до ближайшего.
func DivRoundClosest(x, d uint64) uint64 {
	return (x + d/2) / d
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
