package hmc7044

import (
	"errors"
	"fmt"
)

var (
	// ErrVCOOutOfRange — частота PLL2 вне диапазона обоих VCO.
	ErrVCOOutOfRange = errors.New("hmc7044: pll2 frequency out of VCO range")
	// ErrN2TooSmall — делитель обратной связи PLL2 не удалось поднять до N2Min.
	ErrN2TooSmall = errors.New("hmc7044: pll2 feedback divider below minimum")
	// ErrInvalidConfig — некорректные входные параметры.
	ErrInvalidConfig = errors.New("hmc7044: invalid configuration")
)

// Plan — результат частотного планирования HMC7044. Частоты — в кГц.
type Plan struct {
	VCXO uint64 `json:"vcxo_khz"`
	PLL2 uint64 `json:"pll2_khz"`

	LCM         uint64    `json:"lcm_khz"`
	RefEnable   uint8     `json:"ref_enable"`
	InPrescaler [5]uint32 `json:"in_prescaler"` // CLKIN0..3, OSCIN
	LockDetect  uint32    `json:"pll1_lock_detect"`
	N1          uint32    `json:"n1"`
	R1          uint32    `json:"r1"`
	PFD1        uint64    `json:"pfd1_khz"`
	HighVCO     bool      `json:"high_vco"`
	FreqDoubler bool      `json:"freq_doubler"`
	N2          uint32    `json:"n2"`
	R2          uint32    `json:"r2"`
}

// VCOSelect возвращает код выбора VCO для EN_CTRL_0.
func (p Plan) VCOSelect() byte {
	if p.HighVCO {
		return VCOHigh
	}
	return VCOLow
}

// PlanInput — исходные данные для планирования, в Гц.
type PlanInput struct {
	VCXO       uint64
	PLL2       uint64
	CLKIn      [4]uint64
	CLKInCCF   [4]uint64
	PLL1LoopBW uint32 // Гц
}

// clkinKHz — частота CLKINx в кГц; значение от провайдера тактов (CCF) приоритетнее статического.
func (in PlanInput) clkinKHz(i int) uint64 {
	if in.CLKInCCF[i] != 0 {
		return in.CLKInCCF[i] / 1000
	}
	return in.CLKIn[i] / 1000
}

// PlanPLL вычисляет делители PLL1/PLL2, предделители входов и диапазон VCO.
// Ни один регистр при этом не пишется.
func PlanPLL(in PlanInput) (Plan, error) {
	vcxo := in.VCXO / 1000
	pll2 := in.PLL2 / 1000
	if vcxo == 0 {
		return Plan{}, fmt.Errorf("%w: vcxo frequency is zero", ErrInvalidConfig)
	}
	if in.PLL1LoopBW == 0 {
		return Plan{}, fmt.Errorf("%w: pll1 loop bandwidth is zero", ErrInvalidConfig)
	}
	p := Plan{VCXO: vcxo, PLL2: pll2}

	var clkin [4]uint64
	lcm := vcxo
	for i := range clkin {
		clkin[i] = in.clkinKHz(i)
		if clkin[i] != 0 {
			lcm = GCD(clkin[i], lcm)
			p.RefEnable |= 1 << i
		}
	}
	for lcm > RecommLCMMax {
		lcm /= 2
	}
	p.LCM = lcm

	for i := range clkin {
		if clkin[i] != 0 {
			p.InPrescaler[i] = uint32(clkin[i] / lcm)
		} else {
			p.InPrescaler[i] = 1
		}
	}
	p.InPrescaler[4] = uint32(vcxo / lcm)

	p.LockDetect = Log2(lcm*4000/uint64(in.PLL1LoopBW)) & lockDetectTimerMask

	// fVCXO / N1 = fLCM / R1
	n1, r1 := RationalBestApproximation(vcxo, lcm, N1Max, R1Max)
	pfd1 := vcxo / n1
	for pfd1 > RecommFPD1 && n1 <= N1Max/2 && r1 <= R1Max/2 {
		pfd1 /= 2
		n1 *= 2
		r1 *= 2
	}
	p.N1, p.R1, p.PFD1 = uint32(n1), uint32(r1), pfd1

	if pll2 < LowVCOMin || pll2 > HighVCOMax {
		return Plan{}, fmt.Errorf("%w: %d kHz not in %d..%d kHz", ErrVCOOutOfRange, pll2, LowVCOMin, HighVCOMax)
	}
	p.HighVCO = pll2 >= (LowVCOMax+HighVCOMin)/2

	// fVCO / N2 = fVCXO * doubler / R2
	p.FreqDoubler = true
	n2, r2 := RationalBestApproximation(pll2, vcxo*2, N2Max, R2Max)
	if pll2 != vcxo*2*n2/r2 {
		n, r := RationalBestApproximation(pll2, vcxo, N2Max, R2Max)
		if absDiff(pll2, vcxo*2*n2/r2) > absDiff(pll2, vcxo*n/r) {
			n2, r2 = n, r
			p.FreqDoubler = false
		}
	}

	for n2 < N2Min && r2 <= R2Max/2 {
		n2 *= 2
		r2 *= 2
	}
	if n2 < N2Min {
		return Plan{}, fmt.Errorf("%w: n2=%d r2=%d", ErrN2TooSmall, n2, r2)
	}
	p.N2, p.R2 = uint32(n2), uint32(r2)
	return p, nil
}

// CalcOutDiv вычисляет делитель канала для rate от родительской частоты parent.
// Из нечётных делителей допустимы только 1, 3 и 5.
func CalcOutDiv(rate, parent uint64) uint32 {
	if rate == 0 {
		return OutDivMax
	}
	div := DivRoundClosest(parent, rate)
	if div != 1 && div != 3 && div != 5 && div%2 != 0 {
		div = DivRoundClosest(parent, rate*2) * 2
	}
	if div > OutDivMax {
		div = OutDivMax
	}
	return clampU32(uint32(div), OutDivMin, OutDivMax)
}
