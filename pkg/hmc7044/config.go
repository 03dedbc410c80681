package hmc7044

import "fmt"

// Variant — модель микросхемы.
type Variant uint8

const (
	HMC7044 Variant = iota
	HMC7043 // без PLL: выход распределения тактируется напрямую с CLKIN0
)

func (v Variant) String() string {
	if v == HMC7043 {
		return "hmc7043"
	}
	return "hmc7044"
}

// ChannelSpec — настройки одного выходного канала.
type ChannelSpec struct {
	Num     uint32 // аппаратный номер канала 0..13
	Name    string
	Disable bool
	Divider uint32

	DriverMode                 uint8
	DriverImpedance            uint8
	HighPerformanceModeDisable bool
	StartUpModeDynamicEnable   bool
	DynamicDriverEnable        bool
	OutputControl0RB4Enable    bool
	ForceMuteEnable            bool
	CoarseDelay                uint8
	FineDelay                  uint8
	OutMuxMode                 uint8
}

// Config — параметры инициализации устройства. Частоты — в Гц.
type Config struct {
	Variant Variant

	CLKIn    [4]uint64
	CLKInCCF [4]uint64 // частоты от внешнего провайдера тактов, если известны
	VCXO     uint64
	PLL2     uint64
	// PLL1LoopBW — полоса петли PLL1, Гц.
	PLL1LoopBW uint32

	SysrefTimerDiv                     uint32
	PLL1RefPrioCtrl                    uint8
	CLKIn0RFSyncEnable                 bool
	CLKIn1VCOInEnable                  bool
	HighPerformanceModeClockDistEnable bool
	RFReseederDisable                  bool
	SyncPinMode                        uint8
	PulseGenMode                       uint8

	InBufMode [5]uint8 // CLKIN0..3, OSCIN
	GPICtrl   [4]uint8
	GPOCtrl   [4]uint8

	Channels []ChannelSpec

	// ExportClocks — создать дескрипторы clock_0..clock_13 для провайдера тактов.
	ExportClocks bool
}

// DefaultPLL1LoopBW — полоса петли PLL1 по умолчанию, Гц.
const DefaultPLL1LoopBW = 200

func (c *Config) validate() error {
	seen := make(map[uint32]bool, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]
		if seen[ch.Num] {
			return fmt.Errorf("%w: duplicate channel %d", ErrInvalidConfig, ch.Num)
		}
		seen[ch.Num] = true
		ch.Divider = clampU32(ch.Divider, OutDivMin, OutDivMax)
	}
	if c.Variant == HMC7044 && c.PLL1LoopBW == 0 {
		c.PLL1LoopBW = DefaultPLL1LoopBW
	}
	return nil
}

func (c *Config) planInput() PlanInput {
	return PlanInput{
		VCXO:       c.VCXO,
		PLL2:       c.PLL2,
		CLKIn:      c.CLKIn,
		CLKInCCF:   c.CLKInCCF,
		PLL1LoopBW: c.PLL1LoopBW,
	}
}
