package hmc7044

// Формат инструкции SPI: 16 бит (R/W, счётчик байт, адрес) + байт данных.
const (
	instrWrite = 0 << 15
	instrRead  = 1 << 15
)

func instrCount(n uint16) uint16 { return (n - 1) << 13 }
func instrAddr(reg uint16) uint16 { return reg & 0xFFF }

// Global Control
const (
	RegSoftReset = 0x0000
	SoftReset    = 1 << 0

	RegReqMode0         = 0x0001
	ReseedReq           = 1 << 7
	HighPerfDistribPath = 1 << 6
	HighPerfPLLVCO      = 1 << 5
	ForceHoldover       = 1 << 4
	MuteOutDiv          = 1 << 3
	PulseGenReq         = 1 << 2
	RestartDivFSM       = 1 << 1
	SleepMode           = 1 << 0
	RegReqMode1         = 0x0002
	PLL2AutotuneTrig    = 1 << 2
	SlipReq             = 1 << 1
	RegEnCtrl0          = 0x0003
	RFReseederEn        = 1 << 5
	SysrefTimerEn       = 1 << 2
	PLL2En              = 1 << 1
	PLL1En              = 1 << 0
	RegEnCtrl1          = 0x0004
	RegGlobMode         = 0x0005
	RFSyncEn            = 1 << 4
	VCOInModeEn         = 1 << 5
	vcoSelShift         = 3
	syncPinModeShift    = 6
	refPathEnMask       = 0x0F
	pulseGenModeMask    = 0x07
	lockDetectTimerMask = 0x1F
	channelDelayMask    = 0x1F
	channelOutMuxMask   = 0x03
	driverModeShift     = 3
	driverImpedanceMask = 0x03
	sysrefTimerMSBMask  = 0xF00
	pll2RMSBMask        = 0xF00
	sixteenBitMSBMask   = 0xFF00
	lowByteMask         = 0xFF
)

// VCO select (EN_CTRL_0 биты 4:3).
const (
	VCOExt  = 0
	VCOHigh = 1
	VCOLow  = 2
)

// PLL1
const (
	RegCLKIn0BufCtrl   = 0x000A
	RegCLKIn1BufCtrl   = 0x000B
	RegCLKIn2BufCtrl   = 0x000C
	RegCLKIn3BufCtrl   = 0x000D
	RegOSCInBufCtrl    = 0x000E
	RegPLL1RefPrioCtrl = 0x0014
	RegOSCInPrescaler  = 0x0020
	RegPLL1RLSB        = 0x0021
	RegPLL1RMSB        = 0x0022
	RegPLL1NLSB        = 0x0026
	RegPLL1NMSB        = 0x0027
	RegPLL1LockDetect  = 0x0028
	LockDetectSlip     = 1 << 5
	regCLKInPrescaler0 = 0x001C
)

// Режимы входных буферов (CLKINx/OSCIN_BUF_CTRL).
const (
	BufHighZEn      = 1 << 4
	BufLVPECLEn     = 1 << 3
	BufACCouplingEn = 1 << 2
	Buf100OhmEn     = 1 << 1
	BufEn           = 1 << 0
)

// RegCLKInPrescaler — делитель входа CLKINx.
func RegCLKInPrescaler(x int) uint16 { return regCLKInPrescaler0 + uint16(x) }

// PLL2
const (
	RegPLL2FreqDoubler = 0x0032
	PLL2FreqDoublerDis = 1 << 0
	RegPLL2RLSB        = 0x0033
	RegPLL2RMSB        = 0x0034
	RegPLL2NLSB        = 0x0035
	RegPLL2NMSB        = 0x0036
	RegOSCOutPath      = 0x0039
	RegOSCOutDriver0   = 0x003A
	RegOSCOutDriver1   = 0x003B
)

// GPIO/SDATA Control
func RegGPICtrl(x int) uint16 { return 0x0046 + uint16(x) }
func RegGPOCtrl(x int) uint16 { return 0x0050 + uint16(x) }

const (
	GPOMode = 1 << 1
	GPOEn   = 1 << 0
)

// SYSREF/SYNC Control
const (
	RegPulseGen       = 0x005A
	RegSync           = 0x005B
	SyncRetime        = 1 << 2
	SyncThroughPLL2   = 1 << 1
	SyncPolarity      = 1 << 0
	RegSysrefTimerLSB = 0x005C
	RegSysrefTimerMSB = 0x005D
	RegCLKInputCtrl   = 0x0064
	LowFreqInputMode  = 1 << 0
	Div2InputMode     = 1 << 1
)

// Status and Alarm readback
const (
	RegAlarmReadback = 0x007D
	RegPLL1Status    = 0x0082
)

// Other Controls
const (
	RegCLKOutDrvLowPW  = 0x009F
	RegCLKOutDrvHighPW = 0x00A0
	RegPLL1Delay       = 0x00A5
	RegPLL1Holdover    = 0x00A8
	RegVTunePreset     = 0x00B0
)

// Clock Distribution: блок из 10 регистров на канал, начиная с 0xC8.
const (
	HiPerfMode         = 1 << 7
	SyncEn             = 1 << 6
	StartUpModeDynEn   = 1<<3 | 1<<2
	OutputControl0RB4  = 1 << 4
	ChEn               = 1 << 0
	DynDriverEn        = 1 << 5
	ForceMuteEn        = 1 << 7
	channelBlockBase   = 0x00C8
	channelBlockStride = 0x0A
)

func regChOutCtrl(ch uint32, n uint16) uint16 {
	return channelBlockBase + uint16(ch)*channelBlockStride + n
}

func RegChOutCtrl0(ch uint32) uint16 { return regChOutCtrl(ch, 0) }
func RegChOutCtrl1(ch uint32) uint16 { return regChOutCtrl(ch, 1) }
func RegChOutCtrl2(ch uint32) uint16 { return regChOutCtrl(ch, 2) }
func RegChOutCtrl3(ch uint32) uint16 { return regChOutCtrl(ch, 3) }
func RegChOutCtrl4(ch uint32) uint16 { return regChOutCtrl(ch, 4) }
func RegChOutCtrl5(ch uint32) uint16 { return regChOutCtrl(ch, 5) }
func RegChOutCtrl6(ch uint32) uint16 { return regChOutCtrl(ch, 6) }
func RegChOutCtrl7(ch uint32) uint16 { return regChOutCtrl(ch, 7) }
func RegChOutCtrl8(ch uint32) uint16 { return regChOutCtrl(ch, 8) }

// Пределы из datasheet. Частоты VCO/LCM/PFD — в кГц.
const (
	NumChannels = 14

	LowVCOMin  = 2150000
	LowVCOMax  = 2880000
	HighVCOMin = 2650000
	HighVCOMax = 3200000

	RecommLCMMin = 30000
	RecommLCMMax = 70000
	RecommFPD1   = 10000

	R1Max = 65535
	N1Max = 65535

	R2Min = 1
	R2Max = 4095
	N2Min = 8
	N2Max = 65535

	OutDivMin = 1
	OutDivMax = 4094
)

// Значения из пакета обновлений конфигурации Analog Devices.
const (
	vendorCLKOutDrvLowPW  = 0x4D
	vendorCLKOutDrvHighPW = 0xDF
	vendorPLL1Delay       = 0x06
	vendorPLL1Holdover    = 0x06
	vendorVTunePreset     = 0x04
)

func lsb(v uint32) byte { return byte(v & lowByteMask) }
func msb16(v uint32) byte { return byte((v & sixteenBitMSBMask) >> 8) }
func msb12(v uint32) byte { return byte((v & pll2RMSBMask) >> 8) }
