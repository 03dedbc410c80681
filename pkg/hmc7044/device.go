// Package hmc7044 — драйвер микросхем распределения тактов HMC7044/HMC7043:
// частотное планирование PLL1/PLL2, последовательность инициализации регистров
// и операции над частотами выходных каналов.
package hmc7044

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shiwa/hmc7044/internal/logging"
	"github.com/shiwa/hmc7044/pkg/clk"
)

// Bus — полнодуплексная передача по SPI: len(r) == len(w) либо r == nil.
// Подходит periph spi.Conn, TinyGo drivers.SPI и Emulator.
type Bus interface {
	Tx(w, r []byte) error
}

var (
	// ErrChannelNotFound — канал с таким номером не сконфигурирован.
	ErrChannelNotFound = errors.New("hmc7044: channel not found")
	// ErrInvalidRate — нулевая частота.
	ErrInvalidRate = errors.New("hmc7044: invalid rate")
	// ErrNoParentRate — для HMC7043 не задана частота CLKIN0.
	ErrNoParentRate = errors.New("hmc7044: failed to get valid parent rate")
)

// Задержки последовательности инициализации.
const (
	resetDelay   = 10 * time.Millisecond
	settleDelay  = 10 * time.Millisecond
	restartDelay = 1 * time.Millisecond
)

// Device — сконфигурированная микросхема.
type Device struct {
	bus    Bus
	cfg    Config
	plan   Plan
	pll2Hz uint64

	clocks []*clk.Clock
	logger *logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// New копирует конфигурацию, создаёт дескрипторы выходов (если ExportClocks)
// и выполняет начальную настройку микросхемы.
func New(ctx context.Context, bus Bus, cfg Config) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrInvalidConfig)
	}
	cfg.Channels = append([]ChannelSpec(nil), cfg.Channels...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &Device{
		bus:    bus,
		cfg:    cfg,
		pll2Hz: cfg.PLL2,
		logger: logging.NewLogger(cfg.Variant.String()),
		sleep:  sleepContext,
	}
	if cfg.ExportClocks {
		for i := uint32(0); i < NumChannels; i++ {
			d.clocks = append(d.clocks, clk.New(fmt.Sprintf("clock_%d", i), i, d))
		}
	}
	if err := d.Setup(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Setup выполняет полную последовательность инициализации для варианта микросхемы.
func (d *Device) Setup(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.cfg.Variant == HMC7043 {
		err = d.setup7043(ctx)
	} else {
		err = d.setup7044(ctx)
	}
	if err != nil {
		d.logger.Error("setup failed: %v", err)
		return err
	}
	d.logger.Info("setup done: pll2=%d Hz, %d channels", d.pll2Hz, len(d.cfg.Channels))
	return nil
}

// Close освобождает шину, если она это поддерживает.
func (d *Device) Close() error {
	if c, ok := d.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Clocks возвращает дескрипторы clock_0..clock_13 (пусто без ExportClocks).
func (d *Device) Clocks() []*clk.Clock { return d.clocks }

// Variant возвращает модель микросхемы.
func (d *Device) Variant() Variant { return d.cfg.Variant }

// Plan возвращает результат частотного планирования (для HMC7043 — нулевой).
func (d *Device) Plan() Plan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plan
}

// PLL2Rate — родительская частота каналов, Гц.
func (d *Device) PLL2Rate() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pll2Hz
}

// Channels возвращает копию настроек каналов.
func (d *Device) Channels() []ChannelSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ChannelSpec(nil), d.cfg.Channels...)
}

func (d *Device) setup7044(ctx context.Context) error {
	plan, err := PlanPLL(d.cfg.planInput())
	if err != nil {
		return err
	}
	d.plan = plan
	d.pll2Hz = d.cfg.PLL2

	w := &regWriter{d: d, ctx: ctx}
	d.softReset(w)
	d.disableChannels(w)

	// Обновления конфигурации от Analog Devices.
	w.write(RegCLKOutDrvLowPW, vendorCLKOutDrvLowPW)
	w.write(RegCLKOutDrvHighPW, vendorCLKOutDrvHighPW)
	w.write(RegPLL1Delay, vendorPLL1Delay)
	w.write(RegPLL1Holdover, vendorPLL1Holdover)
	w.write(RegVTunePreset, vendorVTunePreset)

	glob := (d.cfg.SyncPinMode&0x3)<<syncPinModeShift | plan.RefEnable&refPathEnMask
	if d.cfg.CLKIn0RFSyncEnable {
		glob |= RFSyncEn
	}
	if d.cfg.CLKIn1VCOInEnable {
		glob |= VCOInModeEn
	}
	w.write(RegGlobMode, glob)

	// PLL2: диапазон VCO, делители, удвоитель.
	w.write(RegEnCtrl0, d.reseeder()|(plan.VCOSelect()&0x3)<<vcoSelShift|SysrefTimerEn|PLL2En|PLL1En)
	w.write(RegPLL2RLSB, lsb(plan.R2))
	w.write(RegPLL2RMSB, msb12(plan.R2))
	w.write(RegPLL2NLSB, lsb(plan.N2))
	w.write(RegPLL2NMSB, msb16(plan.N2))
	if plan.FreqDoubler {
		w.write(RegPLL2FreqDoubler, 0)
	} else {
		w.write(RegPLL2FreqDoubler, PLL2FreqDoublerDis)
	}

	// PLL1: lock detect, предделители LCM, делители, приоритет опор.
	w.write(RegPLL1LockDetect, byte(plan.LockDetect&lockDetectTimerMask))
	for i := 0; i < 4; i++ {
		w.write(RegCLKInPrescaler(i), byte(plan.InPrescaler[i]))
	}
	w.write(RegOSCInPrescaler, byte(plan.InPrescaler[4]))
	w.write(RegPLL1RLSB, lsb(plan.R1))
	w.write(RegPLL1RMSB, msb16(plan.R1))
	w.write(RegPLL1NLSB, lsb(plan.N1))
	w.write(RegPLL1NMSB, msb16(plan.N1))
	w.write(RegPLL1RefPrioCtrl, d.cfg.PLL1RefPrioCtrl)

	d.sysref(w)

	w.write(RegCLKIn0BufCtrl, d.cfg.InBufMode[0])
	w.write(RegCLKIn1BufCtrl, d.cfg.InBufMode[1])
	w.write(RegCLKIn2BufCtrl, d.cfg.InBufMode[2])
	w.write(RegCLKIn3BufCtrl, d.cfg.InBufMode[3])
	w.write(RegOSCInBufCtrl, d.cfg.InBufMode[4])

	for i, v := range d.cfg.GPICtrl {
		w.write(RegGPICtrl(i), v)
	}
	for i, v := range d.cfg.GPOCtrl {
		w.write(RegGPOCtrl(i), v)
	}
	w.delay(settleDelay)

	d.programChannels(w)
	w.delay(settleDelay)
	d.restart(w)

	d.logger.Debug("pll plan: n1=%d r1=%d n2=%d r2=%d doubler=%t high_vco=%t lcm=%d kHz",
		plan.N1, plan.R1, plan.N2, plan.R2, plan.FreqDoubler, plan.HighVCO, plan.LCM)
	return w.err
}

func (d *Device) setup7043(ctx context.Context) error {
	pll2 := d.cfg.CLKInCCF[0]
	if pll2 == 0 {
		pll2 = d.cfg.CLKIn[0]
	}
	if pll2 == 0 {
		return ErrNoParentRate
	}
	d.pll2Hz = pll2
	d.plan = Plan{}

	w := &regWriter{d: d, ctx: ctx}
	d.softReset(w)

	w.write(RegCLKOutDrvLowPW, vendorCLKOutDrvLowPW)
	w.write(RegCLKOutDrvHighPW, vendorCLKOutDrvHighPW)

	d.disableChannels(w)

	if pll2 < 1_000_000_000 {
		w.write(RegCLKInputCtrl, LowFreqInputMode)
	}
	w.write(RegEnCtrl0, d.reseeder()|SysrefTimerEn)

	d.sysref(w)

	w.write(RegCLKIn0BufCtrl, d.cfg.InBufMode[0])
	w.write(RegCLKIn1BufCtrl, d.cfg.InBufMode[1])
	w.write(RegGPICtrl(0), d.cfg.GPICtrl[0])
	w.write(RegGPOCtrl(0), d.cfg.GPOCtrl[0])

	d.programChannels(w)
	w.delay(settleDelay)
	d.restart(w)
	return w.err
}

func (d *Device) reseeder() byte {
	if d.cfg.RFReseederDisable {
		return 0
	}
	return RFReseederEn
}

// softReset сбрасывает все регистры в значения по умолчанию.
func (d *Device) softReset(w *regWriter) {
	w.write(RegSoftReset, SoftReset)
	w.delay(resetDelay)
	w.write(RegSoftReset, 0)
	w.delay(resetDelay)
}

func (d *Device) disableChannels(w *regWriter) {
	for ch := uint32(0); ch < NumChannels; ch++ {
		w.write(RegChOutCtrl0(ch), 0)
	}
}

// sysref программирует делитель таймера SYSREF и режим генератора импульсов.
func (d *Device) sysref(w *regWriter) {
	w.write(RegSysrefTimerLSB, lsb(d.cfg.SysrefTimerDiv))
	w.write(RegSysrefTimerMSB, byte((d.cfg.SysrefTimerDiv&sysrefTimerMSBMask)>>8))
	w.write(RegPulseGen, d.cfg.PulseGenMode&pulseGenModeMask)
}

func (d *Device) programChannels(w *regWriter) {
	for i := range d.cfg.Channels {
		ch := &d.cfg.Channels[i]
		if ch.Num >= NumChannels || ch.Disable {
			continue
		}
		w.write(RegChOutCtrl1(ch.Num), lsb(ch.Divider))
		w.write(RegChOutCtrl2(ch.Num), byte(ch.Divider>>8))
		w.write(RegChOutCtrl8(ch.Num), ch.driverControl())
		w.write(RegChOutCtrl3(ch.Num), ch.FineDelay&channelDelayMask)
		w.write(RegChOutCtrl4(ch.Num), ch.CoarseDelay&channelDelayMask)
		w.write(RegChOutCtrl7(ch.Num), ch.OutMuxMode&channelOutMuxMask)
		w.write(RegChOutCtrl0(ch.Num), ch.outputControl0())
	}
}

func (ch *ChannelSpec) driverControl() byte {
	v := (ch.DriverMode&0x3)<<driverModeShift | ch.DriverImpedance&driverImpedanceMask
	if ch.DynamicDriverEnable {
		v |= DynDriverEn
	}
	if ch.ForceMuteEnable {
		v |= ForceMuteEn
	}
	return v
}

func (ch *ChannelSpec) outputControl0() byte {
	var v byte = SyncEn | ChEn
	if ch.StartUpModeDynamicEnable {
		v |= StartUpModeDynEn
	}
	if ch.OutputControl0RB4Enable {
		v |= OutputControl0RB4
	}
	if !ch.HighPerformanceModeDisable {
		v |= HiPerfMode
	}
	return v
}

// restart перезапускает FSM делителей и запускает калибровку.
func (d *Device) restart(w *regWriter) {
	w.write(RegReqMode0, RestartDivFSM)
	w.delay(restartDelay)
	w.write(RegReqMode0, d.reqMode0Idle())
	w.delay(restartDelay)
}

func (d *Device) reqMode0Idle() byte {
	if d.cfg.HighPerformanceModeClockDistEnable {
		return HighPerfDistribPath
	}
	return 0
}

// regWriter — последовательность записей, останавливается на первой ошибке.
type regWriter struct {
	d   *Device
	ctx context.Context
	err error
}

func (w *regWriter) write(reg uint16, val byte) {
	if w.err != nil {
		return
	}
	if err := w.d.write(reg, val); err != nil {
		w.err = fmt.Errorf("write reg 0x%03x: %w", reg, err)
	}
}

func (w *regWriter) delay(dur time.Duration) {
	if w.err != nil {
		return
	}
	w.err = w.d.sleep(w.ctx, dur)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// write — запись одного регистра: инструкция (R/W=0, 1 байт, адрес) + данные.
func (d *Device) write(reg uint16, val byte) error {
	cmd := instrWrite | instrCount(1) | instrAddr(reg)
	buf := [3]byte{byte(cmd >> 8), byte(cmd), val}
	return d.bus.Tx(buf[:], nil)
}

// read — чтение одного регистра; данные приходят в третьем байте передачи.
func (d *Device) read(reg uint16) (byte, error) {
	cmd := instrRead | instrCount(1) | instrAddr(reg)
	w := [3]byte{byte(cmd >> 8), byte(cmd), 0}
	var r [3]byte
	if err := d.bus.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[2], nil
}
